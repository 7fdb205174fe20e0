package widget

import (
	"context"
	"sync"

	"boatsync/messaging"
)

type fakeQuery struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]Record
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string
}

func newFakeQuery() *fakeQuery {
	return &fakeQuery{
		results: make(map[string][]Record),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (q *fakeQuery) ListBoats(ctx context.Context, key string) ([]Record, error) {
	q.mu.Lock()
	q.calls = append(q.calls, key)
	gate := q.gates[key]
	res, err := q.results[key], q.errs[key]
	q.mu.Unlock()

	q.started <- key
	if gate != nil {
		<-gate
	}
	return res, err
}

func (q *fakeQuery) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

type fakeLookup struct {
	mu      sync.Mutex
	calls   []string
	locs    map[string]Location
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		locs:    make(map[string]Location),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (l *fakeLookup) Location(ctx context.Context, id string) (Location, error) {
	l.mu.Lock()
	l.calls = append(l.calls, id)
	gate := l.gates[id]
	loc, err := l.locs[id], l.errs[id]
	l.mu.Unlock()

	l.started <- id
	if gate != nil {
		<-gate
	}
	return loc, err
}

func (l *fakeLookup) callsFor() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeUpdater struct {
	mu      sync.Mutex
	batches [][]FieldEdit
	err     error
	onCall  func()
}

func (u *fakeUpdater) UpdateBoats(ctx context.Context, edits []FieldEdit) error {
	u.mu.Lock()
	u.batches = append(u.batches, edits)
	hook := u.onCall
	u.mu.Unlock()
	if hook != nil {
		hook()
	}
	return u.err
}

// recordingRefresher 记录被调用时草稿集的大小
type recordingRefresher struct {
	drafts      *DraftSet
	calls       int
	draftsAtRun []int
}

func (r *recordingRefresher) Reload(ctx context.Context) *Pending {
	r.calls++
	r.draftsAtRun = append(r.draftsAtRun, r.drafts.Len())
	p := newPending()
	p.resolve(nil)
	return p
}

func newBus() *messaging.Bus {
	return messaging.NewBus(messaging.WithLogger(quietLogger))
}
