package widget

import (
	"context"
	"sync"

	"boatsync/notify"
)

// LoadState 加载状态
type LoadState struct {
	IsLoading bool `json:"isLoading"`
}

// loadBracket 维护成对的 loading/doneloading 通知
//
// 重叠的操作共享同一个括号：计数 0→1 时发出 loading，1→0 时发出 doneloading。
// emit 串行化状态变更与通知，保证两类事件严格交替；通知发出时 mu 已释放，
// sink 可以在回调中读取 LoadState，但不能在回调中发起新的加载。
type loadBracket struct {
	emit sync.Mutex
	mu   sync.Mutex
	busy int
	sink notify.Sink
}

func (b *loadBracket) open(ctx context.Context) {
	b.emit.Lock()
	defer b.emit.Unlock()

	b.mu.Lock()
	b.busy++
	first := b.busy == 1
	b.mu.Unlock()

	if first {
		b.sink.Load(ctx, notify.Loading)
	}
}

func (b *loadBracket) close(ctx context.Context) {
	b.emit.Lock()
	defer b.emit.Unlock()

	b.mu.Lock()
	if b.busy == 0 {
		b.mu.Unlock()
		return
	}
	b.busy--
	last := b.busy == 0
	b.mu.Unlock()

	if last {
		b.sink.Load(ctx, notify.DoneLoading)
	}
}

func (b *loadBracket) state() LoadState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return LoadState{IsLoading: b.busy > 0}
}
