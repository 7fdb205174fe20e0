package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "boatsync/errors"
	"boatsync/messaging"
	"boatsync/notify"
)

func boat(id, name string) Record {
	return Record{ID: id, Fields: map[string]any{"Name": name}}
}

func TestList_SetFilterLoadsRecords(t *testing.T) {
	query := newFakeQuery()
	query.results["sailboat"] = []Record{boat("a01", "Sea Breeze"), boat("a02", "Blue Wind")}
	sink := &notify.Recorder{}
	c := NewListController(newBus(), query, sink)

	require.NoError(t, c.SetFilter(context.Background(), "sailboat").Wait())

	assert.Equal(t, "sailboat", c.Filter())
	assert.Len(t, c.Records(), 2)
	assert.Equal(t, DefaultBoatColumns(), c.Shape())
	assert.NoError(t, c.Err())
	assert.Equal(t, []notify.LoadEvent{notify.Loading, notify.DoneLoading}, sink.LoadEvents())
	assert.False(t, c.LoadState().IsLoading)
}

func TestList_FailedFetchEmptiesWorkingSet(t *testing.T) {
	query := newFakeQuery()
	query.results[""] = []Record{boat("a01", "Sea Breeze")}
	query.errs["kayak"] = errors.New("query timed out")
	sink := &notify.Recorder{}
	c := NewListController(newBus(), query, sink)

	require.NoError(t, c.Refresh(context.Background()).Wait())
	require.Len(t, c.Records(), 1)

	err := c.SetFilter(context.Background(), "kayak").Wait()
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeFetch))
	assert.NotNil(t, c.Records())
	assert.Empty(t, c.Records())
	assert.NotNil(t, c.Shape())
	assert.Empty(t, c.Shape())
	assert.True(t, apperrors.IsErrorCode(c.Err(), apperrors.ErrCodeFetch))
	assert.Equal(t, []notify.LoadEvent{
		notify.Loading, notify.DoneLoading,
		notify.Loading, notify.DoneLoading,
	}, sink.LoadEvents())
}

func TestList_ConcurrentRefreshesShareOneFetch(t *testing.T) {
	query := newFakeQuery()
	gate := make(chan struct{})
	query.gates[""] = gate
	sink := &notify.Recorder{}
	c := NewListController(newBus(), query, sink)

	first := c.Refresh(context.Background())
	require.Equal(t, "", <-query.started)
	assert.True(t, c.LoadState().IsLoading)

	second := c.Refresh(context.Background())
	close(gate)

	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())

	assert.Equal(t, 1, query.callCount())
	assert.Equal(t, []notify.LoadEvent{notify.Loading, notify.DoneLoading}, sink.LoadEvents())
	assert.False(t, c.LoadState().IsLoading)
}

func TestList_SupersededFilterResultIsDiscarded(t *testing.T) {
	query := newFakeQuery()
	gate := make(chan struct{})
	query.gates["kayak"] = gate
	query.results["kayak"] = []Record{boat("k01", "Paddler")}
	query.results["sailboat"] = []Record{boat("a01", "Sea Breeze")}
	sink := &notify.Recorder{}
	c := NewListController(newBus(), query, sink)

	stale := c.SetFilter(context.Background(), "kayak")
	require.Equal(t, "kayak", <-query.started)

	require.NoError(t, c.SetFilter(context.Background(), "sailboat").Wait())
	assert.True(t, c.LoadState().IsLoading, "旧查询仍在途")

	close(gate)
	require.NoError(t, stale.Wait())

	assert.Equal(t, []Record{boat("a01", "Sea Breeze")}, c.Records())
	assert.Equal(t, "sailboat", c.Filter())
	assert.Equal(t, []notify.LoadEvent{notify.Loading, notify.DoneLoading}, sink.LoadEvents())
}

func TestList_ReloadDoesNotJoinInFlightFetch(t *testing.T) {
	query := newFakeQuery()
	gate := make(chan struct{})
	query.gates[""] = gate
	sink := &notify.Recorder{}
	c := NewListController(newBus(), query, sink)

	first := c.Refresh(context.Background())
	require.Equal(t, "", <-query.started)

	reloaded := c.Reload(context.Background())
	require.Equal(t, "", <-query.started)

	// 重载之后的 Refresh 合并到重载查询
	joined := c.Refresh(context.Background())
	close(gate)

	require.NoError(t, first.Wait())
	require.NoError(t, reloaded.Wait())
	require.NoError(t, joined.Wait())

	assert.Equal(t, 2, query.callCount())
	assert.Equal(t, "", c.Filter())
	assert.Equal(t, []notify.LoadEvent{notify.Loading, notify.DoneLoading}, sink.LoadEvents())
}

// stateReadingSink 在收到加载事件时回读控制器状态
type stateReadingSink struct {
	notify.Recorder
	list   *ListController
	states []bool
}

func (s *stateReadingSink) Load(ctx context.Context, event notify.LoadEvent) {
	s.states = append(s.states, s.list.LoadState().IsLoading)
	s.Recorder.Load(ctx, event)
}

func TestList_SinkMayReadLoadStateDuringEvent(t *testing.T) {
	query := newFakeQuery()
	sink := &stateReadingSink{}
	c := NewListController(newBus(), query, sink)
	sink.list = c

	p := c.Refresh(context.Background())
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("load event callback deadlocked")
	}
	require.NoError(t, p.Wait())

	assert.Equal(t, []bool{true, false}, sink.states)
	assert.Equal(t, []notify.LoadEvent{notify.Loading, notify.DoneLoading}, sink.LoadEvents())
}

func TestList_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	query := newFakeQuery()
	query.results[""] = []Record{boat("a01", "Sea Breeze")}
	c := NewListController(newBus(), query, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := c.Refresh(ctx)

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("refresh did not finish")
	}
	require.NoError(t, p.Wait())
	assert.Len(t, c.Records(), 1)
}

func TestList_SelectRowPublishes(t *testing.T) {
	bus := newBus()
	var got []messaging.Message
	bus.Subscribe(messaging.BoatChannel, messaging.ListenerFunc(func(ctx context.Context, msg messaging.Message) {
		got = append(got, msg)
	}), messaging.ScopeLocal)

	c := NewListController(bus, newFakeQuery(), nil)
	require.NoError(t, c.SelectRow(context.Background(), "a01"))
	assert.Equal(t, "a01", c.Selected())
	assert.Equal(t, []messaging.Message{{EntityID: "a01"}}, got)

	err := c.SelectRow(context.Background(), "")
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeInvalidInput))
	assert.Equal(t, "a01", c.Selected())
	assert.Len(t, got, 1)
}

func TestList_SelectRowDrivesFollower(t *testing.T) {
	bus := newBus()
	lookup := newFakeLookup()
	lookup.locs["a02"] = Location{Latitude: 45.5, Longitude: -73.6}
	follower := NewSelectionSynchronizer(bus, lookup)
	follower.Connect(context.Background())
	defer follower.Disconnect()

	c := NewListController(bus, newFakeQuery(), nil)
	require.NoError(t, c.SelectRow(context.Background(), "a02"))
	follower.Wait()

	assert.Equal(t, "a02", follower.Selected())
	assert.True(t, follower.ShowMap())
}

func TestList_StageEditValidates(t *testing.T) {
	c := NewListController(newBus(), newFakeQuery(), nil)

	require.NoError(t, c.StageEdit(FieldEdit{RecordID: "a01", Field: "Price__c", Value: "1250.50"}))
	require.NoError(t, c.StageEdit(FieldEdit{RecordID: "a01", Field: "Name", Value: "Sea Breeze II"}))
	require.NoError(t, c.StageEdit(FieldEdit{RecordID: "a01", Field: "Price__c", Value: 1300}))

	assert.Equal(t, []FieldEdit{
		{RecordID: "a01", Field: "Price__c", Value: float64(1300)},
		{RecordID: "a01", Field: "Name", Value: "Sea Breeze II"},
	}, c.Drafts().Snapshot())

	err := c.StageEdit(FieldEdit{RecordID: "a01", Field: "Length__c", Value: -3})
	assert.True(t, apperrors.IsValidation(err))
	err = c.StageEdit(FieldEdit{RecordID: "a01", Field: "BoatType", Value: "x"})
	assert.True(t, apperrors.IsValidation(err))
	err = c.StageEdit(FieldEdit{RecordID: "", Field: "Name", Value: "x"})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 2, c.Drafts().Len())
}
