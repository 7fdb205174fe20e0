package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "boatsync/errors"
	"boatsync/logging"
)

type recorder struct {
	name  string
	order *[]string
	got   []Message
}

func (r *recorder) OnMessage(ctx context.Context, msg Message) {
	r.got = append(r.got, msg)
	if r.order != nil {
		*r.order = append(*r.order, r.name)
	}
}

type fakeRelay struct {
	mu        sync.Mutex
	forwarded []Envelope
	inbound   InboundFunc
	err       error
	closed    bool
}

func (f *fakeRelay) Forward(ctx context.Context, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, env)
	return f.err
}

func (f *fakeRelay) Start(ctx context.Context, inbound InboundFunc) error {
	f.inbound = inbound
	return nil
}

func (f *fakeRelay) Close() error {
	f.closed = true
	return nil
}

func newTestBus(opts ...Option) *Bus {
	return NewBus(append([]Option{WithLogger(logging.NewNoopLogger())}, opts...)...)
}

func TestBus_PublishInSubscriptionOrder(t *testing.T) {
	bus := newTestBus()
	var order []string
	a := &recorder{name: "a", order: &order}
	b := &recorder{name: "b", order: &order}
	c := &recorder{name: "c", order: &order}
	bus.Subscribe(BoatChannel, a, ScopeApplication)
	bus.Subscribe(BoatChannel, b, ScopeLocal)
	bus.Subscribe(BoatChannel, c, ScopeApplication)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a02"}))

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
	assert.Equal(t, []Message{{EntityID: "a01"}, {EntityID: "a02"}}, b.got)
}

func TestBus_SubscribeTwiceYieldsOneSubscription(t *testing.T) {
	bus := newTestBus()
	r := &recorder{}
	first := bus.Subscribe(BoatChannel, r, ScopeApplication)
	second := bus.Subscribe(BoatChannel, r, ScopeApplication)

	assert.Same(t, first, second)
	assert.Equal(t, 1, bus.Stats().Subscriptions[BoatChannel])

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	assert.Len(t, r.got, 1)
}

func TestBus_ResubscribeAfterUnsubscribeCreatesNewHandle(t *testing.T) {
	bus := newTestBus()
	r := &recorder{}
	first := bus.Subscribe(BoatChannel, r, ScopeLocal)
	bus.Unsubscribe(first)
	second := bus.Subscribe(BoatChannel, r, ScopeLocal)

	assert.NotSame(t, first, second)
	assert.False(t, first.Active())
	assert.True(t, second.Active())
}

func TestBus_UnsubscribeThenPublish(t *testing.T) {
	bus := newTestBus()
	r := &recorder{}
	sub := bus.Subscribe(BoatChannel, r, ScopeApplication)
	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	bus.Unsubscribe(nil)
	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a02"}))

	assert.Equal(t, []Message{{EntityID: "a01"}}, r.got)
	assert.Empty(t, bus.Stats().Subscriptions)
}

func TestBus_SubscribeDuringDispatchIsNotDelivered(t *testing.T) {
	bus := newTestBus()
	late := &recorder{}
	var adder ListenerFunc = func(ctx context.Context, msg Message) {
		bus.Subscribe(BoatChannel, late, ScopeLocal)
	}
	bus.Subscribe(BoatChannel, adder, ScopeLocal)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	assert.Empty(t, late.got)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a02"}))
	assert.Equal(t, []Message{{EntityID: "a02"}}, late.got)
}

func TestBus_UnsubscribeDuringDispatchDoesNotSkipOthers(t *testing.T) {
	bus := newTestBus()
	var order []string
	first := &recorder{name: "first", order: &order}
	victim := &recorder{name: "victim", order: &order}
	last := &recorder{name: "last", order: &order}

	bus.Subscribe(BoatChannel, first, ScopeLocal)
	var victimSub *Subscription
	var remover ListenerFunc = func(ctx context.Context, msg Message) {
		order = append(order, "remover")
		bus.Unsubscribe(victimSub)
	}
	bus.Subscribe(BoatChannel, remover, ScopeLocal)
	victimSub = bus.Subscribe(BoatChannel, victim, ScopeLocal)
	bus.Subscribe(BoatChannel, last, ScopeLocal)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	assert.Equal(t, []string{"first", "remover", "last"}, order)
}

func TestBus_RejectsMessageWithoutEntityID(t *testing.T) {
	bus := newTestBus()
	r := &recorder{}
	bus.Subscribe(BoatChannel, r, ScopeLocal)

	err := bus.Publish(context.Background(), BoatChannel, Message{})
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeInvalidInput))
	assert.Empty(t, r.got)
}

func TestBus_ChannelsAreIsolated(t *testing.T) {
	bus := newTestBus()
	boats := &recorder{}
	other := &recorder{}
	bus.Subscribe(BoatChannel, boats, ScopeLocal)
	bus.Subscribe("reviewChannel", other, ScopeLocal)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	assert.Len(t, boats.got, 1)
	assert.Empty(t, other.got)
}

func TestBus_ListenerPanicIsRecovered(t *testing.T) {
	mem := logging.NewMemoryLogger()
	bus := NewBus(WithLogger(mem))
	after := &recorder{}
	var boom ListenerFunc = func(ctx context.Context, msg Message) { panic("boom") }
	bus.Subscribe(BoatChannel, boom, ScopeLocal)
	bus.Subscribe(BoatChannel, after, ScopeLocal)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	assert.Len(t, after.got, 1)

	var panicked bool
	for _, e := range mem.Entries() {
		if e.Message == "listener panicked" {
			panicked = true
		}
	}
	assert.True(t, panicked)
}

func TestBus_ForwardsToRelayAndFiltersInboundByScope(t *testing.T) {
	relay := &fakeRelay{}
	bus := newTestBus(WithRelay(relay))
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Close()

	app := &recorder{}
	local := &recorder{}
	bus.Subscribe(BoatChannel, app, ScopeApplication)
	bus.Subscribe(BoatChannel, local, ScopeLocal)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	require.Len(t, relay.forwarded, 1)
	assert.Equal(t, bus.ID(), relay.forwarded[0].Origin)
	assert.Equal(t, "a01", relay.forwarded[0].Message.EntityID)

	// 远端消息只投递给 application 范围
	relay.inbound(context.Background(), Envelope{Origin: "other-host", Channel: BoatChannel, Message: Message{EntityID: "b07"}})
	assert.Equal(t, []Message{{EntityID: "a01"}, {EntityID: "b07"}}, app.got)
	assert.Equal(t, []Message{{EntityID: "a01"}}, local.got)

	// 自身回环与缺少 entityId 的消息被丢弃
	relay.inbound(context.Background(), Envelope{Origin: bus.ID(), Channel: BoatChannel, Message: Message{EntityID: "echo"}})
	relay.inbound(context.Background(), Envelope{Origin: "other-host", Channel: BoatChannel})
	assert.Len(t, app.got, 2)
}

func TestBus_RelayFailureDoesNotFailPublish(t *testing.T) {
	relay := &fakeRelay{err: errors.New("connection refused")}
	bus := newTestBus(WithRelay(relay))
	r := &recorder{}
	bus.Subscribe(BoatChannel, r, ScopeLocal)

	require.NoError(t, bus.Publish(context.Background(), BoatChannel, Message{EntityID: "a01"}))
	assert.Len(t, r.got, 1)
	assert.True(t, bus.Stats().RelayEnabled)
}

func TestBus_Close(t *testing.T) {
	relay := &fakeRelay{}
	bus := newTestBus(WithRelay(relay))
	require.NoError(t, bus.Close())
	assert.False(t, relay.closed, "未启动时不关闭 relay")

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Close())
	assert.True(t, relay.closed)
}

func TestEnvelopeCodec(t *testing.T) {
	data, err := MarshalEnvelope(Envelope{Origin: "host-1", Channel: BoatChannel, ID: "e1", Message: Message{EntityID: "a01"}})
	require.NoError(t, err)

	env, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "host-1", env.Origin)
	assert.Equal(t, BoatChannel, env.Channel)
	assert.Equal(t, "a01", env.Message.EntityID)
	assert.False(t, env.Timestamp.IsZero())

	_, err = MarshalEnvelope(Envelope{Channel: BoatChannel})
	assert.Error(t, err)
}

func TestUnmarshalEnvelope_IgnoresUnknownFieldsAndRejectsMissingEntityID(t *testing.T) {
	env, err := UnmarshalEnvelope([]byte(`{"origin":"x","channel":"boatMessageChannel","payload":{"entityId":"a09","recordId":"legacy"}}`))
	require.NoError(t, err)
	assert.Equal(t, "a09", env.Message.EntityID)

	_, err = UnmarshalEnvelope([]byte(`{"channel":"boatMessageChannel","payload":{"recordId":"a09"}}`))
	assert.True(t, apperrors.IsErrorCode(err, apperrors.ErrCodeInvalidInput))

	_, err = UnmarshalEnvelope([]byte(`{"payload":{"entityId":"a09"}}`))
	assert.Error(t, err)

	_, err = UnmarshalEnvelope([]byte(`not json`))
	assert.Error(t, err)
}
