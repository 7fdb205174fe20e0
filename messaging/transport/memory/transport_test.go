package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boatsync/logging"
	"boatsync/messaging"
)

type collector struct {
	mu  sync.Mutex
	ids []string
}

func (c *collector) OnMessage(ctx context.Context, msg messaging.Message) {
	c.mu.Lock()
	c.ids = append(c.ids, msg.EntityID)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func TestHub_RelaysBetweenBuses(t *testing.T) {
	hub := NewHub(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noop := messaging.WithLogger(logging.NewNoopLogger())
	left := messaging.NewBus(noop, messaging.WithRelay(hub.Endpoint()))
	right := messaging.NewBus(noop, messaging.WithRelay(hub.Endpoint()))
	require.NoError(t, left.Start(ctx))
	require.NoError(t, right.Start(ctx))

	leftApp := &collector{}
	rightApp := &collector{}
	rightLocal := &collector{}
	left.Subscribe(messaging.BoatChannel, leftApp, messaging.ScopeApplication)
	right.Subscribe(messaging.BoatChannel, rightApp, messaging.ScopeApplication)
	right.Subscribe(messaging.BoatChannel, rightLocal, messaging.ScopeLocal)

	require.NoError(t, left.Publish(ctx, messaging.BoatChannel, messaging.Message{EntityID: "a01"}))
	require.NoError(t, left.Publish(ctx, messaging.BoatChannel, messaging.Message{EntityID: "a02"}))

	require.Eventually(t, func() bool { return len(rightApp.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a01", "a02"}, rightApp.snapshot())
	assert.Empty(t, rightLocal.snapshot())

	require.NoError(t, left.Close())
	require.NoError(t, right.Close())
	// 回环已过滤：左侧只收到本地投递
	assert.Equal(t, []string{"a01", "a02"}, leftApp.snapshot())
	assert.False(t, hub.Stats().Running)
}

func TestHub_ForwardWhenStopped(t *testing.T) {
	hub := NewHub(0)
	ep := hub.Endpoint()
	err := ep.Forward(context.Background(), messaging.Envelope{Channel: messaging.BoatChannel, Message: messaging.Message{EntityID: "a01"}})
	assert.Error(t, err)
	assert.Equal(t, 256, hub.Stats().QueueSize)
}

func TestHub_QueueFullDrops(t *testing.T) {
	hub := NewHub(1)
	ep := hub.Endpoint()
	// 不启动 worker，直接标记运行以观察队列满
	hub.running = true
	env := messaging.Envelope{Channel: messaging.BoatChannel, Message: messaging.Message{EntityID: "a01"}}

	require.NoError(t, ep.Forward(context.Background(), env))
	assert.Error(t, ep.Forward(context.Background(), env))
	assert.Equal(t, 1, hub.Stats().Dropped)
}
