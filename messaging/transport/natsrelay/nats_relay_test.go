package natsrelay

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"boatsync/logging"
	"boatsync/messaging"
)

// loopConn 把发布直接回送给订阅回调
type loopConn struct {
	subject   string
	cb        nats.MsgHandler
	published []string
	closed    bool
	err       error
}

func (c *loopConn) Publish(subj string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, subj)
	if c.cb != nil {
		c.cb(&nats.Msg{Subject: subj, Data: data})
	}
	return nil
}

func (c *loopConn) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	c.subject = subj
	c.cb = cb
	return nil, nil
}

func (c *loopConn) Close() { c.closed = true }

func newTestRelay(c *loopConn) *Relay {
	r := New(Config{SubjectPrefix: "fleet", Logger: logging.NewNoopLogger()})
	r.conn = c
	return r
}

func TestRelay_ForwardAndReceive(t *testing.T) {
	c := &loopConn{}
	r := newTestRelay(c)

	var got []messaging.Envelope
	require.NoError(t, r.Start(context.Background(), func(ctx context.Context, env messaging.Envelope) {
		got = append(got, env)
	}))
	require.Equal(t, "fleet.>", c.subject)

	env := messaging.Envelope{Origin: "host-a", Channel: messaging.BoatChannel, ID: "e1", Message: messaging.Message{EntityID: "a01"}}
	require.NoError(t, r.Forward(context.Background(), env))

	require.Equal(t, []string{"fleet.boatMessageChannel"}, c.published)
	require.Len(t, got, 1)
	require.Equal(t, "host-a", got[0].Origin)
	require.Equal(t, "a01", got[0].Message.EntityID)

	require.NoError(t, r.Close())
	require.False(t, c.closed, "外部连接不由 relay 关闭")
	require.Error(t, r.Forward(context.Background(), env))
}

func TestRelay_DropsUndecodableMessages(t *testing.T) {
	c := &loopConn{}
	r := newTestRelay(c)
	called := false
	require.NoError(t, r.Start(context.Background(), func(ctx context.Context, env messaging.Envelope) { called = true }))

	c.cb(&nats.Msg{Subject: "fleet.boatMessageChannel", Data: []byte(`{"channel":"boatMessageChannel","payload":{}}`)})
	require.False(t, called)
}

func TestRelay_StartTwiceAndPublishError(t *testing.T) {
	c := &loopConn{err: errors.New("nats: connection closed")}
	r := newTestRelay(c)
	noop := func(context.Context, messaging.Envelope) {}
	require.NoError(t, r.Start(context.Background(), noop))
	require.Error(t, r.Start(context.Background(), noop))

	err := r.Forward(context.Background(), messaging.Envelope{Channel: messaging.BoatChannel, Message: messaging.Message{EntityID: "a01"}})
	require.Error(t, err)
}
