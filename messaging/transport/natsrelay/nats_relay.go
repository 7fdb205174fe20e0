// Package natsrelay 基于 NATS core pub/sub 的 Relay 实现
//
// core NATS 本身即为至多一次投递，与总线的 fire-and-forget 语义一致，
// 因此不使用 JetStream 的持久化与确认。
package natsrelay

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"boatsync/logging"
	"boatsync/messaging"
)

// Config configures the NATS relay.
type Config struct {
	URL           string
	SubjectPrefix string
	Name          string
	Logger        logging.Logger
	Conn          *nats.Conn
}

// conn captures the subset of *nats.Conn we rely on (for easier testing).
type conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// Relay implements messaging.Relay on top of NATS subjects.
type Relay struct {
	cfg      Config
	logger   logging.Logger
	conn     conn
	ownsConn bool
	sub      *nats.Subscription

	mu      sync.RWMutex
	running bool
}

// New builds a NATS relay; the connection is established on Start.
func New(cfg Config) *Relay {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "boatsync."
	}
	if !strings.HasSuffix(cfg.SubjectPrefix, ".") {
		cfg.SubjectPrefix += "."
	}
	if cfg.Name == "" {
		cfg.Name = "boatsync"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.String("component", "relay.nats"))
	}
	r := &Relay{cfg: cfg, logger: cfg.Logger}
	if cfg.Conn != nil {
		r.conn = cfg.Conn
	}
	return r
}

func (r *Relay) Forward(ctx context.Context, env messaging.Envelope) error {
	r.mu.RLock()
	c := r.conn
	running := r.running
	r.mu.RUnlock()
	if !running || c == nil {
		return errors.New("nats relay not running")
	}
	data, err := messaging.MarshalEnvelope(env)
	if err != nil {
		return err
	}
	return c.Publish(r.subjectName(env.Channel), data)
}

func (r *Relay) Start(ctx context.Context, inbound messaging.InboundFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("nats relay already running")
	}
	if err := r.ensureConnection(); err != nil {
		return err
	}
	sub, err := r.conn.Subscribe(r.cfg.SubjectPrefix+">", r.handleMessage(inbound))
	if err != nil {
		return err
	}
	r.sub = sub
	r.running = true
	return nil
}

func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
		r.sub = nil
	}
	r.running = false
	if r.ownsConn && r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	return nil
}

func (r *Relay) ensureConnection() error {
	if r.conn != nil {
		return nil
	}
	url := r.cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name(r.cfg.Name))
	if err != nil {
		return err
	}
	r.conn = nc
	r.ownsConn = true
	return nil
}

func (r *Relay) handleMessage(inbound messaging.InboundFunc) nats.MsgHandler {
	return func(msg *nats.Msg) {
		env, err := messaging.UnmarshalEnvelope(msg.Data)
		if err != nil {
			r.logger.Warn(context.Background(), "decode nats message failed",
				logging.String("subject", msg.Subject), logging.Error(err))
			return
		}
		inbound(context.Background(), env)
	}
}

func (r *Relay) subjectName(ch messaging.Channel) string {
	return r.cfg.SubjectPrefix + string(ch)
}
