// Package redisstreams 基于 Redis Streams 的 Relay 实现
package redisstreams

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"boatsync/logging"
	"boatsync/messaging"
)

// client captures the subset of go-redis commands we rely on (for easier testing).
type client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
	Close() error
}

// Config describes how the Redis Streams relay should connect/behave.
type Config struct {
	Client       redis.UniversalClient
	Addr         string
	Username     string
	Password     string
	DB           int
	Stream       string
	MaxLen       int64
	BlockTimeout time.Duration
	ReadCount    int64
	Logger       logging.Logger

	MinReadBackoff time.Duration // 读取错误最小退避，默认 100ms
	MaxReadBackoff time.Duration // 读取错误最大退避，默认 5s
}

// Relay is a messaging.Relay backed by a single Redis Stream.
//
// 每个宿主用 XREAD 从 "$" 开始独立读取，因此所有宿主都能看到每条消息；
// 不使用消费组，读取位置只保存在内存中，重启后不补发历史消息。
type Relay struct {
	cfg       Config
	client    client
	ownClient bool
	logger    logging.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRelay constructs a Redis Streams relay.
func NewRelay(cfg Config) (*Relay, error) {
	if cfg.Stream == "" {
		cfg.Stream = "boatsync:bus"
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = 1000
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 10
	}
	if cfg.MinReadBackoff <= 0 {
		cfg.MinReadBackoff = 100 * time.Millisecond
	}
	if cfg.MaxReadBackoff <= 0 {
		cfg.MaxReadBackoff = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.String("component", "relay.redisstreams"))
	}

	var cl client
	var own bool
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, errors.New("redis relay: addr or client required")
		}
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		own = true
	}

	return &Relay{
		cfg:       cfg,
		client:    cl,
		ownClient: own,
		logger:    cfg.Logger,
	}, nil
}

// Forward appends the envelope to the stream, trimming it to roughly MaxLen entries.
func (r *Relay) Forward(ctx context.Context, env messaging.Envelope) error {
	values, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.Stream,
		MaxLen: r.cfg.MaxLen,
		Approx: true,
		Values: values,
	}).Err()
}

// Start begins the background reader.
func (r *Relay) Start(ctx context.Context, inbound messaging.InboundFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("redis streams relay already running")
	}
	readCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.readLoop(readCtx, inbound)
	return nil
}

// Close stops the reader and closes the client if the relay created it.
func (r *Relay) Close() error {
	r.mu.Lock()
	cancel := r.cancel
	wasRunning := r.running
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if wasRunning && cancel != nil {
		cancel()
		r.wg.Wait()
	}
	if r.ownClient {
		return r.client.Close()
	}
	return nil
}

func (r *Relay) readLoop(ctx context.Context, inbound messaging.InboundFunc) {
	defer r.wg.Done()
	lastID := "$"
	backoff := r.cfg.MinReadBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		res, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{r.cfg.Stream, lastID},
			Count:   r.cfg.ReadCount,
			Block:   r.cfg.BlockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn(ctx, "xread failed", logging.Duration("backoff", backoff), logging.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > r.cfg.MaxReadBackoff {
				backoff = r.cfg.MaxReadBackoff
			}
			continue
		}
		backoff = r.cfg.MinReadBackoff
		for _, stream := range res {
			for _, entry := range stream.Messages {
				lastID = entry.ID
				env, decodeErr := decodeEnvelope(entry)
				if decodeErr != nil {
					r.logger.Warn(ctx, "decode redis stream entry failed",
						logging.String("entry", entry.ID), logging.Error(decodeErr))
					continue
				}
				inbound(ctx, env)
			}
		}
	}
}

func encodeEnvelope(env messaging.Envelope) (map[string]interface{}, error) {
	data, err := messaging.MarshalEnvelope(env)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"channel":  string(env.Channel),
		"envelope": string(data),
	}, nil
}

func decodeEnvelope(entry redis.XMessage) (messaging.Envelope, error) {
	raw, _ := entry.Values["envelope"].(string)
	if raw == "" {
		return messaging.Envelope{}, fmt.Errorf("entry %s has no envelope", entry.ID)
	}
	env, err := messaging.UnmarshalEnvelope([]byte(raw))
	if err != nil {
		return messaging.Envelope{}, err
	}
	if env.ID == "" {
		env.ID = entry.ID
	}
	return env, nil
}
