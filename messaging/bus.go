package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"boatsync/logging"
)

// Option Bus 构造选项
type Option func(*Bus)

// WithRelay 启用跨宿主转发
func WithRelay(relay Relay) Option {
	return func(b *Bus) { b.relay = relay }
}

// WithLogger 设置日志
func WithLogger(logger logging.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithObserver 设置指标回调
func WithObserver(observer Observer) Option {
	return func(b *Bus) {
		if observer != nil {
			b.observer = observer
		}
	}
}

// Bus 同步发布/订阅总线
//
// Publish 在调用方 goroutine 上按订阅顺序依次投递。每个通道的订阅列表
// 采用写时复制，发布时取快照后释放锁，因此投递过程中的订阅/退订
// 不会导致其他监听器被跳过或重复投递；投递中新增的订阅不参与本次发布。
type Bus struct {
	id       string
	relay    Relay
	logger   logging.Logger
	observer Observer

	mu      sync.RWMutex
	subs    map[Channel][]*Subscription
	started bool
}

// NewBus 创建总线
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		id:       uuid.NewString(),
		logger:   logging.GetLogger().WithFields(logging.String("component", "messaging.bus")),
		observer: noopObserver{},
		subs:     make(map[Channel][]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID 总线实例标识，用于过滤 Relay 回环
func (b *Bus) ID() string { return b.id }

// Start 启动 Relay 接收；未配置 Relay 时为空操作
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started || b.relay == nil {
		b.started = true
		b.mu.Unlock()
		return nil
	}
	b.started = true
	relay := b.relay
	b.mu.Unlock()

	if err := relay.Start(ctx, b.receive); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}
	return nil
}

// Close 关闭 Relay
func (b *Bus) Close() error {
	b.mu.Lock()
	relay := b.relay
	started := b.started
	b.started = false
	b.mu.Unlock()

	if relay == nil || !started {
		return nil
	}
	return relay.Close()
}

// Subscribe 订阅通道
//
// 同一监听器在同一通道上已有有效句柄时直接返回该句柄，不会重复投递。
func (b *Bus) Subscribe(ch Channel, listener Listener, scope Scope) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subs[ch]
	for _, sub := range current {
		if sub.Active() && sameListener(sub.listener, listener) {
			return sub
		}
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		channel:  ch,
		listener: listener,
		scope:    scope,
	}
	sub.active.Store(true)

	next := make([]*Subscription, 0, len(current)+1)
	next = append(next, current...)
	b.subs[ch] = append(next, sub)

	b.logger.Debug(context.Background(), "subscribed",
		logging.String("channel", string(ch)),
		logging.String("subscription", sub.id),
		logging.String("scope", scope.String()))
	return sub
}

// Unsubscribe 释放订阅；nil 或已失效的句柄为空操作
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if !sub.active.Swap(false) {
		return
	}
	current := b.subs[sub.channel]
	next := make([]*Subscription, 0, len(current))
	for _, s := range current {
		if s != sub {
			next = append(next, s)
		}
	}
	if len(next) == 0 {
		delete(b.subs, sub.channel)
	} else {
		b.subs[sub.channel] = next
	}

	b.logger.Debug(context.Background(), "unsubscribed",
		logging.String("channel", string(sub.channel)),
		logging.String("subscription", sub.id))
}

// Publish 同步投递给通道上的全部有效订阅，随后转发给 Relay
//
// 缺少 entityId 的消息被拒绝，不投递也不转发。
func (b *Bus) Publish(ctx context.Context, ch Channel, msg Message) error {
	if err := msg.Validate(); err != nil {
		b.observer.MessageRejected(ch)
		return err
	}
	b.observer.MessagePublished(ch)
	b.deliver(ctx, ch, msg, false)

	if b.relay == nil {
		return nil
	}
	env := Envelope{
		Origin:    b.id,
		Channel:   ch,
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Message:   msg,
	}
	if err := b.relay.Forward(ctx, env); err != nil {
		b.observer.RelayFailed(ch)
		b.logger.Warn(ctx, "relay forward failed",
			logging.String("channel", string(ch)),
			logging.String("envelope", env.ID),
			logging.Error(err))
	}
	return nil
}

// receive 处理 Relay 送达的远端消息，只投递给 application 范围的订阅
func (b *Bus) receive(ctx context.Context, env Envelope) {
	if env.Origin == b.id {
		return
	}
	if err := env.Message.Validate(); err != nil {
		b.observer.MessageRejected(env.Channel)
		b.logger.Warn(ctx, "dropping relayed message", logging.String("envelope", env.ID), logging.Error(err))
		return
	}
	b.deliver(ctx, env.Channel, env.Message, true)
}

func (b *Bus) deliver(ctx context.Context, ch Channel, msg Message, relayed bool) {
	b.mu.RLock()
	snapshot := b.subs[ch]
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range snapshot {
		if !sub.Active() {
			continue
		}
		if relayed && sub.scope != ScopeApplication {
			continue
		}
		b.invoke(ctx, sub, msg)
		delivered++
	}
	b.observer.MessageDelivered(ch, delivered)
}

func (b *Bus) invoke(ctx context.Context, sub *Subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(ctx, "listener panicked",
				logging.String("channel", string(sub.channel)),
				logging.String("subscription", sub.id),
				logging.Any("panic", r))
		}
	}()
	sub.listener.OnMessage(ctx, msg)
}

// Stats 总线统计信息
type Stats struct {
	Subscriptions map[Channel]int `json:"subscriptions"`
	RelayEnabled  bool            `json:"relay_enabled"`
}

// Stats 返回每个通道的有效订阅数
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[Channel]int, len(b.subs))
	for ch, subs := range b.subs {
		counts[ch] = len(subs)
	}
	return Stats{Subscriptions: counts, RelayEnabled: b.relay != nil}
}
