package widget

import (
	"context"
	"sync"

	"boatsync/errors"
	"boatsync/logging"
	"boatsync/messaging"
)

// SyncOption SelectionSynchronizer 构造选项
type SyncOption func(*SelectionSynchronizer)

// WithBoundContext 绑定固定实体，实例生命周期内不订阅、不接受消息
func WithBoundContext(id string) SyncOption {
	return func(s *SelectionSynchronizer) {
		if id != "" {
			s.bound = true
			s.selected = id
		}
	}
}

// WithSyncChannel 设置订阅通道
func WithSyncChannel(ch messaging.Channel) SyncOption {
	return func(s *SelectionSynchronizer) { s.channel = ch }
}

// WithScope 设置订阅范围，默认 application
func WithScope(scope messaging.Scope) SyncOption {
	return func(s *SelectionSynchronizer) { s.scope = scope }
}

// WithSyncLogger 设置日志
func WithSyncLogger(logger logging.Logger) SyncOption {
	return func(s *SelectionSynchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSyncObserver 设置指标回调
func WithSyncObserver(observer Observer) SyncOption {
	return func(s *SelectionSynchronizer) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// SelectionSynchronizer 跟随组件
//
// 两种状态：Bound（有固定上下文，永不订阅）与 Following（订阅通道、选中可变）。
// 选中变化时按实体 ID 查询坐标，同一 ID 不重复查询；查询在途时到达的新 ID
// 会发起新查询，旧查询的结果按代数丢弃（最新者胜出）。
type SelectionSynchronizer struct {
	bus      *messaging.Bus
	channel  messaging.Channel
	scope    messaging.Scope
	lookup   RecordLookup
	logger   logging.Logger
	observer Observer
	bound    bool

	mu       sync.Mutex
	sub      *messaging.Subscription
	selected string
	loaded   bool
	gen      uint64
	markers  []Marker
	err      error

	inflight sync.WaitGroup
}

// NewSelectionSynchronizer 创建跟随组件，需调用 Connect 后才开始工作
func NewSelectionSynchronizer(bus *messaging.Bus, lookup RecordLookup, opts ...SyncOption) *SelectionSynchronizer {
	s := &SelectionSynchronizer{
		bus:      bus,
		channel:  messaging.BoatChannel,
		scope:    messaging.ScopeApplication,
		lookup:   lookup,
		logger:   logging.GetLogger().WithFields(logging.String("component", "widget.selection")),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect Following 状态下订阅通道（重复调用为空操作）；Bound 状态下只加载一次固定实体
func (s *SelectionSynchronizer) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.bound {
		if s.loaded {
			s.mu.Unlock()
			return
		}
		s.loaded = true
		s.gen++
		gen, id := s.gen, s.selected
		s.mu.Unlock()
		s.startLookup(ctx, gen, id)
		return
	}
	if s.sub.Active() {
		s.mu.Unlock()
		return
	}
	s.sub = s.bus.Subscribe(s.channel, s, s.scope)
	s.mu.Unlock()
}

// Disconnect 释放订阅；Bound 实例无需释放
func (s *SelectionSynchronizer) Disconnect() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		s.bus.Unsubscribe(sub)
	}
}

// OnMessage 实现 messaging.Listener
func (s *SelectionSynchronizer) OnMessage(ctx context.Context, msg messaging.Message) {
	if msg.EntityID == "" {
		return
	}
	s.mu.Lock()
	if s.bound {
		s.mu.Unlock()
		s.logger.Debug(ctx, "bound instance ignores message", logging.String("entity_id", msg.EntityID))
		return
	}
	if msg.EntityID == s.selected {
		s.mu.Unlock()
		return
	}
	s.selected = msg.EntityID
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.startLookup(ctx, gen, msg.EntityID)
}

func (s *SelectionSynchronizer) startLookup(ctx context.Context, gen uint64, id string) {
	lookupCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		loc, err := s.lookup.Location(lookupCtx, id)
		s.apply(lookupCtx, gen, id, loc, err)
	}()
}

func (s *SelectionSynchronizer) apply(ctx context.Context, gen uint64, id string, loc Location, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	if err != nil {
		if !errors.IsNotFound(err) && !errors.IsErrorCode(err, errors.ErrCodeForbidden) {
			err = errors.WrapError(err, errors.ErrCodeFetch, "load location")
		}
		s.err = err
		s.markers = nil
		if !s.bound {
			s.selected = ""
		}
		s.observer.FetchCompleted("selection", err)
		s.logger.Warn(ctx, "location lookup failed", logging.String("entity_id", id), logging.Error(err))
		return
	}
	s.err = nil
	s.markers = []Marker{{Location: loc}}
	s.observer.FetchCompleted("selection", nil)
}

// Wait 等待在途查询结束
func (s *SelectionSynchronizer) Wait() { s.inflight.Wait() }

// Bound 是否绑定固定上下文
func (s *SelectionSynchronizer) Bound() bool { return s.bound }

// Subscribed 是否持有有效订阅
func (s *SelectionSynchronizer) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub.Active()
}

func (s *SelectionSynchronizer) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *SelectionSynchronizer) Markers() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Marker(nil), s.markers...)
}

// ShowMap 有标记时才展示地图
func (s *SelectionSynchronizer) ShowMap() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markers) > 0
}

func (s *SelectionSynchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
