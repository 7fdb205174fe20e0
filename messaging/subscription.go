package messaging

import "sync/atomic"

// Subscription 订阅句柄，由创建它的组件独占并负责释放
type Subscription struct {
	id       string
	channel  Channel
	listener Listener
	scope    Scope
	active   atomic.Bool
}

func (s *Subscription) ID() string         { return s.id }
func (s *Subscription) Channel() Channel   { return s.channel }
func (s *Subscription) Scope() Scope       { return s.scope }
func (s *Subscription) Listener() Listener { return s.listener }

// Active 句柄是否仍有效；nil 句柄视为无效
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}
