// Package notify 定义组件向宿主外壳发出的一次性通知
//
// 加载事件驱动宿主的加载指示器，Toast 交由宿主展示；两者都不作为状态保留。
package notify

import (
	"context"
	"sync"

	"boatsync/logging"
)

// LoadEvent 加载状态事件
type LoadEvent string

const (
	Loading     LoadEvent = "loading"
	DoneLoading LoadEvent = "doneloading"
)

// Variant Toast 类型
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
)

// Toast 一次性提示
type Toast struct {
	Title   string  `json:"title"`
	Message string  `json:"message"`
	Variant Variant `json:"variant"`
}

// Sink 通知接收方
type Sink interface {
	Load(ctx context.Context, event LoadEvent)
	Toast(ctx context.Context, toast Toast)
}

// Discard 丢弃所有通知
var Discard Sink = discard{}

type discard struct{}

func (discard) Load(context.Context, LoadEvent) {}
func (discard) Toast(context.Context, Toast)    {}

// Fanout 将通知依次转发给多个 Sink
type Fanout []Sink

func (f Fanout) Load(ctx context.Context, event LoadEvent) {
	for _, s := range f {
		s.Load(ctx, event)
	}
}

func (f Fanout) Toast(ctx context.Context, toast Toast) {
	for _, s := range f {
		s.Toast(ctx, toast)
	}
}

// LogSink 把通知写入日志
type LogSink struct {
	Logger logging.Logger
}

func (s LogSink) Load(ctx context.Context, event LoadEvent) {
	s.Logger.Debug(ctx, "load event", logging.String("event", string(event)))
}

func (s LogSink) Toast(ctx context.Context, toast Toast) {
	fields := []logging.Field{
		logging.String("title", toast.Title),
		logging.String("message", toast.Message),
		logging.String("variant", string(toast.Variant)),
	}
	if toast.Variant == VariantError {
		s.Logger.Warn(ctx, "toast", fields...)
		return
	}
	s.Logger.Info(ctx, "toast", fields...)
}

// Recorder 记录全部通知，供测试和宿主轮询使用
type Recorder struct {
	mu     sync.Mutex
	loads  []LoadEvent
	toasts []Toast
}

func (r *Recorder) Load(ctx context.Context, event LoadEvent) {
	r.mu.Lock()
	r.loads = append(r.loads, event)
	r.mu.Unlock()
}

func (r *Recorder) Toast(ctx context.Context, toast Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, toast)
	r.mu.Unlock()
}

func (r *Recorder) LoadEvents() []LoadEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LoadEvent(nil), r.loads...)
}

func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Drain 返回并清空已记录的 Toast
func (r *Recorder) Drain() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.toasts
	r.toasts = nil
	return out
}
