package messaging

import "context"

// InboundFunc Relay 收到远端信封后的回调
type InboundFunc func(ctx context.Context, env Envelope)

// Relay 跨宿主转发 application 范围消息的传输层
//
// 投递语义为至多一次：转发失败只记录日志，不重试。
type Relay interface {
	// Forward 将本地发布的消息转发给其他宿主
	Forward(ctx context.Context, env Envelope) error
	// Start 开始接收远端消息，inbound 可能在任意 goroutine 上被调用
	Start(ctx context.Context, inbound InboundFunc) error
	Close() error
}

// Observer 总线指标回调
type Observer interface {
	MessagePublished(ch Channel)
	MessageDelivered(ch Channel, listeners int)
	MessageRejected(ch Channel)
	RelayFailed(ch Channel)
}

type noopObserver struct{}

func (noopObserver) MessagePublished(Channel)      {}
func (noopObserver) MessageDelivered(Channel, int) {}
func (noopObserver) MessageRejected(Channel)       {}
func (noopObserver) RelayFailed(Channel)           {}
