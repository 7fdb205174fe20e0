// Package messaging 提供组件间选中状态同步所用的轻量发布/订阅总线
//
// 总线只负责投递，不解释消息内容；发布者与订阅者之间约定的载荷
// 仅有一个字段 entityId。
package messaging

import (
	"encoding/json"
	"time"

	"boatsync/errors"
)

// Channel 消息通道名称
type Channel string

// BoatChannel 船只选中状态通道
const BoatChannel Channel = "boatMessageChannel"

// Scope 订阅可见范围
type Scope int

const (
	// ScopeLocal 只接收同一 Bus 上发布的消息
	ScopeLocal Scope = iota
	// ScopeApplication 还接收经 Relay 从其他宿主转发来的消息
	ScopeApplication
)

func (s Scope) String() string {
	if s == ScopeApplication {
		return "application"
	}
	return "local"
}

// Message 选中消息，值类型不可变
type Message struct {
	EntityID string `json:"entityId"`
}

// Validate 缺少 entityId 的消息一律拒绝
func (m Message) Validate() error {
	if m.EntityID == "" {
		return errors.NewError(errors.ErrCodeInvalidInput, "message is missing entityId")
	}
	return nil
}

// Envelope 跨宿主转发时的消息信封
type Envelope struct {
	Origin    string
	Channel   Channel
	ID        string
	Timestamp time.Time
	Message   Message
}

type wireEnvelope struct {
	Origin    string          `json:"origin"`
	Channel   string          `json:"channel"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalEnvelope 编码为 JSON
func MarshalEnvelope(env Envelope) ([]byte, error) {
	if err := env.Message.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(env.Message)
	if err != nil {
		return nil, err
	}
	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return json.Marshal(wireEnvelope{
		Origin:    env.Origin,
		Channel:   string(env.Channel),
		ID:        env.ID,
		Timestamp: ts.UnixNano(),
		Payload:   payload,
	})
}

// UnmarshalEnvelope 解码 JSON 信封
//
// 载荷中的未知字段被忽略；缺少 entityId 或 channel 时返回 INVALID_INPUT。
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, errors.WrapError(err, errors.ErrCodeInvalidInput, "malformed envelope")
	}
	if wire.Channel == "" {
		return Envelope{}, errors.NewError(errors.ErrCodeInvalidInput, "envelope is missing channel")
	}
	var msg Message
	if len(wire.Payload) > 0 {
		if err := json.Unmarshal(wire.Payload, &msg); err != nil {
			return Envelope{}, errors.WrapError(err, errors.ErrCodeInvalidInput, "malformed payload")
		}
	}
	if err := msg.Validate(); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Origin:    wire.Origin,
		Channel:   Channel(wire.Channel),
		ID:        wire.ID,
		Timestamp: time.Unix(0, wire.Timestamp),
		Message:   msg,
	}, nil
}
