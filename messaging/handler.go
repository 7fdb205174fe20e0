package messaging

import (
	"context"
	"reflect"
)

// Listener 消息监听器
//
// 同一 Bus 上以接口相等判断监听器身份，实现应为指针类型；
// 不可比较的监听器（如 ListenerFunc）不做去重。
type Listener interface {
	OnMessage(ctx context.Context, msg Message)
}

// ListenerFunc 函数适配器
type ListenerFunc func(ctx context.Context, msg Message)

func (f ListenerFunc) OnMessage(ctx context.Context, msg Message) { f(ctx, msg) }

func sameListener(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}
