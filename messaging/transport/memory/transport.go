// Package memory 提供进程内的 Relay 实现
// 多个 Bus 通过同一个 Hub 互相转发 application 范围的消息，适用于单机多宿主和测试场景
package memory

import (
	"context"
	"fmt"
	"sync"

	"boatsync/logging"
	"boatsync/messaging"
)

// Hub 内存消息中枢
//
// 特性:
//   - 基于有界队列的异步转发，队列满时丢弃（至多一次）
//   - 单个 Worker 保证同一 Hub 内的转发顺序
//   - 经过 JSON 编解码，与网络 Relay 行为一致
type Hub struct {
	queue     chan []byte
	queueSize int
	endpoints []*Relay
	running   bool
	mutex     sync.RWMutex
	wg        sync.WaitGroup
	logger    logging.Logger
	dropped   int
}

// NewHub 创建内存中枢
//
// 参数:
//   - queueSize: 队列大小（<=0 时使用默认 256）
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Hub{
		queue:     make(chan []byte, queueSize),
		queueSize: queueSize,
		logger:    logging.GetLogger().WithFields(logging.String("component", "relay.memory")),
	}
}

// Endpoint 为一个 Bus 创建接入点
func (h *Hub) Endpoint() *Relay {
	r := &Relay{hub: h}
	h.mutex.Lock()
	h.endpoints = append(h.endpoints, r)
	h.mutex.Unlock()
	return r
}

func (h *Hub) enqueue(ctx context.Context, env messaging.Envelope) error {
	data, err := messaging.MarshalEnvelope(env)
	if err != nil {
		return err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.running {
		return fmt.Errorf("memory hub is not running")
	}
	select {
	case h.queue <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.dropped++
		return fmt.Errorf("relay queue is full")
	}
}

// Stats 中枢统计信息
type Stats struct {
	Running    bool
	Endpoints  int
	QueueSize  int
	QueueDepth int
	Dropped    int
}

func (h *Hub) Stats() Stats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return Stats{
		Running:    h.running,
		Endpoints:  len(h.endpoints),
		QueueSize:  h.queueSize,
		QueueDepth: len(h.queue),
		Dropped:    h.dropped,
	}
}

// Relay Hub 上的一个接入点，实现 messaging.Relay
type Relay struct {
	hub     *Hub
	mu      sync.RWMutex
	inbound messaging.InboundFunc
}

func (r *Relay) Forward(ctx context.Context, env messaging.Envelope) error {
	return r.hub.enqueue(ctx, env)
}

// Start 注册回调；首个接入点启动时同时启动 Hub
func (r *Relay) Start(ctx context.Context, inbound messaging.InboundFunc) error {
	r.mu.Lock()
	r.inbound = inbound
	r.mu.Unlock()
	return r.hub.start(ctx)
}

// Close 停止接收；Hub 在所有接入点关闭后停止
func (r *Relay) Close() error {
	r.mu.Lock()
	r.inbound = nil
	r.mu.Unlock()
	return r.hub.release()
}

func (r *Relay) callback() messaging.InboundFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inbound
}
