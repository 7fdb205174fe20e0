package memory

import (
	"context"
)

// start 启动 Worker，重复调用为空操作
func (h *Hub) start(ctx context.Context) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.running {
		return nil
	}
	h.running = true
	h.wg.Add(1)
	go h.worker(ctx, h.queue)
	return nil
}

// release 当没有接入点仍在接收时关闭队列并等待 Worker 排空
func (h *Hub) release() error {
	h.mutex.Lock()
	if !h.running {
		h.mutex.Unlock()
		return nil
	}
	for _, ep := range h.endpoints {
		if ep.callback() != nil {
			h.mutex.Unlock()
			return nil
		}
	}
	h.running = false
	queue := h.queue
	h.queue = make(chan []byte, h.queueSize)
	h.mutex.Unlock()

	close(queue)
	h.wg.Wait()
	return nil
}

func (h *Hub) worker(ctx context.Context, queue <-chan []byte) {
	defer h.wg.Done()
	for {
		select {
		case data, ok := <-queue:
			if !ok {
				return
			}
			h.dispatch(ctx, data)
		case <-ctx.Done():
			return
		}
	}
}
