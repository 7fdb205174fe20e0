package memory

import (
	"context"

	"boatsync/logging"
	"boatsync/messaging"
)

// dispatch 解码后分发给所有接入点，回环由 Bus 按 origin 过滤
func (h *Hub) dispatch(ctx context.Context, data []byte) {
	env, err := messaging.UnmarshalEnvelope(data)
	if err != nil {
		h.logger.Warn(ctx, "decode envelope failed", logging.Error(err))
		return
	}

	h.mutex.RLock()
	endpoints := make([]*Relay, len(h.endpoints))
	copy(endpoints, h.endpoints)
	h.mutex.RUnlock()

	for _, ep := range endpoints {
		if inbound := ep.callback(); inbound != nil {
			inbound(ctx, env)
		}
	}
}
