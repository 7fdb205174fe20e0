package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"boatsync/logging"
	"boatsync/widget"
)

// LocationCache 为坐标查询加一层缓存
//
// 只缓存成功结果，NOT_FOUND/FORBIDDEN 等错误每次都回源。同一 ID 的并发未命中
// 合并为一次回源。经由 Updater 提交的批量修改会使涉及的记录失效。
type LocationCache struct {
	next   widget.RecordLookup
	cache  *Cache[string, widget.Location]
	flight singleflight.Group
	logger logging.Logger
}

// NewLocationCache 包装 next
func NewLocationCache(next widget.RecordLookup, config Config, logger logging.Logger) *LocationCache {
	if config.Name == "" {
		config.Name = "location"
	}
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &LocationCache{
		next:   next,
		cache:  New[string, widget.Location](config),
		logger: logger.WithFields(logging.String("component", "cache."+config.Name)),
	}
}

// Location 实现 widget.RecordLookup
func (l *LocationCache) Location(ctx context.Context, id string) (widget.Location, error) {
	if loc, ok := l.cache.Get(id); ok {
		return loc, nil
	}
	v, err, shared := l.flight.Do(id, func() (interface{}, error) {
		loc, err := l.next.Location(ctx, id)
		if err != nil {
			return widget.Location{}, err
		}
		l.cache.Set(id, loc)
		return loc, nil
	})
	if shared {
		l.logger.Debug(ctx, "joined in-flight lookup", logging.String("entity_id", id))
	}
	if err != nil {
		return widget.Location{}, err
	}
	return v.(widget.Location), nil
}

// Invalidate 删除指定记录的缓存
func (l *LocationCache) Invalidate(ids ...string) {
	for _, id := range ids {
		l.cache.Delete(id)
	}
}

// Stats 缓存统计
func (l *LocationCache) Stats() CacheStats { return l.cache.Stats() }

// Updater 包装批量更新，提交成功后使涉及的记录失效
func (l *LocationCache) Updater(next widget.BatchUpdater) widget.BatchUpdater {
	return invalidatingUpdater{next: next, cache: l}
}

type invalidatingUpdater struct {
	next  widget.BatchUpdater
	cache *LocationCache
}

func (u invalidatingUpdater) UpdateBoats(ctx context.Context, edits []widget.FieldEdit) error {
	if err := u.next.UpdateBoats(ctx, edits); err != nil {
		return err
	}
	ids := make([]string, 0, len(edits))
	for _, e := range edits {
		ids = append(ids, e.RecordID)
	}
	u.cache.Invalidate(ids...)
	u.cache.logger.Debug(ctx, "invalidated after update", logging.Int("records", len(ids)))
	return nil
}
