package widget

import (
	"context"
)

// Record 工作集中的一条记录
type Record struct {
	ID     string         `json:"Id"`
	Fields map[string]any `json:"fields"`
}

// Field 读取字段值
func (r Record) Field(name string) any {
	if name == "Id" {
		return r.ID
	}
	return r.Fields[name]
}

// FieldEdit 单个字段的草稿修改
type FieldEdit struct {
	RecordID string `json:"Id"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
}

// Location 地理坐标
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Marker 地图标记
type Marker struct {
	Location Location `json:"location"`
}

// QueryService 按筛选条件返回工作集
type QueryService interface {
	ListBoats(ctx context.Context, boatTypeID string) ([]Record, error)
}

// BatchUpdater 批量更新，整体成功或整体失败
type BatchUpdater interface {
	UpdateBoats(ctx context.Context, edits []FieldEdit) error
}

// RecordLookup 按实体 ID 读取坐标，可能返回 NOT_FOUND 或 FORBIDDEN
type RecordLookup interface {
	Location(ctx context.Context, id string) (Location, error)
}

// Refresher 由 EditReconciler 在保存成功后调用，必须丢弃保存前发起的查询
type Refresher interface {
	Reload(ctx context.Context) *Pending
}

// Observer 组件指标回调
type Observer interface {
	FetchCompleted(widget string, err error)
	SubmitCompleted(err error)
}

type noopObserver struct{}

func (noopObserver) FetchCompleted(string, error) {}
func (noopObserver) SubmitCompleted(error)        {}
