package widget

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"boatsync/errors"
	"boatsync/logging"
	"boatsync/messaging"
	"boatsync/notify"
)

// ListOption ListController 构造选项
type ListOption func(*ListController)

// WithListChannel 设置发布选中消息的通道
func WithListChannel(ch messaging.Channel) ListOption {
	return func(c *ListController) { c.channel = ch }
}

// WithColumns 覆盖默认列
func WithColumns(columns []Column) ListOption {
	return func(c *ListController) { c.columns = columns }
}

// WithListLogger 设置日志
func WithListLogger(logger logging.Logger) ListOption {
	return func(c *ListController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithListObserver 设置指标回调
func WithListObserver(observer Observer) ListOption {
	return func(c *ListController) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// WithDrafts 使用外部创建的草稿集
func WithDrafts(drafts *DraftSet) ListOption {
	return func(c *ListController) {
		if drafts != nil {
			c.drafts = drafts
		}
	}
}

// ListController 列表组件：持有工作集、发布用户选中、管理加载状态
//
// 每次 SetFilter 递增代数，旧代数的查询结果到达时被丢弃；同一代数上的
// 并发 Refresh 经 singleflight 合并为一次查询，并共享同一个加载括号。
type ListController struct {
	bus      *messaging.Bus
	channel  messaging.Channel
	query    QueryService
	logger   logging.Logger
	observer Observer
	drafts   *DraftSet
	load     loadBracket
	flight   singleflight.Group

	mu       sync.Mutex
	columns  []Column
	filter   string
	gen      uint64
	records  []Record
	shape    []Column
	selected string
	err      error
}

// NewListController 创建列表组件
func NewListController(bus *messaging.Bus, query QueryService, sink notify.Sink, opts ...ListOption) *ListController {
	if sink == nil {
		sink = notify.Discard
	}
	c := &ListController{
		bus:      bus,
		channel:  messaging.BoatChannel,
		query:    query,
		logger:   logging.GetLogger().WithFields(logging.String("component", "widget.list")),
		observer: noopObserver{},
		drafts:   NewDraftSet(),
		load:     loadBracket{sink: sink},
		columns:  DefaultBoatColumns(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFilter 更新筛选条件并重新查询，正在进行的旧条件查询结果将被丢弃
func (c *ListController) SetFilter(ctx context.Context, key string) *Pending {
	c.mu.Lock()
	c.filter = key
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.logger.Debug(ctx, "filter changed", logging.String("filter", key), logging.Int64("generation", int64(gen)))
	return c.fetch(ctx, gen, key)
}

// Refresh 以当前筛选条件重新查询；已有同代查询在途时合并到该查询
func (c *ListController) Refresh(ctx context.Context) *Pending {
	c.mu.Lock()
	gen, key := c.gen, c.filter
	c.mu.Unlock()
	return c.fetch(ctx, gen, key)
}

// Reload 筛选条件不变但递增代数，在途的旧查询结果将被丢弃
//
// 数据已在外部变更时使用：在途查询可能读到变更前的行，不能合并。
func (c *ListController) Reload(ctx context.Context) *Pending {
	c.mu.Lock()
	c.gen++
	gen, key := c.gen, c.filter
	c.mu.Unlock()

	c.logger.Debug(ctx, "reload", logging.String("filter", key), logging.Int64("generation", int64(gen)))
	return c.fetch(ctx, gen, key)
}

func (c *ListController) fetch(ctx context.Context, gen uint64, key string) *Pending {
	c.load.open(ctx)

	// 合并后的查询可能服务多个调用方，不随首个调用方取消
	fetchCtx := context.WithoutCancel(ctx)
	results := c.flight.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return nil, c.run(fetchCtx, gen, key)
	})

	p := newPending()
	go func() {
		res := <-results
		c.load.close(fetchCtx)
		p.resolve(res.Err)
	}()
	return p
}

func (c *ListController) run(ctx context.Context, gen uint64, key string) error {
	records, err := c.query.ListBoats(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.logger.Debug(ctx, "discarding superseded result",
			logging.String("filter", key), logging.Int64("generation", int64(gen)))
		return nil
	}
	if err != nil {
		c.records = []Record{}
		c.shape = nil
		c.err = errors.WrapError(err, errors.ErrCodeFetch, "load boats")
		c.observer.FetchCompleted("list", c.err)
		c.logger.Warn(ctx, "fetch failed", logging.String("filter", key), logging.Error(err))
		return c.err
	}
	if records == nil {
		records = []Record{}
	}
	c.records = records
	c.shape = append([]Column(nil), c.columns...)
	c.err = nil
	c.observer.FetchCompleted("list", nil)
	c.logger.Debug(ctx, "fetch done", logging.String("filter", key), logging.Int("records", len(records)))
	return nil
}

// SelectRow 设置本地选中后在通道上发布 {entityId}
func (c *ListController) SelectRow(ctx context.Context, id string) error {
	msg := messaging.Message{EntityID: id}
	if err := msg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.selected = id
	c.mu.Unlock()
	return c.bus.Publish(ctx, c.channel, msg)
}

// StageEdit 校验后暂存一处修改
func (c *ListController) StageEdit(edit FieldEdit) error {
	c.mu.Lock()
	columns := c.columns
	c.mu.Unlock()

	normalized, err := ValidateEdit(edit, columns)
	if err != nil {
		return err
	}
	return c.drafts.Stage(normalized)
}

// Drafts 草稿集
func (c *ListController) Drafts() *DraftSet { return c.drafts }

// Columns 当前可编辑列定义
func (c *ListController) Columns() []Column {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Column(nil), c.columns...)
}

// Records 当前工作集副本；查询失败后为空
func (c *ListController) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	records := make([]Record, len(c.records))
	copy(records, c.records)
	return records
}

// Shape 最近一次成功查询时的列元数据
func (c *ListController) Shape() []Column {
	c.mu.Lock()
	defer c.mu.Unlock()
	shape := make([]Column, len(c.shape))
	copy(shape, c.shape)
	return shape
}

func (c *ListController) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *ListController) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Err 最近一次查询的错误
func (c *ListController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *ListController) LoadState() LoadState { return c.load.state() }
