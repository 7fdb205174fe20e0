package widget

import (
	"context"
	"sync"

	"boatsync/errors"
	"boatsync/logging"
	"boatsync/notify"
)

// Toast 文案
const (
	SuccessTitle   = "Success"
	MessageShipIt  = "Ship it!"
	ErrorTitle     = "Error"
	noDraftsDetail = "There are no changes to save"
)

// ReconcilerOption EditReconciler 构造选项
type ReconcilerOption func(*EditReconciler)

// WithReconcilerColumns 设置提交前校验所用的列
func WithReconcilerColumns(columns []Column) ReconcilerOption {
	return func(r *EditReconciler) { r.columns = columns }
}

// WithReconcilerLogger 设置日志
func WithReconcilerLogger(logger logging.Logger) ReconcilerOption {
	return func(r *EditReconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithReconcilerObserver 设置指标回调
func WithReconcilerObserver(observer Observer) ReconcilerOption {
	return func(r *EditReconciler) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// EditReconciler 批量提交草稿
//
// 每次 Submit 恰好发出一条 Toast。成功时先清空草稿再调用 Reload；
// 失败时草稿保持原样，不刷新。并发的 Submit 串行执行。
type EditReconciler struct {
	drafts    *DraftSet
	updater   BatchUpdater
	refresher Refresher
	sink      notify.Sink
	logger    logging.Logger
	observer  Observer
	columns   []Column

	submitMu sync.Mutex
}

// NewEditReconciler 创建提交协调器
func NewEditReconciler(drafts *DraftSet, updater BatchUpdater, refresher Refresher, sink notify.Sink, opts ...ReconcilerOption) *EditReconciler {
	if sink == nil {
		sink = notify.Discard
	}
	r := &EditReconciler{
		drafts:    drafts,
		updater:   updater,
		refresher: refresher,
		sink:      sink,
		logger:    logging.GetLogger().WithFields(logging.String("component", "widget.reconciler")),
		observer:  noopObserver{},
		columns:   DefaultBoatColumns(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit 提交草稿集中的全部修改
func (r *EditReconciler) Submit(ctx context.Context) error {
	r.submitMu.Lock()
	defer r.submitMu.Unlock()

	edits := r.drafts.Snapshot()
	if len(edits) == 0 {
		err := errors.NewError(errors.ErrCodeInvalidInput, noDraftsDetail)
		r.fail(ctx, err)
		return err
	}
	for i, edit := range edits {
		normalized, err := ValidateEdit(edit, r.columns)
		if err != nil {
			r.fail(ctx, err)
			return err
		}
		edits[i] = normalized
	}

	// 提交期间锁定草稿集，成功后在解锁前整体清空
	r.drafts.seal()
	err := r.updater.UpdateBoats(ctx, edits)
	if err != nil {
		r.drafts.unseal()
		wrapped := errors.WrapError(err, errors.ErrCodeSubmit, "update boats")
		r.logger.Warn(ctx, "submit failed", append(errors.LogFields(err), logging.Int("edits", len(edits)))...)
		r.sink.Toast(ctx, notify.Toast{Title: ErrorTitle, Message: errors.MessageOf(err), Variant: notify.VariantError})
		r.observer.SubmitCompleted(wrapped)
		return wrapped
	}

	r.sink.Toast(ctx, notify.Toast{Title: SuccessTitle, Message: MessageShipIt, Variant: notify.VariantSuccess})
	r.drafts.Clear()
	r.drafts.unseal()
	r.observer.SubmitCompleted(nil)
	r.logger.Info(ctx, "submit succeeded", logging.Int("edits", len(edits)))

	if r.refresher != nil {
		r.refresher.Reload(ctx)
	}
	return nil
}

func (r *EditReconciler) fail(ctx context.Context, err error) {
	if errors.IsValidation(err) {
		r.logger.Info(ctx, "submit rejected", logging.Error(err))
	} else {
		r.logger.Warn(ctx, "submit rejected", logging.Error(err))
	}
	r.sink.Toast(ctx, notify.Toast{Title: ErrorTitle, Message: errors.MessageOf(err), Variant: notify.VariantError})
	r.observer.SubmitCompleted(err)
}
