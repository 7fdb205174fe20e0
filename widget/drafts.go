package widget

import (
	"sync"

	"boatsync/errors"
)

type draftKey struct {
	recordID string
	field    string
}

// ErrSubmitInProgress 提交进行中时草稿集被锁定
var ErrSubmitInProgress = errors.NewError(errors.ErrCodeInvalidInput, "a save is in progress")

// DraftSet 有序的待提交字段修改，按 (记录, 字段) 去重
//
// 提交期间草稿集被锁定，只能整体清空，不会出现部分清空。
type DraftSet struct {
	mu     sync.Mutex
	edits  []FieldEdit
	index  map[draftKey]int
	sealed bool
}

func NewDraftSet() *DraftSet {
	return &DraftSet{index: make(map[draftKey]int)}
}

// Stage 记录一处修改；同一记录同一字段的再次修改原位覆盖
func (d *DraftSet) Stage(edit FieldEdit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sealed {
		return ErrSubmitInProgress
	}
	key := draftKey{recordID: edit.RecordID, field: edit.Field}
	if i, ok := d.index[key]; ok {
		d.edits[i] = edit
		return nil
	}
	d.index[key] = len(d.edits)
	d.edits = append(d.edits, edit)
	return nil
}

// Snapshot 按暂存顺序返回副本
func (d *DraftSet) Snapshot() []FieldEdit {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]FieldEdit, len(d.edits))
	copy(out, d.edits)
	return out
}

func (d *DraftSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.edits)
}

// Clear 整体清空
func (d *DraftSet) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.edits = nil
	d.index = make(map[draftKey]int)
}

func (d *DraftSet) seal() {
	d.mu.Lock()
	d.sealed = true
	d.mu.Unlock()
}

func (d *DraftSet) unseal() {
	d.mu.Lock()
	d.sealed = false
	d.mu.Unlock()
}
