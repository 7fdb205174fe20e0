package widget

import (
	"fmt"

	"boatsync/errors"
	"boatsync/validation"
)

// 列类型
const (
	ColumnText     = "text"
	ColumnNumber   = "number"
	ColumnCurrency = "currency"
)

// Column 表格列元数据
type Column struct {
	Label                 string `json:"label"`
	FieldName             string `json:"fieldName"`
	Type                  string `json:"type"`
	Editable              bool   `json:"editable"`
	CurrencyDisplayAs     string `json:"currencyDisplayAs,omitempty"`
	MaximumFractionDigits int    `json:"maximumFractionDigits,omitempty"`
}

const maxTextLength = 255

// DefaultBoatColumns 船只列表的默认列
func DefaultBoatColumns() []Column {
	return []Column{
		{Label: "Name", FieldName: "Name", Type: ColumnText, Editable: true},
		{Label: "Length", FieldName: "Length__c", Type: ColumnNumber, Editable: true},
		{Label: "Price", FieldName: "Price__c", Type: ColumnCurrency, Editable: true, CurrencyDisplayAs: "symbol", MaximumFractionDigits: 2},
		{Label: "Description", FieldName: "Description__c", Type: ColumnText, Editable: true},
	}
}

// ValidateEdit 校验草稿修改是否落在可编辑列上且值与列类型匹配
//
// 数值列的值被规范化为 float64。
func ValidateEdit(edit FieldEdit, columns []Column) (FieldEdit, error) {
	if err := validation.ValidateRequired(edit.RecordID, "Id"); err != nil {
		return edit, err
	}
	var col *Column
	editable := make([]string, 0, len(columns))
	for i := range columns {
		if !columns[i].Editable {
			continue
		}
		editable = append(editable, columns[i].FieldName)
		if columns[i].FieldName == edit.Field {
			col = &columns[i]
		}
	}
	if col == nil {
		return edit, validation.ValidateEnum(edit.Field, "field", editable)
	}

	switch col.Type {
	case ColumnNumber, ColumnCurrency:
		n, err := validation.ToNumber(edit.Value, col.FieldName)
		if err != nil {
			return edit, err
		}
		if err := validation.ValidateNonNegative(n, col.FieldName); err != nil {
			return edit, err
		}
		edit.Value = n
	default:
		s, ok := edit.Value.(string)
		if !ok {
			return edit, errors.NewError(errors.ErrCodeValidation,
				fmt.Sprintf("%s must be text (got %T)", col.FieldName, edit.Value))
		}
		if err := validation.ValidateStringLength(s, col.FieldName, 0, maxTextLength); err != nil {
			return edit, err
		}
	}
	return edit, nil
}
