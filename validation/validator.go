// Package validation 提供草稿编辑等输入的基础校验
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"boatsync/errors"
)

// IValidator 定义通用验证器接口
type IValidator interface {
	Validate(value any) error
}

// ValidatorFunc 函数适配器
type ValidatorFunc func(value any) error

func (f ValidatorFunc) Validate(value any) error { return f(value) }

// ValidateRequired 验证必填字段
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}

// ValidateStringLength 验证字符串长度，max<=0 表示不限制
func ValidateStringLength(value, fieldName string, min, max int) error {
	length := len([]rune(value))
	if length < min {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s must be at least %d characters (got %d)", fieldName, min, length))
	}
	if max > 0 && length > max {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s must be at most %d characters (got %d)", fieldName, max, length))
	}
	return nil
}

// ValidateEnum 验证枚举值
func ValidateEnum(value, fieldName string, validValues []string) error {
	for _, valid := range validValues {
		if value == valid {
			return nil
		}
	}
	return errors.NewError(errors.ErrCodeValidation,
		fmt.Sprintf("%s must be one of %v (got %q)", fieldName, validValues, value))
}

// ToNumber 将表格单元格的值转换为 float64
//
// 接受数值类型、json.Number 以及可解析的字符串，NaN/Inf 视为无效。
func ToNumber(value any, fieldName string) (float64, error) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, errors.WrapError(err, errors.ErrCodeValidation, fmt.Sprintf("%s must be a number", fieldName))
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errors.WrapError(err, errors.ErrCodeValidation, fmt.Sprintf("%s must be a number", fieldName))
		}
		f = parsed
	default:
		return 0, errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s must be a number (got %T)", fieldName, value))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NewError(errors.ErrCodeValidation, fmt.Sprintf("%s must be a finite number", fieldName))
	}
	return f, nil
}

// ValidateNonNegative 验证非负数
func ValidateNonNegative(value float64, fieldName string) error {
	if value < 0 {
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("%s must not be negative (got %v)", fieldName, value))
	}
	return nil
}
