package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"runtime"

	"boatsync/logging"
)

// Wrap 包装错误，添加错误码和上下文信息
// 已识别的基础设施错误会先经 Normalize 处理，保持原有错误码
func Wrap(ctx context.Context, err error, code ErrorCode, msg string) error {
	if err == nil {
		return nil
	}
	if normalized, ok := Normalize(err).(IError); ok && normalized.Code() != ErrCodeInternal && code == ErrCodeInternal {
		code = normalized.Code()
	}

	_, file, line, _ := runtime.Caller(1)
	logging.GetLogger().Debug(ctx, "wrap error",
		logging.String("message", msg),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)))

	return WrapError(err, code, msg)
}

// WrapWithLog 包装错误并记录警告日志
func WrapWithLog(ctx context.Context, logger logging.Logger, err error, code ErrorCode, msg string, fields ...logging.Field) error {
	if err == nil {
		return nil
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	_, file, line, _ := runtime.Caller(1)
	allFields := append([]logging.Field{
		logging.Error(err),
		logging.String("error_code", string(code)),
		logging.String("location", fmt.Sprintf("%s:%d", file, line)),
	}, fields...)
	logger.Warn(ctx, msg, allFields...)

	return WrapError(err, code, msg)
}

// WrapDatabaseError 包装数据库错误，sql.ErrNoRows 转为 NOT_FOUND
func WrapDatabaseError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	if normalized := Normalize(err); IsNotFound(normalized) {
		return WrapError(err, ErrCodeNotFound, operation)
	}
	return WrapWithLog(ctx, nil, err, ErrCodeDatabase,
		fmt.Sprintf("database operation failed: %s", operation),
		logging.String("operation", operation),
	)
}

// LogFields 返回错误的日志字段：错误本身、错误码，以及 AppError 携带的详情和堆栈
func LogFields(err error) []logging.Field {
	if err == nil {
		return nil
	}
	fields := []logging.Field{logging.Error(err), logging.String("error_code", string(GetErrorCode(err)))}
	var appErr *AppError
	if !stdErrors.As(err, &appErr) {
		return fields
	}
	if details := appErr.Details(); len(details) > 0 {
		fields = append(fields, logging.Any("details", details))
	}
	if stack := appErr.Stack(); stack != "" {
		fields = append(fields, logging.String("stack", stack))
	}
	return fields
}
