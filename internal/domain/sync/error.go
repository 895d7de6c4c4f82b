package sync

import (
	"errors"
	"fmt"
)

var (
	ErrEntityNotFound          = errors.New("entity not found")
	ErrConflictNotFound        = errors.New("conflict not found")
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")
	ErrInvalidStrategy         = errors.New("invalid resolution strategy")
	ErrInvalidTimestamp        = errors.New("invalid timestamp")
	ErrInvalidCursor           = errors.New("invalid cursor")
)

// ErrorCode код ошибки, видимый клиенту
type ErrorCode string

const (
	CodeInvalidPayload    ErrorCode = "INVALID_PAYLOAD"
	CodeUnsupportedEntity ErrorCode = "UNSUPPORTED_ENTITY"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeVersionMismatch   ErrorCode = "VERSION_MISMATCH"
	CodeDeleteUpdate      ErrorCode = "DELETE_UPDATE"
	CodeBatchTooLarge     ErrorCode = "BATCH_TOO_LARGE"
	CodeEmptyBatch        ErrorCode = "EMPTY_BATCH"
	CodeInternal          ErrorCode = "INTERNAL"
)

// OpError ошибка обработки операции с кодом для ответа
type OpError struct {
	Code ErrorCode
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErrorf(code ErrorCode, format string, args ...any) *OpError {
	return &OpError{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf извлекает код из цепочки ошибок, по умолчанию INTERNAL
func CodeOf(err error) ErrorCode {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Code
	}
	if errors.Is(err, ErrEntityNotFound) {
		return CodeNotFound
	}
	return CodeInternal
}

// BatchRejectedError отказ в обработке пакета целиком
type BatchRejectedError struct {
	Code    ErrorCode
	Message string
	Reply   *BatchReply
}

func (e *BatchRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
