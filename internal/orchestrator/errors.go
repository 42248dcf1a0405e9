package orchestrator

import "errors"

// Ошибки валидации batch. Возвращаются до персистенции:
// ни одной строки job/task при них не создаётся.
var (
	// ErrEmptyBatch — batch без инстансов.
	ErrEmptyBatch = errors.New("batch is empty")

	// ErrBatchTooLarge — batch превышает максимальный размер.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrInvalidParams — параметры инстанса не прошли валидацию.
	ErrInvalidParams = errors.New("invalid instance params")
)
