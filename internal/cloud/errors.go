package cloud

import (
	"errors"
	"fmt"
)

// ErrUnknownProvider — для указанного cloud нет зарегистрированного адаптера.
var ErrUnknownProvider = errors.New("unknown cloud provider")

// TransientError — ошибка, которая должна пройти при повторе:
// throttling, таймаут, временная нехватка capacity.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError — ошибка, которую повтор не исправит:
// некорректные параметры, квота провайдера, конфликт ресурса.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Transientf создаёт TransientError.
func Transientf(format string, args ...any) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Permanentf создаёт PermanentError.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsTransient проверяет, классифицирована ли ошибка как transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent проверяет, классифицирована ли ошибка как permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
