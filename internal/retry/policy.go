// Package retry содержит политику повторных попыток для tasks.
//
// Backoff — экспоненциальный с full jitter: случайная задержка
// в диапазоне [0, min(initial * 2^(attempt-1), max)]. Jitter размазывает
// повторные попытки tasks одного тенанта по времени и предотвращает
// синхронные retry-штормы.
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Значения по умолчанию.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 2 * time.Second
	DefaultMaxDelay     = 2 * time.Minute
)

// Policy — политика retry для выполнения tasks.
//
// MaxRetries ограничивает общее число попыток: task, исчерпавшая лимит,
// помечается FAILED независимо от типа последней ошибки.
type Policy struct {
	// MaxRetries — максимальное число попыток выполнения.
	MaxRetries int

	// InitialDelay — базовая задержка перед первым retry.
	InitialDelay time.Duration

	// MaxDelay — потолок задержки.
	MaxDelay time.Duration
}

// Default возвращает политику по умолчанию.
func Default() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Backoff возвращает задержку перед retry номер attempt (1-indexed:
// attempt=1 — первый retry после исходной неудачи).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	initial := p.InitialDelay
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	base := float64(initial) * math.Pow(2, float64(attempt-1))
	if base > float64(maxDelay) {
		base = float64(maxDelay)
	}

	return time.Duration(rand.Float64() * base)
}

// Exhausted проверяет, исчерпаны ли попытки после attempts выполнений.
func (p Policy) Exhausted(attempts int) bool {
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return attempts >= maxRetries
}
