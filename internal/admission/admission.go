// Package admission реализует гейт допуска попыток выполнения tasks:
// fixed-window rate limiting плюс суточная квота per-tenant.
//
// Оба счётчика живут в разделяемом CounterStore (Redis в проде,
// in-memory для разработки и тестов), поэтому корректны при
// конкурентном доступе из нескольких worker-процессов: инкремент
// атомарен, сравнение с лимитом — по возвращённому значению.
//
// Отказ гейта не проваливает task: worker перечитывает её позже
// через отложенную повторную доставку.
package admission

import (
	"context"
	"fmt"
	"time"
)

// Значения по умолчанию (соответствуют продовым лимитам gateway).
const (
	DefaultRateLimit  = 1000
	DefaultRateWindow = time.Minute
	DefaultDailyQuota = 1000
)

// Decision — результат проверки гейта.
type Decision struct {
	// Allowed — допущена ли попытка.
	Allowed bool

	// RetryAfter — через сколько имеет смысл повторить (при отказе).
	RetryAfter time.Duration
}

// Config — конфигурация Controller.
type Config struct {
	// Store — разделяемое хранилище счётчиков.
	Store CounterStore

	// RateLimit — максимум допусков на окно RateWindow.
	RateLimit int

	// RateWindow — длительность окна rate-лимита.
	RateWindow time.Duration

	// DailyQuota — максимум допущенных попыток на тенанта в сутки.
	DailyQuota int

	// Location — таймзона границы суток для квоты. По умолчанию UTC;
	// зона фиксируется на старте и не меняется.
	Location *time.Location
}

// Controller — комбинированный гейт rate limit + daily quota.
type Controller struct {
	store      CounterStore
	rateLimit  int
	rateWindow time.Duration
	dailyQuota int
	loc        *time.Location

	// now подменяется в тестах.
	now func() time.Time
}

// New создаёт Controller.
func New(cfg Config) *Controller {
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	rateWindow := cfg.RateWindow
	if rateWindow <= 0 {
		rateWindow = DefaultRateWindow
	}
	dailyQuota := cfg.DailyQuota
	if dailyQuota <= 0 {
		dailyQuota = DefaultDailyQuota
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &Controller{
		store:      cfg.Store,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		dailyQuota: dailyQuota,
		loc:        loc,
		now:        time.Now,
	}
}

// TryAcquire проверяет rate-лимит для ключа (композит origin + identity
// на API-слое, tenant — на worker-слое). Fixed window: счётчик окна
// инкрементируется атомарно; при превышении лимита возвращается отказ
// со временем до сброса окна.
func (c *Controller) TryAcquire(ctx context.Context, key string) (Decision, error) {
	now := c.now()
	windowStart := now.Truncate(c.rateWindow)
	counterKey := fmt.Sprintf("rate:%s:%d", key, windowStart.Unix())

	// TTL с запасом в одно окно, чтобы отстающие процессы не потеряли ключ.
	count, err := c.store.Incr(ctx, counterKey, 2*c.rateWindow)
	if err != nil {
		return Decision{}, fmt.Errorf("rate counter incr: %w", err)
	}

	if count > int64(c.rateLimit) {
		return Decision{
			Allowed:    false,
			RetryAfter: windowStart.Add(c.rateWindow).Sub(now),
		}, nil
	}

	return Decision{Allowed: true}, nil
}

// ConsumeDailyQuota списывает единицу суточной квоты тенанта.
// Граница суток — полночь в c.loc. При исчерпании квоты возвращается
// отказ со временем до следующей полуночи.
func (c *Controller) ConsumeDailyQuota(ctx context.Context, tenant string) (Decision, error) {
	now := c.now().In(c.loc)
	counterKey := fmt.Sprintf("quota:%s:%s", tenant, now.Format("20060102"))

	count, err := c.store.Incr(ctx, counterKey, 48*time.Hour)
	if err != nil {
		return Decision{}, fmt.Errorf("quota counter incr: %w", err)
	}

	if count > int64(c.dailyQuota) {
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc).AddDate(0, 0, 1)
		return Decision{
			Allowed:    false,
			RetryAfter: midnight.Sub(now),
		}, nil
	}

	return Decision{Allowed: true}, nil
}
