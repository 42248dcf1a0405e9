package cloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/Armada/internal/domain"
)

// FakeAdapter — in-process адаптер для разработки и тестов.
//
// Запоминает выданные inst-идентификаторы по idempotency key, поэтому
// повторный вызов с тем же ключом возвращает тот же идентификатор —
// как провайдер с нативной идемпотентностью. Через Fail можно заранее
// заскриптовать исходы отдельных ключей.
type FakeAdapter struct {
	mu        sync.Mutex
	instances map[string]string // idempotency key → instance id
	failures  map[string][]error
	calls     int
}

// NewFakeAdapter создаёт пустой FakeAdapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		instances: make(map[string]string),
		failures:  make(map[string][]error),
	}
}

// Fail задаёт последовательность ошибок для idempotency key.
// Каждый вызов CreateInstance снимает одну ошибку из очереди;
// когда очередь пуста — вызов успешен.
func (f *FakeAdapter) Fail(idempotencyKey string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[idempotencyKey] = append(f.failures[idempotencyKey], errs...)
}

// CreateInstance выдаёт стабильный идентификатор для ключа.
func (f *FakeAdapter) CreateInstance(_ context.Context, _ domain.InstanceParams, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	if queue := f.failures[idempotencyKey]; len(queue) > 0 {
		err := queue[0]
		f.failures[idempotencyKey] = queue[1:]
		return "", err
	}

	if id, ok := f.instances[idempotencyKey]; ok {
		// Повтор с тем же ключом — возвращаем существующий инстанс.
		return id, nil
	}

	id := fmt.Sprintf("i-%s", uuid.New().String()[:12])
	f.instances[idempotencyKey] = id
	return id, nil
}

// Calls возвращает общее число вызовов CreateInstance.
func (f *FakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// InstanceCount возвращает число реально созданных инстансов.
func (f *FakeAdapter) InstanceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}
