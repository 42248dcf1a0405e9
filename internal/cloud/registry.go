package cloud

import (
	"fmt"
	"sync"
)

// Registry — реестр адаптеров по идентификатору провайдера.
//
// Адаптер резолвится один раз при диспатче task (по полю params.cloud),
// а не на каждой попытке. Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register добавляет адаптер для провайдера.
// Повторная регистрация того же провайдера перезаписывает адаптер.
func (r *Registry) Register(provider string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[provider] = adapter
}

// Get возвращает адаптер для провайдера.
func (r *Registry) Get(provider string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return adapter, nil
}

// Providers возвращает список зарегистрированных провайдеров.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		providers = append(providers, name)
	}
	return providers
}
