// Package cloud абстрагирует provisioning-API облачных провайдеров.
//
// Единственное, что остальная система знает о провайдере — контракт
// Adapter и двухвидовая классификация ошибок (transient/permanent).
// Маппинг провайдер-специфичных кодов в эти два вида живёт внутри
// адаптера и наружу не протекает.
package cloud

import (
	"context"

	"github.com/shaiso/Armada/internal/domain"
)

// Adapter — provisioning-клиент одного облачного провайдера.
//
// CreateInstance обязан быть идемпотентным по idempotencyKey: повторный
// вызов с тем же ключом возвращает уже созданный инстанс, а не создаёт
// второй. Провайдеры с нативными idempotency-токенами (AWS ClientToken)
// пробрасывают ключ как есть; остальные обязаны реализовать
// check-then-create самостоятельно.
type Adapter interface {
	// CreateInstance создаёт инстанс и возвращает его внешний идентификатор.
	// Ошибки классифицируются как *TransientError или *PermanentError.
	CreateInstance(ctx context.Context, params domain.InstanceParams, idempotencyKey string) (string, error)
}
