// Package worker выполняет отдельные provisioning tasks.
//
// # Обзор
//
// Worker — stateless компонент системы Armada, который выполняет
// отдельные задачи (tasks), созданные Orchestrator'ом. Worker отвечает за:
//
//   - Получение tasks из очереди RabbitMQ (prefetch=1, late ack)
//   - Контроль допуска: rate limit и daily quota tenant'а на общем счётчике
//   - Идемпотентный вызов cloud adapter'а (idempotency key per task)
//   - Retry с exponential backoff через retry-очередь с TTL
//   - Фиксацию результата и инкремент счётчиков job'а в одной транзакции
//
// Workers масштабируются горизонтально — несколько экземпляров
// потребляют из одной очереди tasks.provision.
//
// # Обработка task
//
//  1. Получение dispatch-сообщения, загрузка task из БД
//  2. Терминальная task → дубликат доставки, ack без действий
//  3. Admission: отказ → отложенная редоставка через retry-очередь,
//     attempts не инкрементируется
//  4. PENDING → IN_PROGRESS (guarded update, attempts+1)
//  5. Вызов adapter'а с idempotency key, локальным троттлингом и таймаутом
//  6. Успех → SUCCESS; transient-ошибка с оставшимися попытками →
//     PENDING + редоставка с backoff; иначе → FAILED
//
// # Late ack и at-least-once
//
// Сообщение подтверждается только после durable-фиксации исхода в БД.
// Падение воркера посреди обработки ведёт к redelivery; повторная
// доставка для терминальной task — no-op, повторный вызов adapter'а
// с тем же idempotency key не создаёт второй инстанс.
//
// # Ошибки
//
// Пакет различает два класса ошибок провайдера:
//   - Transient (throttling, нехватка capacity, сетевые сбои) — retry
//     с exponential backoff до исчерпания попыток
//   - Permanent (невалидные параметры, нет прав, превышен лимит
//     аккаунта) — немедленный FAILED без retry
package worker
