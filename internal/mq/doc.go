// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Контракт доставки: at-least-once, manual ack. Worker подтверждает
// сообщение только после durable-фиксации исхода в БД (late ack),
// поэтому падение воркера приводит к redelivery, а не к потере task.
//
// Отложенная повторная доставка реализована через tasks.retry:
// очередь без consumer'а, per-message TTL, dead-letter маршрутизация
// обратно в рабочую очередь.
//
// Exchanges:
//   - armada.tasks — dispatch и retry сообщений tasks
//   - armada.dlq   — dead letter queue для unparseable сообщений
package mq
