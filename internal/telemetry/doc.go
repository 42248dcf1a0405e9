// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//
// Все сервисы используют единый формат логирования
// и экспортируют Prometheus метрики на /metrics endpoint.
package telemetry
