// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go     — Handler с DI (оркестратор, logger)
//   - routes.go      — регистрация маршрутов
//   - middleware.go  — middleware (logging, recovery)
//   - response.go    — унифицированные JSON-ответы и обработка ошибок
//   - dto.go         — Data Transfer Objects (request/response)
//   - job_handler.go — обработчики для /jobs
//
// API предоставляет REST endpoints для submit batch-заявок
// и наблюдения за прогрессом jobs и tasks.
package api
