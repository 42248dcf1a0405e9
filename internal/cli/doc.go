// Package cli реализует инструмент командной строки Armada.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Armada API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для submit batch-заявок и наблюдения за jobs.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Armada API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	job, err := client.GetJob(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: armada job tasks ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - job: submit, show, tasks
//
// Каждая группа создаётся через фабричную функцию (NewJobCmd),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
