// Package cli реализует инструмент командной строки DevFlow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с DevFlow API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления серверами, проектами, deployments
// и pipeline stages.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для DevFlow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	projects, err := client.ListProjects()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: devflow project list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - server:  list, create, show
//   - project: list, create, show, update, validate, updates, stats
//   - deploy:  start, list, show, logs, cancel, rollback, batch
//   - stage:   list, create, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewProjectCmd и
// т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
