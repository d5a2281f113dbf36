// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (репозитории, coordinator, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - server_handler.go     — обработчики для /servers
//   - project_handler.go    — обработчики для /projects
//   - deployment_handler.go — обработчики для deployments (deploy, rollback, cancel)
//   - stage_handler.go      — обработчики для pipeline stages
//   - pipeline_handler.go   — обработчики для pipeline runs
//
// API предоставляет REST endpoints для управления серверами, проектами,
// deployments и pipeline.
package api
