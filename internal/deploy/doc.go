// Package deploy реализует координатор deployments.
//
// Координатор владеет жизненным циклом deployment:
//   - admission control — не больше одного активного deployment на проект
//   - создание записи со снимком окружения проекта
//   - постановка на асинхронное выполнение (RabbitMQ + polling fallback)
//   - rollback на предыдущий успешный deployment
//   - batch deploy по нескольким проектам
//   - отмена, ручные терминальные переходы, статистика
//
// Инвариант единственного активного deployment обеспечивается на двух
// уровнях: per-project mutex внутри процесса (lock.go) и partial unique
// index uq_deployments_active в БД между процессами.
//
// Структура:
//   - coordinator.go — операции координатора
//   - validate.go    — проверки перед deploy
//   - lock.go        — keyed mutex по проектам
//   - errors.go      — ошибки пакета
package deploy
