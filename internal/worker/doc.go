// Package worker выполняет deployments.
//
// # Обзор
//
// Worker — компонент системы DevFlow, который выполняет deployments,
// созданные координатором. Worker отвечает за:
//
//   - Получение deployments из очереди RabbitMQ (event-driven)
//   - Периодическую проверку pending deployments в БД (polling fallback)
//   - Переход pending → running в момент подхвата, не при постановке
//   - Выбор пути выполнения: pipeline из stages или прямой deploy
//   - Финализацию deployment (success/failed) и логи
//   - Обновление commit-информации проекта после успешного deploy
//
// Worker не масштабируется по одному проекту: инвариант одного
// активного deployment на проект обеспечивает координатор, поэтому
// несколько экземпляров воркера никогда не выполняют один проект
// параллельно.
//
// # Пути выполнения
//
// Если у проекта есть включённые pipeline stages, deployment
// выполняется оркестратором pipeline (пакет pipeline). Иначе
// используется прямой путь: git sync рабочей копии и, при наличии
// docker-compose.yml, пересборка и рестарт контейнеров.
//
// # Отмена
//
// CancelDeployment координатора может завершить deployment, пока
// воркер его выполняет. Перед финализацией воркер перечитывает
// deployment из БД и не перетирает уже терминальный статус.
package worker
