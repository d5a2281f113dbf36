package domain

// DeploymentStatus — статус выполнения deployment.
//
// Жизненный цикл:
//
//	pending → running → success
//	                  ↘ failed
//	          (или) → cancelled (из pending или running)
type DeploymentStatus string

const (
	// DeploymentStatusPending — deployment создан, но ещё не подхвачен worker'ом.
	DeploymentStatusPending DeploymentStatus = "pending"

	// DeploymentStatusRunning — deployment в процессе выполнения.
	DeploymentStatusRunning DeploymentStatus = "running"

	// DeploymentStatusSuccess — deployment успешно завершён.
	DeploymentStatusSuccess DeploymentStatus = "success"

	// DeploymentStatusFailed — deployment завершился с ошибкой.
	DeploymentStatusFailed DeploymentStatus = "failed"

	// DeploymentStatusCancelled — deployment отменён пользователем.
	DeploymentStatusCancelled DeploymentStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный (deployment завершён).
func (s DeploymentStatus) IsTerminal() bool {
	switch s {
	case DeploymentStatusSuccess, DeploymentStatusFailed, DeploymentStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если deployment активен.
// Активный deployment блокирует запуск нового для того же проекта.
func (s DeploymentStatus) IsActive() bool {
	return s == DeploymentStatusPending || s == DeploymentStatusRunning
}

// TriggeredBy — источник запуска deployment.
type TriggeredBy string

const (
	// TriggeredByManual — запущен пользователем вручную.
	TriggeredByManual TriggeredBy = "manual"

	// TriggeredByAutomatic — запущен планировщиком auto-deploy.
	TriggeredByAutomatic TriggeredBy = "automatic"

	// TriggeredByRollback — создан операцией rollback.
	TriggeredByRollback TriggeredBy = "rollback"
)

// RunStatus — статус выполнения pipeline run.
//
// Словарь статусов совпадает с DeploymentStatus: run отражает
// состояние deployment'а, к которому привязан.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSuccess   RunStatus = "success"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// StageRunStatus — статус выполнения одного stage внутри run.
//
// Жизненный цикл:
//
//	pending → running → success
//	                  ↘ failed
//	pending → skipped (пустой список команд или отмена run)
//	running → cancelled (отмена run)
type StageRunStatus string

const (
	StageRunStatusPending   StageRunStatus = "pending"
	StageRunStatusRunning   StageRunStatus = "running"
	StageRunStatusSuccess   StageRunStatus = "success"
	StageRunStatusFailed    StageRunStatus = "failed"
	StageRunStatusSkipped   StageRunStatus = "skipped"
	StageRunStatusCancelled StageRunStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный.
func (s StageRunStatus) IsTerminal() bool {
	switch s {
	case StageRunStatusSuccess, StageRunStatusFailed, StageRunStatusSkipped, StageRunStatusCancelled:
		return true
	default:
		return false
	}
}

// StageType — фаза pipeline, к которой относится stage.
type StageType string

const (
	// StageTypePreDeploy — подготовительные команды (тесты, сборка).
	StageTypePreDeploy StageType = "pre_deploy"

	// StageTypeDeploy — собственно выкладка кода.
	StageTypeDeploy StageType = "deploy"

	// StageTypePostDeploy — команды после выкладки (миграции, прогрев кэша).
	StageTypePostDeploy StageType = "post_deploy"
)

// Rank возвращает порядковый ранг фазы для сортировки stages.
// pre_deploy всегда раньше deploy, deploy всегда раньше post_deploy,
// независимо от настроенных значений order.
func (t StageType) Rank() int {
	switch t {
	case StageTypePreDeploy:
		return 0
	case StageTypeDeploy:
		return 1
	case StageTypePostDeploy:
		return 2
	default:
		return 3
	}
}

// Valid проверяет, что тип stage известен.
func (t StageType) Valid() bool {
	switch t {
	case StageTypePreDeploy, StageTypeDeploy, StageTypePostDeploy:
		return true
	default:
		return false
	}
}

// ServerStatus — состояние сервера.
type ServerStatus string

const (
	ServerStatusOnline  ServerStatus = "online"
	ServerStatusOffline ServerStatus = "offline"
)
