package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Deployment — одна попытка привести код проекта в работающее состояние.
//
// Deployment создаётся когда:
// - Пользователь запускает deploy вручную (через API/CLI)
// - Scheduler запускает auto-deploy по расписанию
// - Пользователь делает rollback на предыдущий успешный deployment
//
// У проекта в любой момент не больше одного deployment в статусе
// pending или running. Инвариант обеспечивает координатор при
// создании (per-project lock + partial unique index в БД).
type Deployment struct {
	// ID — уникальный идентификатор deployment.
	ID uuid.UUID `json:"id"`

	// ProjectID — ссылка на проект.
	ProjectID uuid.UUID `json:"project_id"`

	// UserID — инициатор. Nil для автоматических запусков.
	UserID *uuid.UUID `json:"user_id,omitempty"`

	// ServerID — сервер на момент создания deployment.
	ServerID *uuid.UUID `json:"server_id,omitempty"`

	// Status — текущий статус.
	Status DeploymentStatus `json:"status"`

	// TriggeredBy — источник запуска: manual, automatic, rollback.
	TriggeredBy TriggeredBy `json:"triggered_by"`

	// Branch — ветка на момент создания.
	Branch string `json:"branch"`

	// CommitHash — commit, который выкладывается.
	// Пустой, если git-инспекция на момент создания не удалась.
	CommitHash string `json:"commit_hash,omitempty"`

	// CommitMessage — сообщение commit.
	CommitMessage string `json:"commit_message,omitempty"`

	// EnvironmentSnapshot — снимок окружения проекта на момент создания.
	EnvironmentSnapshot *EnvironmentSnapshot `json:"environment_snapshot,omitempty"`

	// RollbackDeploymentID — только для rollback: deployment, чей
	// commit восстанавливается. Всегда ссылается на успешный
	// deployment того же проекта.
	RollbackDeploymentID *uuid.UUID `json:"rollback_deployment_id,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал running).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения (в любом терминальном статусе).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationSeconds — продолжительность выполнения.
	// Nil, пока deployment не завершён или не успел стартовать.
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`

	// OutputLog — построчный лог выполнения.
	OutputLog string `json:"output_log,omitempty"`

	// ErrorLog — текст ошибки при неудаче или отмене.
	ErrorLog string `json:"error_log,omitempty"`

	// CreatedAt — время создания deployment.
	CreatedAt time.Time `json:"created_at"`
}

// IsActive возвращает true, если deployment в статусе pending или running.
func (d *Deployment) IsActive() bool {
	return d.Status.IsActive()
}

// IsFinished возвращает true, если deployment завершён.
func (d *Deployment) IsFinished() bool {
	return d.Status.IsTerminal()
}

// IsSuccess возвращает true, если deployment завершился успешно.
func (d *Deployment) IsSuccess() bool {
	return d.Status == DeploymentStatusSuccess
}

// IsRollback возвращает true, если это rollback-deployment.
func (d *Deployment) IsRollback() bool {
	return d.RollbackDeploymentID != nil
}

// MarkRunning переводит deployment в статус running.
// Вызывается worker'ом в момент подхвата, не при постановке в очередь.
func (d *Deployment) MarkRunning() {
	now := time.Now()
	d.Status = DeploymentStatusRunning
	d.StartedAt = &now
}

// MarkSuccess переводит deployment в статус success и
// вычисляет продолжительность.
func (d *Deployment) MarkSuccess() {
	now := time.Now()
	d.Status = DeploymentStatusSuccess
	d.CompletedAt = &now
	d.computeDuration()
}

// MarkFailed переводит deployment в статус failed с текстом ошибки.
func (d *Deployment) MarkFailed(errMsg string) {
	now := time.Now()
	d.Status = DeploymentStatusFailed
	d.CompletedAt = &now
	d.ErrorLog = errMsg
	d.computeDuration()
}

// MarkCancelled переводит deployment в статус cancelled.
func (d *Deployment) MarkCancelled(reason string) {
	now := time.Now()
	d.Status = DeploymentStatusCancelled
	d.CompletedAt = &now
	d.ErrorLog = reason
	d.computeDuration()
}

// computeDuration заполняет DurationSeconds, если известно время старта.
func (d *Deployment) computeDuration() {
	if d.StartedAt == nil || d.CompletedAt == nil {
		return
	}
	secs := int64(d.CompletedAt.Sub(*d.StartedAt) / time.Second)
	d.DurationSeconds = &secs
}

// AppendOutput добавляет строку в output-лог.
func (d *Deployment) AppendOutput(line string) {
	if d.OutputLog == "" {
		d.OutputLog = line
		return
	}
	d.OutputLog += "\n" + line
}

// FormatLogs возвращает логи для показа пользователю.
// Для неудачных deployments к output-логу добавляется блок ошибок.
func (d *Deployment) FormatLogs() string {
	logs := d.OutputLog
	if d.Status == DeploymentStatusFailed && d.ErrorLog != "" {
		var b strings.Builder
		b.WriteString(logs)
		b.WriteString("\n\n=== ERRORS ===\n")
		b.WriteString(d.ErrorLog)
		return b.String()
	}
	return logs
}

// DeploymentStats — агрегированная статистика deployments проекта
// за trailing-окно.
type DeploymentStats struct {
	// Total — всего deployments за окно.
	Total int `json:"total"`

	// Successful — завершившихся со статусом success.
	Successful int `json:"successful"`

	// Failed — завершившихся со статусом failed.
	Failed int `json:"failed"`

	// SuccessRate — successful/total*100, округлённый до одного
	// знака. 0 при отсутствии deployments.
	SuccessRate float64 `json:"success_rate"`

	// AvgDuration — средняя продолжительность по deployments,
	// у которых она известна. 0, если таких нет.
	AvgDuration float64 `json:"avg_duration"`
}
