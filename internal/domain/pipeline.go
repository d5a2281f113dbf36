package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineStage — именованная, упорядоченная единица работы проекта.
//
// Stages — это конфигурация: создаются и редактируются владельцами
// проекта, во время выполнения run неизменны (run загружает свой
// набор stages один раз на старте).
type PipelineStage struct {
	// ID — уникальный идентификатор stage.
	ID uuid.UUID `json:"id"`

	// ProjectID — проект, которому принадлежит stage.
	ProjectID uuid.UUID `json:"project_id"`

	// Name — имя stage (для логов и UI).
	Name string `json:"name"`

	// Type — фаза: pre_deploy, deploy, post_deploy.
	Type StageType `json:"type"`

	// Order — порядок внутри фазы. Равные значения упорядочиваются
	// по времени создания.
	Order int `json:"order"`

	// Commands — упорядоченный список shell-команд. Может быть пустым;
	// такой stage при выполнении помечается skipped.
	Commands []string `json:"commands"`

	// IsEnabled — выключенные stages невидимы для pipeline.
	IsEnabled bool `json:"is_enabled"`

	// ContinueOnFailure — не прерывать pipeline при неудаче этого stage.
	ContinueOnFailure bool `json:"continue_on_failure"`

	// TimeoutSec — таймаут выполнения stage в секундах.
	TimeoutSec int `json:"timeout_sec"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Timeout возвращает таймаут stage как Duration.
// 0 — без таймаута (полагаемся на таймаут команды/соединения).
func (s *PipelineStage) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// PipelineRun — одно выполнение pipeline проекта.
//
// Привязан не больше чем к одному Deployment (нулевая ссылка —
// для ad-hoc прогонов).
type PipelineRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// ProjectID — проект, чей pipeline выполняется.
	ProjectID uuid.UUID `json:"project_id"`

	// DeploymentID — deployment, в рамках которого идёт run.
	DeploymentID *uuid.UUID `json:"deployment_id,omitempty"`

	// Status — текущий статус run.
	Status RunStatus `json:"status"`

	// TriggeredBy — источник запуска (копия из deployment).
	TriggeredBy TriggeredBy `json:"triggered_by"`

	// CommitHash — commit, для которого выполняется pipeline.
	CommitHash string `json:"commit_hash,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился failed.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *PipelineRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *PipelineRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус running.
func (r *PipelineRun) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSuccess переводит run в статус success.
func (r *PipelineRun) MarkSuccess() {
	now := time.Now()
	r.Status = RunStatusSuccess
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус failed с ошибкой.
func (r *PipelineRun) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// MarkCancelled переводит run в статус cancelled.
func (r *PipelineRun) MarkCancelled() {
	now := time.Now()
	r.Status = RunStatusCancelled
	r.FinishedAt = &now
}

// PipelineStageRun — результат выполнения одного stage внутри run.
//
// Создаётся лениво: по одному на stage, до которого выполнение
// реально дошло. Выключенные stages не оставляют run'ов вовсе,
// stages с пустым списком команд оставляют run со статусом skipped.
// Относительный порядок создания совпадает с порядком выполнения.
type PipelineStageRun struct {
	// ID — уникальный идентификатор.
	ID uuid.UUID `json:"id"`

	// PipelineRunID — родительский run.
	PipelineRunID uuid.UUID `json:"pipeline_run_id"`

	// PipelineStageID — выполненный stage.
	PipelineStageID uuid.UUID `json:"pipeline_stage_id"`

	// Name — имя stage на момент выполнения.
	Name string `json:"name"`

	// Status — текущий статус.
	Status StageRunStatus `json:"status"`

	// Output — захваченный stdout всех команд stage.
	Output string `json:"output,omitempty"`

	// Error — захваченный stderr и/или текст транспортной ошибки.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения stage.
func (sr *PipelineStageRun) Duration() time.Duration {
	if sr.StartedAt == nil || sr.FinishedAt == nil {
		return 0
	}
	return sr.FinishedAt.Sub(*sr.StartedAt)
}

// MarkRunning переводит stage run в статус running.
func (sr *PipelineStageRun) MarkRunning() {
	now := time.Now()
	sr.Status = StageRunStatusRunning
	sr.StartedAt = &now
}

// MarkSuccess переводит stage run в статус success.
func (sr *PipelineStageRun) MarkSuccess(output string) {
	now := time.Now()
	sr.Status = StageRunStatusSuccess
	sr.FinishedAt = &now
	sr.Output = output
}

// MarkFailed переводит stage run в статус failed.
// Неудача отдельного stage остаётся failed даже при
// continue_on_failure — политика влияет только на исход pipeline.
func (sr *PipelineStageRun) MarkFailed(output, errMsg string) {
	now := time.Now()
	sr.Status = StageRunStatusFailed
	sr.FinishedAt = &now
	sr.Output = output
	sr.Error = errMsg
}

// MarkSkipped переводит stage run в статус skipped.
func (sr *PipelineStageRun) MarkSkipped() {
	now := time.Now()
	sr.Status = StageRunStatusSkipped
	sr.FinishedAt = &now
}

// MarkCancelled переводит stage run в статус cancelled.
func (sr *PipelineStageRun) MarkCancelled() {
	now := time.Now()
	sr.Status = StageRunStatusCancelled
	sr.FinishedAt = &now
}
