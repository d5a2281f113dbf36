package worker

import "errors"

// Ошибки воркера.
var (
	// ErrDeploymentNotFound — deployment не найден в БД.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrDeploymentNotPending — deployment не в статусе pending.
	ErrDeploymentNotPending = errors.New("deployment is not in pending status")

	// ErrProjectNotFound — проект deployment'а не найден.
	ErrProjectNotFound = errors.New("project not found")

	// ErrWorkerStopped — воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
