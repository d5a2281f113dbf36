package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrActiveDeployment — у проекта уже есть deployment в статусе
	// pending или running. Возвращается при нарушении partial unique
	// index uq_deployments_active — страховка от гонки между
	// несколькими процессами.
	ErrActiveDeployment = errors.New("active deployment exists")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")
)
