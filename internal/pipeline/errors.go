package pipeline

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunNotFound — pipeline run не найден.
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrRunFinished — операция над уже завершённым run.
	ErrRunFinished = errors.New("pipeline run already finished")
)
