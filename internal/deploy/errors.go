package deploy

import "errors"

// Ошибки координатора.
var (
	// ErrDeploymentInProgress — у проекта уже есть активный deployment.
	ErrDeploymentInProgress = errors.New("deployment already in progress")

	// ErrRollbackWrongProject — целевой deployment принадлежит другому проекту.
	ErrRollbackWrongProject = errors.New("target deployment does not belong to this project")

	// ErrRollbackNotSuccessful — rollback возможен только на успешный deployment.
	ErrRollbackNotSuccessful = errors.New("can only rollback to successful deployments")

	// ErrRollbackNoCommit — у целевого deployment нет commit hash.
	ErrRollbackNoCommit = errors.New("target deployment does not have a commit hash")

	// ErrNoSuccessfulDeployment — у проекта нет успешных deployments для отката.
	ErrNoSuccessfulDeployment = errors.New("no successful deployment to rollback to")

	// ErrDeploymentNotFound — deployment не найден.
	ErrDeploymentNotFound = errors.New("deployment not found")
)
