package deploy

import "github.com/devflow/devflow/internal/domain"

// ValidationResult — результат проверки предусловий deploy.
type ValidationResult struct {
	// Valid — все проверки прошли.
	Valid bool `json:"valid"`

	// Errors — список всех нарушений, не только первое.
	Errors []string `json:"errors"`
}

// ValidateDeploymentPrerequisites проверяет, что проект готов к deploy.
//
// Чистая функция без I/O: сервер проекта должен быть предзагружен.
// Собирает все нарушения, не прерываясь на первом.
func ValidateDeploymentPrerequisites(p *domain.Project) ValidationResult {
	var errs []string

	if !p.HasServer() {
		errs = append(errs, "Project does not have a server assigned")
	}

	if p.RepositoryURL == "" {
		errs = append(errs, "Project does not have a repository URL configured")
	}

	if p.Branch == "" {
		errs = append(errs, "Project does not have a branch configured")
	}

	if p.Server != nil && !p.Server.IsOnline() {
		errs = append(errs, "Server is not online")
	}

	return ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
