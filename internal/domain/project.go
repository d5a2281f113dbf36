package domain

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Server — управляемый сервер, на который выкладываются проекты.
type Server struct {
	// ID — уникальный идентификатор сервера.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя.
	Name string `json:"name"`

	// Host — адрес для SSH-подключения.
	Host string `json:"host"`

	// Port — SSH порт (default: 22).
	Port int `json:"port"`

	// Username — пользователь для SSH.
	Username string `json:"username"`

	// Status — online/offline по результатам последней проверки.
	Status ServerStatus `json:"status"`

	// IsLocal — команды выполняются локально, без SSH.
	// Используется для single-node установок и тестов.
	IsLocal bool `json:"is_local"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Addr возвращает host:port для подключения.
func (s *Server) Addr() string {
	port := s.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", s.Host, port)
}

// IsOnline возвращает true, если сервер доступен.
func (s *Server) IsOnline() bool {
	return s.Status == ServerStatusOnline
}

// Project — приложение, которое система выкладывает на сервер.
//
// Проект владеет своими deployments и pipeline stages. У проекта
// не больше одного сервера.
type Project struct {
	// ID — уникальный идентификатор проекта.
	ID uuid.UUID `json:"id"`

	// Name — имя проекта.
	Name string `json:"name"`

	// Slug — URL-безопасный идентификатор. Определяет директорию
	// на сервере: /var/www/<slug>.
	Slug string `json:"slug"`

	// ServerID — ссылка на сервер. Nil, если сервер не назначен.
	ServerID *uuid.UUID `json:"server_id,omitempty"`

	// Server — загруженный сервер (nil, если не назначен).
	Server *Server `json:"server,omitempty"`

	// RepositoryURL — адрес git-репозитория.
	RepositoryURL string `json:"repository_url"`

	// Branch — ветка для выкладки.
	Branch string `json:"branch"`

	// Environment — production/staging/…
	Environment string `json:"environment,omitempty"`

	// PHPVersion — версия PHP для legacy-проектов.
	PHPVersion string `json:"php_version,omitempty"`

	// Framework — метка фреймворка (laravel, symfony, static…).
	Framework string `json:"framework,omitempty"`

	// EnvVariables — переменные окружения проекта.
	EnvVariables map[string]string `json:"env_variables,omitempty"`

	// AutoDeploy — включён ли автоматический deploy по расписанию.
	AutoDeploy bool `json:"auto_deploy"`

	// DeployCron — cron-выражение для auto-deploy проверок.
	DeployCron string `json:"deploy_cron,omitempty"`

	// NextAutoDeployAt — следующее время auto-deploy проверки.
	NextAutoDeployAt *time.Time `json:"next_auto_deploy_at,omitempty"`

	// CurrentCommitHash — последний известный commit на сервере.
	CurrentCommitHash string `json:"current_commit_hash,omitempty"`

	// CurrentCommitMessage — сообщение последнего известного commit.
	CurrentCommitMessage string `json:"current_commit_message,omitempty"`

	// LastDeployedAt — время последнего успешного deployment.
	LastDeployedAt *time.Time `json:"last_deployed_at,omitempty"`

	// CreatedAt — время создания проекта.
	CreatedAt time.Time `json:"created_at"`
}

// HasServer возвращает true, если проекту назначен сервер.
func (p *Project) HasServer() bool {
	return p.ServerID != nil
}

// DeployPath возвращает директорию проекта на сервере.
func (p *Project) DeployPath() string {
	return "/var/www/" + p.Slug
}

// EnvironmentSnapshot — снимок окружения проекта на момент создания
// deployment. Последующие изменения проекта не меняют то, что
// исторический deployment зафиксировал.
type EnvironmentSnapshot struct {
	Branch       string            `json:"branch"`
	Environment  string            `json:"environment,omitempty"`
	PHPVersion   string            `json:"php_version,omitempty"`
	Framework    string            `json:"framework,omitempty"`
	EnvVariables map[string]string `json:"env_variables,omitempty"`
	CapturedAt   time.Time         `json:"captured_at"`
}

// Clone возвращает независимую копию снимка.
func (s *EnvironmentSnapshot) Clone() *EnvironmentSnapshot {
	if s == nil {
		return nil
	}
	copied := *s
	copied.EnvVariables = maps.Clone(s.EnvVariables)
	return &copied
}

// Snapshot делает снимок окружения проекта на текущий момент.
// Карта переменных копируется: последующие правки проекта не должны
// менять уже зафиксированный снимок.
func (p *Project) Snapshot(now time.Time) *EnvironmentSnapshot {
	return &EnvironmentSnapshot{
		Branch:       p.Branch,
		Environment:  p.Environment,
		PHPVersion:   p.PHPVersion,
		Framework:    p.Framework,
		EnvVariables: maps.Clone(p.EnvVariables),
		CapturedAt:   now,
	}
}
