// DevFlow Worker — выполняет deployments.
//
// Worker:
//   - Получает события deployment.pending из RabbitMQ
//   - Параллельно забирает pending deployments polling'ом (fallback)
//   - Выполняет pipeline stages проекта или прямой git+compose deploy
//   - Записывает логи и финальный статус в БД
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devflow/devflow/internal/docker"
	"github.com/devflow/devflow/internal/git"
	"github.com/devflow/devflow/internal/mq"
	"github.com/devflow/devflow/internal/pipeline"
	"github.com/devflow/devflow/internal/repo"
	"github.com/devflow/devflow/internal/runner"
	"github.com/devflow/devflow/internal/telemetry"
	"github.com/devflow/devflow/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting devflow-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	projectRepo := repo.NewProjectRepo(pool)
	deploymentRepo := repo.NewDeploymentRepo(pool)
	pipelineRepo := repo.NewPipelineRepo(pool)

	// RabbitMQ
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		// Создаём топологию
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
	}

	// Runner: локальные серверы через os/exec, удалённые через SSH
	cmdRunner := runner.NewDispatcher(
		runner.NewLocalRunner(),
		runner.NewSSHRunner(runner.SSHRunnerConfig{Logger: logger}),
	)

	inspector := git.NewInspector(cmdRunner, logger)
	compose := docker.NewComposeManager(cmdRunner, logger)

	orchestrator := pipeline.New(pipeline.Config{
		Store:  pipelineRepo,
		Runner: cmdRunner,
		Logger: logger,
	})

	// Создаём worker
	w := worker.New(worker.Config{
		Deployments: deploymentRepo,
		Projects:    projectRepo,
		Stages:      pipelineRepo,
		Pipeline:    orchestrator,
		Git:         inspector,
		Compose:     compose,
		Conn:        mqConn,
		Logger:      logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("devflow-worker stopped")
}
