// DevFlow API — HTTP API сервер.
//
// Принимает запросы на управление серверами, проектами, deployments
// и pipeline stages. Создание deployment публикует событие в RabbitMQ;
// выполнение делает devflow-worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devflow/devflow/internal/api"
	"github.com/devflow/devflow/internal/deploy"
	"github.com/devflow/devflow/internal/git"
	"github.com/devflow/devflow/internal/mq"
	"github.com/devflow/devflow/internal/repo"
	"github.com/devflow/devflow/internal/runner"
	"github.com/devflow/devflow/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devflow_api_http_requests_total",
		Help: "Total HTTP requests handled by devflow_api",
	})
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting devflow-api")

	// Подключаемся к базе данных
	pool, err := repo.NewPool(context.Background())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	projectRepo := repo.NewProjectRepo(pool)
	serverRepo := repo.NewServerRepo(pool)
	deploymentRepo := repo.NewDeploymentRepo(pool)
	pipelineRepo := repo.NewPipelineRepo(pool)

	// RabbitMQ — опционально; без него deployments подхватываются
	// polling'ом воркера
	var publisher *mq.Publisher
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, deployments will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(context.Background(), mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Runner для git-инспекций (локально и по SSH)
	cmdRunner := runner.NewDispatcher(
		runner.NewLocalRunner(),
		runner.NewSSHRunner(runner.SSHRunnerConfig{Logger: logger}),
	)
	inspector := git.NewInspector(cmdRunner, logger)

	deployCfg := deploy.Config{
		Deployments: deploymentRepo,
		Git:         inspector,
		Logger:      logger,
	}
	if publisher != nil {
		deployCfg.Queue = publisher
	}
	coordinator := deploy.New(deployCfg)

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		ProjectRepo:    projectRepo,
		ServerRepo:     serverRepo,
		DeploymentRepo: deploymentRepo,
		PipelineRepo:   pipelineRepo,
		Coordinator:    coordinator,
		Logger:         logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
