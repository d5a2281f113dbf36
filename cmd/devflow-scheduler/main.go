// DevFlow Scheduler — auto-deploy по расписанию.
//
// Раз в тик забирает проекты с истекшим next_auto_deploy_at,
// проверяет наличие новых commits в origin и создаёт automatic
// deployments. Leader election через pg_try_advisory_lock: из
// нескольких инстансов тики выполняет один.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devflow/devflow/internal/deploy"
	"github.com/devflow/devflow/internal/git"
	"github.com/devflow/devflow/internal/mq"
	"github.com/devflow/devflow/internal/repo"
	"github.com/devflow/devflow/internal/runner"
	"github.com/devflow/devflow/internal/scheduler"
	"github.com/devflow/devflow/internal/telemetry"
)

const schedLockKey int64 = 731954

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting devflow-scheduler")

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

	projectRepo := repo.NewProjectRepo(pool)
	deploymentRepo := repo.NewDeploymentRepo(pool)

	// RabbitMQ — опционально
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

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Git-инспекция для проверки обновлений
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

	sched := scheduler.New(scheduler.Config{
		Projects:    projectRepo,
		Coordinator: coordinator,
		Logger:      logger,
	})

	tickInterval := 30 * time.Second
	if v := os.Getenv("SCHED_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			tickInterval = d
		}
	}

	// scheduler loop
	go func() {
		tk := time.NewTicker(tickInterval)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock failed", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("scheduler tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		port = ":" + v
	}

	logger.Info("listening", "addr", port)
	if err := http.ListenAndServe(port, mux); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}
}
