package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики жизненного цикла деплоев. Регистрируются в default registry,
// воркер инкрементит их по мере обработки.
var (
	// DeploymentsStarted — количество деплоев, взятых в обработку.
	DeploymentsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devflow_deployments_started_total",
		Help: "Number of deployments picked up for execution",
	})

	// DeploymentsFinished — завершённые деплои с разбивкой по статусу.
	DeploymentsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devflow_deployments_finished_total",
		Help: "Number of finished deployments by terminal status",
	}, []string{"status"})

	// DeploymentDuration — длительность деплоя в секундах.
	DeploymentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "devflow_deployment_duration_seconds",
		Help:    "Deployment execution duration in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	})

	// StageRunsFinished — завершённые запуски стадий по статусу.
	StageRunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devflow_stage_runs_finished_total",
		Help: "Number of finished pipeline stage runs by status",
	}, []string{"status"})
)
