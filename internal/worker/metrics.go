package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики воркера. Регистрируются в default registry,
// отдаются через /metrics процесса armada-worker.
var (
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armada_worker_tasks_processed_total",
		Help: "Processed task deliveries by outcome (success, retry, failed).",
	}, []string{"outcome"})

	tasksDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "armada_worker_tasks_duplicate_total",
		Help: "Deliveries ignored because the task already reached a terminal state.",
	})

	admissionDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armada_worker_admission_denied_total",
		Help: "Deliveries deferred by rate limit or daily quota, per tenant.",
	}, []string{"tenant"})

	adapterErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armada_worker_adapter_errors_total",
		Help: "Cloud adapter call failures by provider and error class.",
	}, []string{"provider", "class"})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "armada_worker_jobs_finished_total",
		Help: "Jobs driven to a terminal status by this worker, per status.",
	}, []string{"status"})
)
