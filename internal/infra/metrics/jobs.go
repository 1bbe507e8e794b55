package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(videoJobsFinishedTotal, videoJobsExpiredTotal, videoJobsRetriedTotal, ledgerRollbacksTotal)
}

var videoJobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "video_jobs_finished_total",
		Help: "Video jobs that reached a terminal or waiting status, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'timeout_waiting'
)

var videoJobsExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "video_jobs_expired_total",
		Help: "Jobs force-failed by the expiration sweep.",
	},
)

var videoJobsRetriedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "video_jobs_retried_total",
		Help: "Retry attempts dispatched for timeout_waiting jobs.",
	},
)

var ledgerRollbacksTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "ledger_rollbacks_total",
		Help: "Credit reservations rolled back on job failure.",
	},
)

func IncJobFinished(status string) {
	videoJobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobsExpired(n int) { videoJobsExpiredTotal.Add(float64(n)) }

func IncJobRetried() { videoJobsRetriedTotal.Inc() }

func IncLedgerRollback() { ledgerRollbacksTotal.Inc() }
