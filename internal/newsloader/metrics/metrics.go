package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBOperation string

const (
	DBOperationBegin           DBOperation = "begin"
	DBOperationRead            DBOperation = "read"
	DBOperationInsert          DBOperation = "insert"
	DBOperationCreateTempTable DBOperation = "create_temp_table"
	DBOperationReserveIDs      DBOperation = "reserve_ids"
	DBOperationCommit          DBOperation = "commit"
	DBOperationTruncate        DBOperation = "truncate"
)

const NewsLoaderMetricsPrefix = "newsloader_"

// Metrics records load progress.  A nil *Metrics records nothing.
type Metrics struct {
	rowsInserted     *prometheus.CounterVec
	windowsCommitted prometheus.Counter
	windowsFailed    prometheus.Counter
	windowRetries    prometheus.Counter
	windowDuration   prometheus.Histogram
	dbErrorsCounter  *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		rowsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: NewsLoaderMetricsPrefix + "rows_inserted",
			Help: "Number of committed rows grouped by table",
		}, []string{"table"}),
		windowsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: NewsLoaderMetricsPrefix + "windows_committed",
			Help: "Number of news windows committed",
		}),
		windowsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: NewsLoaderMetricsPrefix + "windows_failed",
			Help: "Number of news windows abandoned after exhausting retries or hitting a non-retryable error",
		}),
		windowRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: NewsLoaderMetricsPrefix + "window_retries",
			Help: "Number of times a news window was rolled back and retried",
		}),
		windowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    NewsLoaderMetricsPrefix + "window_duration_seconds",
			Help:    "Time taken to generate, insert and commit one news window",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		dbErrorsCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: NewsLoaderMetricsPrefix + "db_errors",
			Help: "Number of database errors grouped by database operation",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordRowsInserted(table string, rows int64) {
	if m == nil {
		return
	}
	m.rowsInserted.With(map[string]string{"table": table}).Add(float64(rows))
}

func (m *Metrics) RecordWindowCommitted(duration time.Duration) {
	if m == nil {
		return
	}
	m.windowsCommitted.Inc()
	m.windowDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordWindowFailed() {
	if m == nil {
		return
	}
	m.windowsFailed.Inc()
}

func (m *Metrics) RecordWindowRetry() {
	if m == nil {
		return
	}
	m.windowRetries.Inc()
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	if m == nil {
		return
	}
	m.dbErrorsCounter.With(map[string]string{"operation": string(operation)}).Inc()
}
