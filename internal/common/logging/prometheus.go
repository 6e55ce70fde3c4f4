package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PrometheusHook counts log lines per level.
type PrometheusHook struct {
	counters map[logrus.Level]prometheus.Counter
}

func NewPrometheusHook(registerer prometheus.Registerer) (*PrometheusHook, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "log_messages",
		Help: "Total number of log lines logged by level",
	}, []string{"level"})
	if err := registerer.Register(vec); err != nil {
		return nil, err
	}
	counters := make(map[logrus.Level]prometheus.Counter, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		counters[level] = vec.WithLabelValues(level.String())
	}
	return &PrometheusHook{counters: counters}, nil
}

func (h *PrometheusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *PrometheusHook) Fire(entry *logrus.Entry) error {
	h.counters[entry.Level].Inc()
	return nil
}
