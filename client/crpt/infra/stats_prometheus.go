package infra

import (
	"context"
	"strconv"

	"crpt-client/client/crpt/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore expõe as submissões como métricas.
// Key não vira label (cardinalidade).
type PrometheusStatsStore struct {
	submissions *prometheus.CounterVec
	responses   *prometheus.CounterVec
	permitWait  prometheus.Histogram
}

// NewPrometheusStatsStore registra as métricas em reg (use prometheus.DefaultRegisterer
// no binário e prometheus.NewRegistry() em testes).
func NewPrometheusStatsStore(reg prometheus.Registerer) (*PrometheusStatsStore, error) {
	s := &PrometheusStatsStore{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crpt",
			Name:      "document_submissions_total",
			Help:      "Document submissions by outcome and document type.",
		}, []string{"outcome", "doc_type"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crpt",
			Name:      "http_responses_total",
			Help:      "HTTP responses received from the registry by status code.",
		}, []string{"status"}),
		permitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crpt",
			Name:      "permit_wait_seconds",
			Help:      "Time spent waiting for a rate limit permit.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	for _, c := range []prometheus.Collector{s.submissions, s.responses, s.permitWait} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.submissions.WithLabelValues(string(ev.Outcome), ev.DocType).Inc()
	if ev.Status != 0 {
		s.responses.WithLabelValues(strconv.Itoa(ev.Status)).Inc()
	}
	s.permitWait.Observe(ev.Waited.Seconds())
	return nil
}
