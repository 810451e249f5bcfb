package metrics

import (
	"strconv"
	"time"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
	"github.com/kirillkom/benefits-rag/internal/core/ports"
)

var _ ports.PipelineObserver = (*HTTPServerMetrics)(nil)

func (m *HTTPServerMetrics) ObserveCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupTotal.WithLabelValues(m.service, cache, result).Inc()
}

func (m *HTTPServerMetrics) ObserveRerank(status domain.RerankStatus) {
	if status == "" {
		status = "unknown"
	}
	m.rerankTotal.WithLabelValues(m.service, string(status)).Inc()
}

func (m *HTTPServerMetrics) ObserveGuardrail(result domain.GuardrailResult) {
	if !result.IsSensitive || result.Category == nil {
		return
	}
	m.guardrailTotal.WithLabelValues(m.service, result.Category.String()).Inc()
}

func (m *HTTPServerMetrics) ObserveFreshness(info domain.FreshnessInfo) {
	for _, w := range info.Warnings {
		if w.Level == domain.StalenessNone {
			continue
		}
		m.freshnessTotal.WithLabelValues(m.service, w.Level.String()).Inc()
	}
}

// RecordQuery counts one finished query; resp is nil on failure.
func (m *HTTPServerMetrics) RecordQuery(endpoint string, resp *domain.QueryResponse, duration time.Duration) {
	if resp == nil {
		m.queryTotal.WithLabelValues(m.service, endpoint, "error").Inc()
		return
	}

	outcome := "answered"
	if len(resp.Citations) == 0 {
		outcome = "no_citations"
	}
	m.queryTotal.WithLabelValues(m.service, endpoint, outcome).Inc()
	m.queryDuration.WithLabelValues(m.service, endpoint, strconv.FormatBool(resp.Cached)).Observe(duration.Seconds())
	m.queryCitations.WithLabelValues(m.service, endpoint).Observe(float64(len(resp.Citations)))
	m.queryConfidence.WithLabelValues(m.service, endpoint).Observe(float64(resp.Confidence))
}
