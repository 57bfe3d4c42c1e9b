// Package metrics holds the Prometheus collectors for the pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceFetches counts feed fetches by outcome (ok or error).
	SourceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radar",
		Subsystem: "collect",
		Name:      "source_fetches_total",
		Help:      "Feed fetch attempts by outcome.",
	}, []string{"result"})

	// ItemsNew counts entries that survived dedup in a collection pass.
	ItemsNew = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radar",
		Subsystem: "collect",
		Name:      "items_new_total",
		Help:      "Entries not previously seen by the item store.",
	})

	// ItemsDeduped counts entries dropped because their fingerprint was
	// already known.
	ItemsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radar",
		Subsystem: "collect",
		Name:      "items_deduped_total",
		Help:      "Entries dropped as already-seen duplicates.",
	})

	// ChunkSends counts delivered message chunks by channel and outcome.
	ChunkSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radar",
		Subsystem: "dispatch",
		Name:      "chunk_sends_total",
		Help:      "Message chunk deliveries by channel and outcome.",
	}, []string{"channel", "result"})

	// PipelineRuns counts whole pipeline invocations by scope and outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radar",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Pipeline runs by scope and outcome.",
	}, []string{"scope", "result"})
)

// Handler exposes the default registry, for mounting at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
