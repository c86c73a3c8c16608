// Package metrics exposes the core's prometheus counters. Only counters
// live here; exposition is left to the embedding process, which can mount
// Registry on whatever transport it runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry collects every readquiz metric. Handed to the embedding
// process for exposition; the core never serves HTTP itself.
var Registry = prometheus.NewRegistry()

var (
	// StoreRecoveries counts connection recovery attempts in the
	// resilient store, labeled by outcome ("recovered" | "failed").
	StoreRecoveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readquiz",
		Subsystem: "store",
		Name:      "recoveries_total",
		Help:      "Connection recovery attempts by outcome.",
	}, []string{"outcome"})

	// StoreFallbacks counts operations that returned their fallback
	// value because recovery did not restore the connection.
	StoreFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "readquiz",
		Subsystem: "store",
		Name:      "fallbacks_total",
		Help:      "Store operations degraded to their fallback value.",
	})

	// Advances counts step state machine transitions by outcome
	// ("ok" | "exhausted" | "rejected" | "failed").
	Advances = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readquiz",
		Subsystem: "engine",
		Name:      "advances_total",
		Help:      "Advance calls by outcome.",
	}, []string{"outcome"})

	// DraftReloads counts active-draft reload attempts by outcome
	// ("ok" | "failed").
	DraftReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "readquiz",
		Subsystem: "content",
		Name:      "draft_reloads_total",
		Help:      "Active draft reload attempts by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(StoreRecoveries, StoreFallbacks, Advances, DraftReloads)
}
