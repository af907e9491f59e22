// Package telemetry exposes prometheus instrumentation for the sync engine.
// Collectors are registered on the default registry; the daemon serves them
// via promhttp when the metrics listener is enabled.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heartlink_merges_total",
		Help: "Messages offered to the conversation store merge.",
	})
	DuplicatesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heartlink_duplicates_dropped_total",
		Help: "Incoming messages dropped by the exact-id dedup rule.",
	})
	PlaceholdersReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heartlink_placeholders_reconciled_total",
		Help: "Pending placeholders replaced by a server-confirmed message.",
	})
	ForcedConfirms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heartlink_forced_confirms_total",
		Help: "Placeholders resolved by the send fallback timer because no push echo arrived.",
	})
	ForeignPeerDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heartlink_foreign_peer_dropped_total",
		Help: "Push events dropped because they address a non-active conversation.",
	})
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heartlink_reconnects_total",
		Help: "Successful push channel reconnects after transport loss.",
	})
	SendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heartlink_sends_total",
		Help: "Outgoing sends by outcome.",
	}, []string{"outcome"})
	ConnectionUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heartlink_connection_up",
		Help: "1 while the push channel is connected.",
	})
	HistoryLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heartlink_history_loads_total",
		Help: "History fetches by outcome.",
	}, []string{"outcome"})
)

// Handler returns the prometheus scrape handler for the debug listener.
func Handler() http.Handler { return promhttp.Handler() }
