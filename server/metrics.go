package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collablist_operations_processed_total",
		Help: "Operations submitted by clients, by kind and result.",
	}, []string{"kind", "result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collablist_active_sessions",
		Help: "Collections with a running session.",
	})

	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collablist_connected_clients",
		Help: "Clients joined to a collection.",
	})

	resyncs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collablist_resyncs_total",
		Help: "Full snapshots sent to clients whose base version left the history window.",
	})
)
