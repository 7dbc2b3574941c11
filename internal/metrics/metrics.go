// Package metrics registers the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	OpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_open_connections",
			Help: "Currently open WebSocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Users with at least one open connection",
		},
	)

	// Relay metrics
	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_relayed_total",
			Help: "Events delivered to client connections",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_dropped_total",
			Help: "Events that could not be delivered to a connection",
		},
		[]string{"event"},
	)

	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages written to the store",
		},
		[]string{"kind"}, // "human" or "automated"
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
