package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_messages_total",
			Help: "Chat messages handled, by classified intent",
		},
		[]string{"intent"},
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_actions_total",
			Help: "Background actions reaching a terminal status",
		},
		[]string{"kind", "status"},
	)

	ActionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_actions_in_flight",
			Help: "Background actions queued or running",
		},
	)

	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_remote_requests_total",
			Help: "Calls to remote MCP services",
		},
		[]string{"service", "outcome"},
	)

	RemoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chatbot_remote_request_duration_seconds",
			Help: "Remote MCP call duration in seconds",
		},
		[]string{"service"},
	)

	ServiceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatbot_service_up",
			Help: "1 when the last health probe of a remote service succeeded",
		},
		[]string{"service"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_ws_connections",
			Help: "Open chat websocket connections",
		},
	)
)
