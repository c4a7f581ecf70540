package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zlnvch/sketchroom/registry"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchroom_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sketchroom_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sketchroom_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sketchroom_gateway_rooms_active",
			Help: "Rooms with at least one connection on this gateway",
		},
	)

	JoinFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchroom_join_failures_total",
			Help: "Rejected room joins",
		},
		[]string{"reason"},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sketchroom_connections_active",
			Help: "Open websocket connections",
		},
	)

	OperationsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchroom_operations_relayed_total",
			Help: "Operations fanned out to room peers",
		},
		[]string{"event"},
	)

	OperationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sketchroom_operations_dropped_total",
			Help: "Inbound events dropped by the gateway",
		},
		[]string{"reason"},
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sketchroom_chat_messages_total",
			Help: "Chat messages appended to room logs",
		},
	)
)

func JoinFailureReason(err error) string {
	switch {
	case errors.Is(err, registry.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, registry.ErrIncorrectPassword):
		return "incorrect_password"
	default:
		return "error"
	}
}
