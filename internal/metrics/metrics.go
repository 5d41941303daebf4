// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks currently registered WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_active_connections",
		Help: "Number of live WebSocket connections.",
	})

	// IntentsTotal counts dispatched client intents by type.
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_intents_total",
		Help: "Client intents dispatched, by intent type.",
	}, []string{"type"})

	// MessagesStored counts messages durably appended to the store.
	MessagesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_stored_total",
		Help: "Chat messages persisted to the message store.",
	})

	// BroadcastFrames counts frames fanned out to recipients.
	BroadcastFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_frames_total",
		Help: "Event frames fanned out to broadcast recipients.",
	})

	// StoreErrors counts failed store operations.
	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_store_errors_total",
		Help: "Message store operations that returned an error.",
	})

	// DroppedClients counts connections dropped for persistent backpressure.
	DroppedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_dropped_clients_total",
		Help: "Connections dropped because their send buffer stayed full.",
	})
)
