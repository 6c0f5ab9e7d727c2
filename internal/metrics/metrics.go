package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WsConnections tracks live websocket sessions
	WsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gatherhub",
		Subsystem: "chat",
		Name:      "ws_connections",
		Help:      "Number of live websocket sessions",
	})

	// MessagesIngested counts messages accepted and persisted
	MessagesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatherhub",
		Subsystem: "chat",
		Name:      "messages_ingested_total",
		Help:      "Messages accepted, persisted and broadcast",
	})

	// MessagesRejected counts messages rejected on the ingest path
	MessagesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatherhub",
		Subsystem: "chat",
		Name:      "messages_rejected_total",
		Help:      "Messages rejected on the ingest path, by error code",
	}, []string{"code"})

	// EventsBroadcast counts room fan-out operations
	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatherhub",
		Subsystem: "chat",
		Name:      "events_broadcast_total",
		Help:      "Room broadcast operations",
	})

	// BroadcastDrops counts recipients disconnected for full buffers
	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatherhub",
		Subsystem: "chat",
		Name:      "broadcast_drops_total",
		Help:      "Deliveries dropped because a session buffer was full",
	})

	// ReadReceipts counts read receipts recorded
	ReadReceipts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatherhub",
		Subsystem: "chat",
		Name:      "read_receipts_total",
		Help:      "Read receipts recorded",
	})

	// HistoryRequests counts history page fetches
	HistoryRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gatherhub",
		Subsystem: "chat",
		Name:      "history_requests_total",
		Help:      "History page fetches",
	})
)
