package chat

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Join outcomes.
const (
	JoinTenant   = "tenant"
	JoinOwner    = "owner"
	JoinBrowse   = "browse"
	JoinRejected = "rejected"
)

type Metrics struct {
	Connections prometheus.Gauge
	Joins       *prometheus.CounterVec
	Relayed     prometheus.Counter
	Errors      *prometheus.CounterVec
}

// NewMetrics registers the gateway collectors on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer, rooms *RoomRegistry) *Metrics {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "rentchat",
		Name:      "rooms",
		Help:      "Rooms with at least one joined socket.",
	}, func() float64 { return float64(rooms.Len()) })

	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rentchat",
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		Joins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "joins_total",
			Help:      "Join attempts by outcome.",
		}, []string{"outcome"}),
		Relayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "messages_relayed_total",
			Help:      "Messages persisted and broadcast.",
		}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rentchat",
			Name:      "error_frames_total",
			Help:      "Error frames sent, by code.",
		}, []string{"code"}),
	}
}

func (m *Metrics) errorFrame(code int) {
	m.Errors.WithLabelValues(strconv.Itoa(code)).Inc()
}
