package monitoring

import (
	"peerlink/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	envelopesAcceptedTotal *prometheus.CounterVec
	pollsTotal             prometheus.Counter
	pollBatchSize          prometheus.Histogram
	peersOnline            prometheus.Gauge
	presenceConnections    prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		envelopesAcceptedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peerlink_envelopes_accepted_total",
			Help: "Total number of signaling envelopes accepted by the relay",
		}, []string{"kind"}),

		pollsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_polls_total",
			Help: "Total number of mailbox polls served",
		}),

		pollBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "peerlink_poll_batch_size",
			Help:    "Number of envelopes drained per poll",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
		}),

		peersOnline: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "peerlink_peers_online",
			Help: "Number of peers currently present in the directory",
		}),

		presenceConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "peerlink_presence_connections",
			Help: "Number of open presence WebSocket connections",
		}),
	}
}

func (p *PrometheusCollector) RecordEnvelopeAccepted(kind domain.SignalKind) {
	p.envelopesAcceptedTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordPollDrained(batchSize int) {
	p.pollsTotal.Inc()
	p.pollBatchSize.Observe(float64(batchSize))
}

func (p *PrometheusCollector) SetPeersOnline(count int) {
	p.peersOnline.Set(float64(count))
}

func (p *PrometheusCollector) PresenceConnectionOpened() {
	p.presenceConnections.Inc()
}

func (p *PrometheusCollector) PresenceConnectionClosed() {
	p.presenceConnections.Dec()
}
