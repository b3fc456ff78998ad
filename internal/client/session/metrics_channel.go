package session

import (
	"encoding/json"
	"sync"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"go.uber.org/zap"
)

// probePayload is the wire shape of the liveness probe: the establishing
// side sends ping with its send timestamp in unix milliseconds, the receiver
// echoes it back unchanged as pong.
type probePayload struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

// MetricsChannel runs the liveness and throughput measurement inside an
// established session: a ping loop probing round-trip time and an
// independently scheduled sampling loop deriving frame rate, bitrate and the
// security handshake state from transport counters. Both loops are owned by
// the session and cancelled on close; a cancelled loop simply never
// schedules its next tick.
type MetricsChannel struct {
	remote       domain.PeerID
	ch           ports.DataChannel
	stats        func() (domain.TransportStats, error)
	observer     ports.SessionObserver
	establishing bool
	cfg          Config
	logger       *zap.SugaredLogger

	// Injectable for tests.
	now func() time.Time

	mu         sync.Mutex
	started    bool
	lastRTT    time.Duration
	lastFrames uint64
	lastBytes  uint64
	lastTick   time.Time

	done      chan struct{}
	closeOnce sync.Once
}

func newMetricsChannel(
	remote domain.PeerID,
	ch ports.DataChannel,
	stats func() (domain.TransportStats, error),
	observer ports.SessionObserver,
	cfg Config,
	establishing bool,
	logger *zap.SugaredLogger,
) *MetricsChannel {
	m := &MetricsChannel{
		remote:       remote,
		ch:           ch,
		stats:        stats,
		observer:     observer,
		establishing: establishing,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		done:         make(chan struct{}),
	}
	ch.OnOpen(func() {
		m.logger.Debugw("metrics channel open", "remote_peer", remote, "establishing", establishing)
	})
	ch.OnMessage(m.handleMessage)
	return m
}

// Start launches the loops. Idempotent; the ping loop runs only on the
// establishing side so exactly one prober exists per session.
func (m *MetricsChannel) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.lastTick = m.now()
	m.mu.Unlock()

	if m.establishing {
		go m.pingLoop()
	}
	go m.sampleLoop()
}

func (m *MetricsChannel) pingLoop() {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sendProbe("ping", m.now().UnixMilli())
		case <-m.done:
			return
		}
	}
}

func (m *MetricsChannel) sampleLoop() {
	ticker := time.NewTicker(m.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.done:
			return
		}
	}
}

func (m *MetricsChannel) sendProbe(kind string, t int64) {
	payload, err := json.Marshal(probePayload{Type: kind, T: t})
	if err != nil {
		return
	}
	if err := m.ch.Send(payload); err != nil {
		// The channel may still be opening or already torn down; the next
		// tick probes again.
		m.logger.Debugw("probe send failed", "remote_peer", m.remote, "kind", kind, "error", err)
	}
}

func (m *MetricsChannel) handleMessage(payload []byte) {
	var probe probePayload
	if err := json.Unmarshal(payload, &probe); err != nil {
		// Malformed probes are dropped without surfacing an error.
		return
	}

	switch probe.Type {
	case "ping":
		// Echo immediately; the sender computes RTT from the round trip.
		m.sendProbe("pong", probe.T)
	case "pong":
		rtt := m.now().Sub(time.UnixMilli(probe.T))
		if rtt < 0 {
			return
		}
		m.mu.Lock()
		m.lastRTT = rtt
		m.mu.Unlock()
		m.observer.OnRoundTrip(m.remote, rtt)
	}
}

func (m *MetricsChannel) sample() {
	stats, err := m.stats()
	if err != nil {
		m.logger.Debugw("stats query failed", "remote_peer", m.remote, "error", err)
		return
	}

	now := m.now()

	m.mu.Lock()
	elapsed := now.Sub(m.lastTick).Seconds()
	if elapsed <= 0 {
		m.mu.Unlock()
		return
	}
	frames := stats.FramesSent - m.lastFrames
	bytes := stats.BytesSent - m.lastBytes
	if stats.FramesSent < m.lastFrames {
		frames = 0
	}
	if stats.BytesSent < m.lastBytes {
		bytes = 0
	}
	m.lastFrames = stats.FramesSent
	m.lastBytes = stats.BytesSent
	m.lastTick = now
	rtt := m.lastRTT
	m.mu.Unlock()

	m.observer.OnMetricsSample(m.remote, domain.MetricsSample{
		RoundTrip:       rtt,
		FramesPerSecond: float64(frames) / elapsed,
		BitrateKbps:     float64(bytes) * 8 / 1000 / elapsed,
		PacketLoss:      stats.PacketLoss,
		SecurityState:   stats.SecurityState,
		Timestamp:       now,
	})
}

// Close cancels the loops and the underlying channel. Idempotent.
func (m *MetricsChannel) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		if err := m.ch.Close(); err != nil {
			m.logger.Debugw("metrics channel close", "remote_peer", m.remote, "error", err)
		}
	})
}
