package session

import (
	"encoding/json"
	"testing"
	"time"

	"peerlink/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMetricsChannel(ch *fakeDataChannel, observer *recordingObserver, cfg Config, establishing bool) *MetricsChannel {
	return newMetricsChannel(
		"remote",
		ch,
		func() (domain.TransportStats, error) { return domain.TransportStats{}, nil },
		observer,
		cfg,
		establishing,
		zap.NewNop().Sugar(),
	)
}

func TestMetricsChannel_PingEchoedAsPong(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	newTestMetricsChannel(ch, &recordingObserver{}, Config{}, false)

	ch.deliver([]byte(`{"type":"ping","t":12345}`))

	sent := ch.sentPayloads()
	require.Len(t, sent, 1)

	var probe probePayload
	require.NoError(t, json.Unmarshal(sent[0], &probe))
	assert.Equal(t, "pong", probe.Type)
	assert.Equal(t, int64(12345), probe.T)
}

func TestMetricsChannel_PongYieldsRoundTrip(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	observer := &recordingObserver{}
	m := newTestMetricsChannel(ch, observer, Config{}, true)

	base := time.Now()
	m.now = func() time.Time { return base }

	payload, err := json.Marshal(probePayload{Type: "pong", T: base.Add(-50 * time.Millisecond).UnixMilli()})
	require.NoError(t, err)
	ch.deliver(payload)

	rtts := observer.roundTrips()
	require.Len(t, rtts, 1)
	assert.InDelta(t, 50*time.Millisecond, rtts[0], float64(time.Millisecond))
}

func TestMetricsChannel_NegativeRoundTripDropped(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	observer := &recordingObserver{}
	m := newTestMetricsChannel(ch, observer, Config{}, true)

	base := time.Now()
	m.now = func() time.Time { return base }

	// A probe stamped in the future would yield a negative round trip.
	payload, err := json.Marshal(probePayload{Type: "pong", T: base.Add(time.Second).UnixMilli()})
	require.NoError(t, err)
	ch.deliver(payload)

	assert.Empty(t, observer.roundTrips())
}

func TestMetricsChannel_MalformedProbeDropped(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	observer := &recordingObserver{}
	newTestMetricsChannel(ch, observer, Config{}, false)

	ch.deliver([]byte(`not json`))
	ch.deliver([]byte(`{"type":"weird","t":1}`))

	assert.Empty(t, ch.sentPayloads())
	assert.Empty(t, observer.roundTrips())
}

func TestMetricsChannel_EchoLoopMeasuresZeroRoundTrip(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	observer := &recordingObserver{}
	m := newTestMetricsChannel(ch, observer, Config{
		PingInterval:  5 * time.Millisecond,
		StatsInterval: time.Hour,
	}, true)
	defer m.Close()

	base := time.Now()
	m.now = func() time.Time { return base }

	// The remote end echoes every ping straight back; with a frozen clock
	// each measured round trip is exactly zero.
	ch.sendHook = func(payload []byte) {
		var probe probePayload
		if json.Unmarshal(payload, &probe) == nil && probe.Type == "ping" {
			echo, _ := json.Marshal(probePayload{Type: "pong", T: probe.T})
			ch.deliver(echo)
		}
	}

	m.Start()

	assert.Eventually(t, func() bool {
		return len(observer.roundTrips()) >= 3
	}, time.Second, 5*time.Millisecond)

	for _, rtt := range observer.roundTrips() {
		assert.Zero(t, rtt)
	}
}

func TestMetricsChannel_SampleComputesRates(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	observer := &recordingObserver{}
	m := newMetricsChannel(
		"remote",
		ch,
		func() (domain.TransportStats, error) {
			return domain.TransportStats{
				FramesSent:    30,
				BytesSent:     125000,
				PacketLoss:    0.5,
				SecurityState: "connected",
			}, nil
		},
		observer,
		Config{},
		true,
		zap.NewNop().Sugar(),
	)

	base := time.Now()
	m.lastTick = base
	m.lastRTT = 40 * time.Millisecond
	m.now = func() time.Time { return base.Add(time.Second) }

	m.sample()

	samples := observer.metricsSamples()
	require.Len(t, samples, 1)
	assert.InDelta(t, 30, samples[0].FramesPerSecond, 0.01)
	assert.InDelta(t, 1000, samples[0].BitrateKbps, 0.01)
	assert.InDelta(t, 0.5, samples[0].PacketLoss, 0.001)
	assert.Equal(t, "connected", samples[0].SecurityState)
	assert.Equal(t, 40*time.Millisecond, samples[0].RoundTrip)
}

func TestMetricsChannel_CounterResetYieldsZeroRates(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	observer := &recordingObserver{}
	m := newMetricsChannel(
		"remote",
		ch,
		func() (domain.TransportStats, error) {
			return domain.TransportStats{FramesSent: 5, BytesSent: 100}, nil
		},
		observer,
		Config{},
		true,
		zap.NewNop().Sugar(),
	)

	base := time.Now()
	m.lastTick = base
	m.lastFrames = 100
	m.lastBytes = 100000
	m.now = func() time.Time { return base.Add(time.Second) }

	m.sample()

	samples := observer.metricsSamples()
	require.Len(t, samples, 1)
	assert.Zero(t, samples[0].FramesPerSecond)
	assert.Zero(t, samples[0].BitrateKbps)
}

func TestMetricsChannel_CloseStopsLoops(t *testing.T) {
	ch := newFakeDataChannel("metrics")
	observer := &recordingObserver{}
	m := newTestMetricsChannel(ch, observer, Config{
		PingInterval:  5 * time.Millisecond,
		StatsInterval: 5 * time.Millisecond,
	}, true)

	m.Start()

	assert.Eventually(t, func() bool {
		return len(ch.sentPayloads()) > 0 && len(observer.metricsSamples()) > 0
	}, time.Second, 5*time.Millisecond)

	m.Close()
	m.Close()
	assert.Equal(t, 1, ch.closeCount())

	// Let any tick already in flight drain, then verify the loops are gone.
	time.Sleep(20 * time.Millisecond)
	sentBefore := len(ch.sentPayloads())
	samplesBefore := len(observer.metricsSamples())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, sentBefore, len(ch.sentPayloads()))
	assert.Equal(t, samplesBefore, len(observer.metricsSamples()))
}
