package domain

import "time"

// MetricsSample is one tick of session health measurement. Samples are
// recomputed each interval and never persisted.
type MetricsSample struct {
	RoundTrip       time.Duration
	FramesPerSecond float64
	BitrateKbps     float64
	PacketLoss      float64
	SecurityState   string
	Timestamp       time.Time
}

// TransportStats is the raw counter snapshot a session transport exposes.
// FramesSent and BytesSent are monotonic; the sampler derives rates from
// deltas between consecutive snapshots.
type TransportStats struct {
	FramesSent    uint64
	BytesSent     uint64
	PacketLoss    float64
	SecurityState string
}
