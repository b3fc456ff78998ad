package media

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	videoClockRate = 90000
	frameRate      = 30
)

// LoopbackSource is a stand-in for camera capture: a VP8-capability local
// track fed synthetic RTP frames at a fixed rate. It exists so a session has
// real media flowing (and real frame/byte counters for the stats sampler)
// without touching capture hardware, which stays an external collaborator's
// job.
type LoopbackSource struct {
	*webrtc.TrackLocalStaticRTP

	frames atomic.Uint64
	ssrc   uint32
	logger *zap.SugaredLogger
	done   chan struct{}
}

func NewLoopbackSource(trackID, streamID string, logger *zap.SugaredLogger) (*LoopbackSource, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		trackID,
		streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create loopback track: %w", err)
	}

	return &LoopbackSource{
		TrackLocalStaticRTP: track,
		ssrc:                rand.Uint32(),
		logger:              logger,
		done:                make(chan struct{}),
	}, nil
}

// Start begins producing frames until Stop.
func (s *LoopbackSource) Start() {
	go s.run()
}

func (s *LoopbackSource) run() {
	ticker := time.NewTicker(time.Second / frameRate)
	defer ticker.Stop()

	var (
		sequence  uint16
		timestamp uint32
	)
	payload := make([]byte, 1000)

	for {
		select {
		case <-ticker.C:
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					Marker:         true, // one packet per synthetic frame
					PayloadType:    96,
					SequenceNumber: sequence,
					Timestamp:      timestamp,
					SSRC:           s.ssrc,
				},
				Payload: payload,
			}
			if err := s.WriteRTP(pkt); err != nil {
				s.logger.Debugw("loopback frame write failed", "error", err)
			} else {
				s.frames.Add(1)
			}
			sequence++
			timestamp += videoClockRate / frameRate

		case <-s.done:
			return
		}
	}
}

// FramesSent returns the monotonic frame counter.
func (s *LoopbackSource) FramesSent() uint64 {
	return s.frames.Load()
}

// Stop halts frame production. Safe to call once.
func (s *LoopbackSource) Stop() {
	close(s.done)
}
