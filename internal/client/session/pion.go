package session

import (
	"context"
	"fmt"
	"sync"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
)

// FrameCountingTrack is a local track whose source counts the frames it has
// produced; the stats sampler reads the counter to derive frames-per-second.
type FrameCountingTrack interface {
	webrtc.TrackLocal
	FramesSent() uint64
}

// PionConfig configures the real WebRTC transport.
type PionConfig struct {
	ICEServers []webrtc.ICEServer
	Tracks     []webrtc.TrackLocal
}

// PionTransport implements ports.SessionTransport over a pion
// PeerConnection.
type PionTransport struct {
	pc     *webrtc.PeerConnection
	tracks []webrtc.TrackLocal

	mu           sync.Mutex
	fractionLost float64
	closed       bool
}

var _ ports.SessionTransport = (*PionTransport)(nil)

// NewPionTransport builds a peer connection bound to the given local tracks.
// Each added track gets an RTCP reader so remote receiver reports feed the
// packet-loss figure.
func NewPionTransport(cfg PionConfig) (*PionTransport, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: cfg.ICEServers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	t := &PionTransport{pc: pc, tracks: cfg.Tracks}

	for _, track := range cfg.Tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to add local track: %w", err)
		}
		go t.readRTCP(sender)
	}

	return t, nil
}

func (t *PionTransport) readRTCP(sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range packets {
			rr, ok := pkt.(*rtcp.ReceiverReport)
			if !ok {
				continue
			}
			for _, report := range rr.Reports {
				t.mu.Lock()
				t.fractionLost = float64(report.FractionLost) / 256
				t.mu.Unlock()
			}
		}
	}
}

func (t *PionTransport) CreateOffer(ctx context.Context) (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return offer.SDP, nil
}

func (t *PionTransport) CreateAnswer(ctx context.Context) (string, error) {
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}
	return answer.SDP, nil
}

func (t *PionTransport) SetRemoteDescription(ctx context.Context, kind domain.SignalKind, sdp string) error {
	var sdpType webrtc.SDPType
	switch kind {
	case domain.KindOffer:
		sdpType = webrtc.SDPTypeOffer
	case domain.KindAnswer:
		sdpType = webrtc.SDPTypeAnswer
	default:
		return fmt.Errorf("signal kind %q carries no session description", kind)
	}

	return t.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: sdpType,
		SDP:  sdp,
	})
}

func (t *PionTransport) AddCandidate(c domain.CandidateInit) error {
	return t.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     c.Candidate,
		SDPMid:        c.SDPMid,
		SDPMLineIndex: c.SDPMLineIndex,
	})
}

func (t *PionTransport) CreateDataChannel(label string) (ports.DataChannel, error) {
	dc, err := t.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	return &pionDataChannel{dc: dc}, nil
}

func (t *PionTransport) OnDataChannel(fn func(ports.DataChannel)) {
	t.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		fn(&pionDataChannel{dc: dc})
	})
}

func (t *PionTransport) OnCandidate(fn func(domain.CandidateInit)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// End of candidate gathering.
			return
		}
		init := c.ToJSON()
		fn(domain.CandidateInit{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

func (t *PionTransport) OnStateChange(fn func(ports.TransportState)) {
	t.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		fn(mapPeerConnectionState(state))
	})
}

func (t *PionTransport) OnRemoteTrack(fn func(ports.RemoteTrack)) {
	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		fn(&pionRemoteTrack{track: track})
	})
}

// Stats snapshots outbound counters: frames from the counting track sources,
// bytes from the transport-level stats, DTLS state from the SCTP transport.
func (t *PionTransport) Stats() (domain.TransportStats, error) {
	var stats domain.TransportStats

	for _, track := range t.tracks {
		if counter, ok := track.(FrameCountingTrack); ok {
			stats.FramesSent += counter.FramesSent()
		}
	}

	report := t.pc.GetStats()
	var pairBytes uint64
	for _, s := range report {
		switch v := s.(type) {
		case webrtc.TransportStats:
			stats.BytesSent += v.BytesSent
		case webrtc.ICECandidatePairStats:
			if v.Nominated {
				pairBytes += v.BytesSent
			}
		}
	}
	if stats.BytesSent == 0 {
		stats.BytesSent = pairBytes
	}

	if sctp := t.pc.SCTP(); sctp != nil {
		if dtls := sctp.Transport(); dtls != nil {
			stats.SecurityState = dtls.State().String()
		}
	}

	t.mu.Lock()
	stats.PacketLoss = t.fractionLost
	t.mu.Unlock()

	return stats, nil
}

func (t *PionTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.pc.Close()
}

func mapPeerConnectionState(state webrtc.PeerConnectionState) ports.TransportState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return ports.TransportNew
	case webrtc.PeerConnectionStateConnecting:
		return ports.TransportConnecting
	case webrtc.PeerConnectionStateConnected:
		return ports.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return ports.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return ports.TransportFailed
	default:
		return ports.TransportClosed
	}
}

type pionDataChannel struct {
	dc *webrtc.DataChannel
}

func (c *pionDataChannel) Label() string { return c.dc.Label() }

func (c *pionDataChannel) Send(payload []byte) error { return c.dc.Send(payload) }

func (c *pionDataChannel) OnOpen(fn func()) { c.dc.OnOpen(fn) }

func (c *pionDataChannel) OnMessage(fn func([]byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (c *pionDataChannel) Close() error { return c.dc.Close() }

type pionRemoteTrack struct {
	track *webrtc.TrackRemote
}

func (t *pionRemoteTrack) ID() string { return t.track.ID() }

func (t *pionRemoteTrack) Kind() string { return t.track.Kind().String() }
