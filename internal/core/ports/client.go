package ports

import (
	"context"
	"time"

	"peerlink/internal/core/domain"
)

// Signaler is the client-side view of the relay API. Implementations talk
// HTTP to a remote relay; tests substitute an in-memory fake.
type Signaler interface {
	ListPeers(ctx context.Context) ([]domain.PeerID, error)
	Send(ctx context.Context, env domain.Envelope) error
	Poll(ctx context.Context, id domain.PeerID) ([]domain.Delivery, error)
}

// TransportState mirrors the underlying peer connection's lifecycle as far
// as the negotiation state machine needs to see it.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DataChannel is a bidirectional message channel inside an established
// session, used here only for the liveness/metrics sub-channel.
type DataChannel interface {
	Label() string
	Send(payload []byte) error
	OnOpen(fn func())
	OnMessage(fn func(payload []byte))
	Close() error
}

// RemoteTrack is an opaque handle to a remote media track; rendering is an
// external collaborator's concern.
type RemoteTrack interface {
	ID() string
	Kind() string
}

// SessionTransport abstracts the peer connection so the state machine can be
// driven by a fake in tests. Callbacks must be registered before negotiation
// starts.
type SessionTransport interface {
	// CreateOffer produces and applies the local description for the
	// offering role and returns its SDP.
	CreateOffer(ctx context.Context) (string, error)

	// CreateAnswer produces and applies the local description for the
	// answering role and returns its SDP.
	CreateAnswer(ctx context.Context) (string, error)

	SetRemoteDescription(ctx context.Context, kind domain.SignalKind, sdp string) error

	// AddCandidate ingests a remote connectivity candidate. Callers must
	// only invoke it after a remote description is set.
	AddCandidate(c domain.CandidateInit) error

	CreateDataChannel(label string) (DataChannel, error)
	OnDataChannel(fn func(DataChannel))
	OnCandidate(fn func(domain.CandidateInit))
	OnStateChange(fn func(TransportState))
	OnRemoteTrack(fn func(RemoteTrack))

	Stats() (domain.TransportStats, error)
	Close() error
}

// SessionObserver receives notifications for external collaborators (UI,
// media attach/detach). All callbacks are invoked from the client's
// dispatch flow; implementations must not block.
type SessionObserver interface {
	OnSessionState(remote domain.PeerID, state domain.SessionState)
	OnSessionError(remote domain.PeerID, err error)
	OnRemoteTrack(remote domain.PeerID, track RemoteTrack)
	OnRoundTrip(remote domain.PeerID, rtt time.Duration)
	OnMetricsSample(remote domain.PeerID, sample domain.MetricsSample)
}

// NopObserver is an embeddable no-op SessionObserver.
type NopObserver struct{}

func (NopObserver) OnSessionState(domain.PeerID, domain.SessionState)   {}
func (NopObserver) OnSessionError(domain.PeerID, error)                 {}
func (NopObserver) OnRemoteTrack(domain.PeerID, RemoteTrack)            {}
func (NopObserver) OnRoundTrip(domain.PeerID, time.Duration)            {}
func (NopObserver) OnMetricsSample(domain.PeerID, domain.MetricsSample) {}
