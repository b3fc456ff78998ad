package session

import (
	"sync"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
)

const metricsChannelLabel = "metrics"

// Session is one negotiation toward a remote peer. It owns its transport,
// its metrics channel and every periodic activity started on its behalf;
// close releases all of them exactly once.
type Session struct {
	remote    domain.PeerID
	state     domain.SessionState
	transport ports.SessionTransport
	manager   *Manager

	mu            sync.Mutex
	remoteDescSet bool
	pending       []domain.CandidateInit
	metrics       *MetricsChannel
	closeOnce     sync.Once
}

func newSession(remote domain.PeerID, state domain.SessionState, transport ports.SessionTransport, manager *Manager) *Session {
	return &Session{
		remote:    remote,
		state:     state,
		transport: transport,
		manager:   manager,
	}
}

// markRemoteDescription records that a remote description is applied and
// hands back the candidates buffered while waiting for it.
func (s *Session) markRemoteDescription() []domain.CandidateInit {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remoteDescSet = true
	buffered := s.pending
	s.pending = nil
	return buffered
}

func (s *Session) remoteDescriptionSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteDescSet
}

func (s *Session) bufferCandidate(c domain.CandidateInit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, c)
}

// bindMetricsChannel wraps the data channel into the liveness machinery.
// The establishing side (offerer) runs the ping loop; both sides echo.
func (s *Session) bindMetricsChannel(ch ports.DataChannel, establishing bool) {
	s.metrics = newMetricsChannel(
		s.remote,
		ch,
		s.transport.Stats,
		s.manager.observer,
		s.manager.cfg,
		establishing,
		s.manager.logger,
	)
}

// startMetrics launches the ping and sampling loops. Idempotent.
func (s *Session) startMetrics() {
	if s.metrics != nil {
		s.metrics.Start()
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state = domain.SessionClosed
		if s.metrics != nil {
			s.metrics.Close()
		}
		if err := s.transport.Close(); err != nil {
			s.manager.logger.Debugw("transport close", "remote_peer", s.remote, "error", err)
		}
	})
}
