package session

import (
	"context"
	"sync"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"go.uber.org/zap"
)

// TransportFactory builds a fresh transport for each negotiation attempt.
type TransportFactory func() (ports.SessionTransport, error)

// Config carries the periodic cadences a session runs on.
type Config struct {
	PingInterval  time.Duration
	StatsInterval time.Duration
}

// Manager drives session negotiation for the local client. At most one
// session is active at a time: Connect fails with ErrSessionActive while a
// non-terminal session exists, making supersession an explicit caller
// decision. The manager consumes relayed signals (as the poller's delivery
// handler) and emits new envelopes through the signaler.
type Manager struct {
	localID      domain.PeerID
	signaler     ports.Signaler
	newTransport TransportFactory
	observer     ports.SessionObserver
	cfg          Config
	logger       *zap.SugaredLogger

	mu      sync.Mutex
	current *Session

	// Candidates that arrived before any session existed for their sender.
	// ICE trickling legitimately races the offer; these are applied once a
	// remote description is in place instead of being dropped.
	earlyCandidates map[domain.PeerID][]domain.CandidateInit
}

func NewManager(
	localID domain.PeerID,
	signaler ports.Signaler,
	newTransport TransportFactory,
	observer ports.SessionObserver,
	cfg Config,
	logger *zap.SugaredLogger,
) *Manager {
	if observer == nil {
		observer = ports.NopObserver{}
	}
	return &Manager{
		localID:         localID,
		signaler:        signaler,
		newTransport:    newTransport,
		observer:        observer,
		cfg:             cfg,
		logger:          logger,
		earlyCandidates: make(map[domain.PeerID][]domain.CandidateInit),
	}
}

// LocalID returns the identity sessions are negotiated under.
func (m *Manager) LocalID() domain.PeerID {
	return m.localID
}

// Connect initiates a session toward the remote peer: create the transport,
// open the metrics channel (offerer role), produce the local offer and relay
// it. On success the session is awaiting the remote answer.
func (m *Manager) Connect(ctx context.Context, remote domain.PeerID) error {
	m.mu.Lock()
	if m.current != nil && !m.current.state.Terminal() {
		m.mu.Unlock()
		return domain.ErrSessionActive
	}

	sess, err := m.newSessionLocked(remote, domain.SessionOffering)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	// The offering role creates the metrics sub-channel before the offer so
	// it is negotiated into the session description.
	ch, err := sess.transport.CreateDataChannel(metricsChannelLabel)
	if err != nil {
		m.failLocked(sess, err)
		m.mu.Unlock()
		return err
	}
	sess.bindMetricsChannel(ch, true)
	m.mu.Unlock()

	m.observer.OnSessionState(remote, domain.SessionOffering)

	sdp, err := sess.transport.CreateOffer(ctx)
	if err != nil {
		m.fail(sess, err)
		return err
	}

	if err := m.send(ctx, remote, domain.NewOffer(sdp)); err != nil {
		m.fail(sess, err)
		return err
	}

	m.setState(sess, domain.SessionAwaitingAnswer)
	m.logger.Infow("offer sent", "remote_peer", remote)
	return nil
}

// Stop tears the active session down. Calling it with no session, or twice,
// is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	sess := m.current
	if sess == nil || sess.state.Terminal() {
		m.mu.Unlock()
		return
	}
	m.closeLocked(sess)
	m.mu.Unlock()

	m.observer.OnSessionState(sess.remote, domain.SessionClosed)
	m.logger.Infow("session stopped", "remote_peer", sess.remote)
}

// State reports the current session's state, or Idle when none exists.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return domain.SessionIdle
	}
	return m.current.state
}

// Remote reports the current session's remote peer, or "" when none exists.
func (m *Manager) Remote() domain.PeerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || m.current.state.Terminal() {
		return ""
	}
	return m.current.remote
}

// HandleDelivery consumes one relayed signal; it is the poller's dispatch
// target and must stay synchronous so envelope order is preserved.
func (m *Manager) HandleDelivery(from domain.PeerID, sig domain.Signal) {
	switch sig.Kind {
	case domain.KindOffer:
		m.handleOffer(from, sig.SDP)
	case domain.KindAnswer:
		m.handleAnswer(from, sig.SDP)
	case domain.KindCandidate:
		m.handleCandidate(from, *sig.Candidate)
	default:
		m.logger.Warnw("dropping signal of unknown kind", "from_peer", from, "kind", sig.Kind)
	}
}

func (m *Manager) handleOffer(from domain.PeerID, sdp string) {
	ctx := context.Background()

	m.mu.Lock()
	if m.current != nil && !m.current.state.Terminal() {
		// The active session is never silently superseded; the remote can
		// retry once the local side stops.
		m.mu.Unlock()
		m.logger.Warnw("dropping offer while a session is active",
			"from_peer", from, "active_peer", m.current.remote)
		return
	}

	sess, err := m.newSessionLocked(from, domain.SessionAnswering)
	if err != nil {
		m.mu.Unlock()
		m.observer.OnSessionError(from, err)
		return
	}
	early := m.earlyCandidates[from]
	delete(m.earlyCandidates, from)
	m.mu.Unlock()

	m.observer.OnSessionState(from, domain.SessionAnswering)

	if err := sess.transport.SetRemoteDescription(ctx, domain.KindOffer, sdp); err != nil {
		m.fail(sess, err)
		return
	}
	early = append(early, sess.markRemoteDescription()...)

	// Candidates that raced ahead of the offer apply now that a remote
	// description exists.
	for _, c := range early {
		if err := sess.transport.AddCandidate(c); err != nil {
			m.logger.Warnw("failed to apply buffered candidate", "from_peer", from, "error", err)
		}
	}

	answer, err := sess.transport.CreateAnswer(ctx)
	if err != nil {
		m.fail(sess, err)
		return
	}

	if err := m.send(ctx, from, domain.NewAnswer(answer)); err != nil {
		m.fail(sess, err)
		return
	}

	m.logger.Infow("answer sent", "remote_peer", from)
}

func (m *Manager) handleAnswer(from domain.PeerID, sdp string) {
	m.mu.Lock()
	sess := m.current
	if sess == nil || sess.state != domain.SessionAwaitingAnswer || sess.remote != from {
		m.mu.Unlock()
		m.logger.Warnw("dropping unexpected answer", "from_peer", from)
		return
	}
	m.mu.Unlock()

	if err := sess.transport.SetRemoteDescription(context.Background(), domain.KindAnswer, sdp); err != nil {
		m.fail(sess, err)
		return
	}

	buffered := sess.markRemoteDescription()
	for _, c := range buffered {
		if err := sess.transport.AddCandidate(c); err != nil {
			m.logger.Warnw("failed to apply buffered candidate", "from_peer", from, "error", err)
		}
	}

	// ICE negotiation proceeds asynchronously from here; the transport's
	// state callback moves the session to Connected.
	m.setState(sess, domain.SessionAnswering)
}

func (m *Manager) handleCandidate(from domain.PeerID, c domain.CandidateInit) {
	m.mu.Lock()
	sess := m.current
	if sess == nil || sess.state.Terminal() || sess.remote != from {
		// No session yet for this sender: buffer rather than drop, the
		// offer may still be in flight.
		m.earlyCandidates[from] = append(m.earlyCandidates[from], c)
		m.mu.Unlock()
		m.logger.Debugw("buffered early candidate", "from_peer", from)
		return
	}

	if !sess.remoteDescriptionSet() {
		sess.bufferCandidate(c)
		m.mu.Unlock()
		m.logger.Debugw("buffered candidate awaiting remote description", "from_peer", from)
		return
	}
	m.mu.Unlock()

	if err := sess.transport.AddCandidate(c); err != nil {
		m.logger.Warnw("failed to add remote candidate", "from_peer", from, "error", err)
	}
}

// newSessionLocked builds a session plus transport and wires all transport
// callbacks. Caller holds m.mu.
func (m *Manager) newSessionLocked(remote domain.PeerID, state domain.SessionState) (*Session, error) {
	transport, err := m.newTransport()
	if err != nil {
		return nil, err
	}

	sess := newSession(remote, state, transport, m)
	m.current = sess

	transport.OnCandidate(func(c domain.CandidateInit) {
		// Trickled local candidates relay asynchronously; a lost candidate
		// degrades connectivity, it does not fail the session.
		go func() {
			if err := m.send(context.Background(), remote, domain.NewCandidate(c)); err != nil {
				m.logger.Warnw("failed to relay local candidate", "remote_peer", remote, "error", err)
			}
		}()
	})

	transport.OnStateChange(func(state ports.TransportState) {
		m.handleTransportState(sess, state)
	})

	transport.OnDataChannel(func(ch ports.DataChannel) {
		m.handleIncomingChannel(sess, ch)
	})

	transport.OnRemoteTrack(func(track ports.RemoteTrack) {
		m.observer.OnRemoteTrack(remote, track)
	})

	return sess, nil
}

func (m *Manager) handleTransportState(sess *Session, state ports.TransportState) {
	switch state {
	case ports.TransportConnected:
		m.mu.Lock()
		if sess.state.Terminal() || sess.state == domain.SessionConnected {
			m.mu.Unlock()
			return
		}
		sess.state = domain.SessionConnected
		sess.startMetrics()
		m.mu.Unlock()

		m.observer.OnSessionState(sess.remote, domain.SessionConnected)
		m.logger.Infow("session connected", "remote_peer", sess.remote)

	case ports.TransportFailed, ports.TransportDisconnected:
		m.fail(sess, domain.ErrSessionClosed)
	}
}

// handleIncomingChannel attaches the metrics channel on the answering side.
// A session binds exactly one; duplicates are closed.
func (m *Manager) handleIncomingChannel(sess *Session, ch ports.DataChannel) {
	if ch.Label() != metricsChannelLabel {
		m.logger.Warnw("ignoring unexpected data channel", "label", ch.Label())
		ch.Close()
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess.metrics != nil {
		m.logger.Warnw("duplicate metrics channel, closing", "remote_peer", sess.remote)
		ch.Close()
		return
	}
	sess.bindMetricsChannel(ch, false)
	if sess.state == domain.SessionConnected {
		sess.startMetrics()
	}
}

func (m *Manager) send(ctx context.Context, to domain.PeerID, sig domain.Signal) error {
	return m.signaler.Send(ctx, domain.Envelope{
		SenderID:    m.localID,
		RecipientID: to,
		Signal:      sig,
	})
}

func (m *Manager) setState(sess *Session, state domain.SessionState) {
	m.mu.Lock()
	if sess.state.Terminal() {
		m.mu.Unlock()
		return
	}
	sess.state = state
	m.mu.Unlock()

	m.observer.OnSessionState(sess.remote, state)
}

// fail reports a negotiation error and forces the session closed. Errors are
// never retried; the user must re-initiate.
func (m *Manager) fail(sess *Session, err error) {
	m.mu.Lock()
	if sess.state.Terminal() {
		m.mu.Unlock()
		return
	}
	m.failLocked(sess, err)
	m.mu.Unlock()

	m.observer.OnSessionError(sess.remote, err)
	m.observer.OnSessionState(sess.remote, domain.SessionClosed)
}

func (m *Manager) failLocked(sess *Session, err error) {
	m.logger.Errorw("session failed", "remote_peer", sess.remote, "error", err)
	m.closeLocked(sess)
}

// closeLocked releases everything the session owns: metrics timers first so
// no tick outlives the transport, then the transport itself.
func (m *Manager) closeLocked(sess *Session) {
	sess.close()
}
