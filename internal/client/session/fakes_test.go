package session

import (
	"context"
	"sync"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
)

// fakeTransport records negotiation calls and exposes the registered
// callbacks so tests can drive the transport side of the state machine.
type fakeTransport struct {
	mu sync.Mutex

	offerSDP  string
	answerSDP string
	offerErr  error
	answerErr error
	remoteErr error
	statsFn   func() (domain.TransportStats, error)

	remoteDescs []string
	candidates  []domain.CandidateInit
	channels    []*fakeDataChannel
	closed      int

	onDataChannel func(ports.DataChannel)
	onCandidate   func(domain.CandidateInit)
	onStateChange func(ports.TransportState)
	onRemoteTrack func(ports.RemoteTrack)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{offerSDP: "offer-sdp", answerSDP: "answer-sdp"}
}

func (t *fakeTransport) CreateOffer(ctx context.Context) (string, error) {
	if t.offerErr != nil {
		return "", t.offerErr
	}
	return t.offerSDP, nil
}

func (t *fakeTransport) CreateAnswer(ctx context.Context) (string, error) {
	if t.answerErr != nil {
		return "", t.answerErr
	}
	return t.answerSDP, nil
}

func (t *fakeTransport) SetRemoteDescription(ctx context.Context, kind domain.SignalKind, sdp string) error {
	if t.remoteErr != nil {
		return t.remoteErr
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remoteDescs = append(t.remoteDescs, string(kind)+":"+sdp)
	return nil
}

func (t *fakeTransport) AddCandidate(c domain.CandidateInit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.candidates = append(t.candidates, c)
	return nil
}

func (t *fakeTransport) CreateDataChannel(label string) (ports.DataChannel, error) {
	ch := newFakeDataChannel(label)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channels = append(t.channels, ch)
	return ch, nil
}

func (t *fakeTransport) OnDataChannel(fn func(ports.DataChannel))    { t.onDataChannel = fn }
func (t *fakeTransport) OnCandidate(fn func(domain.CandidateInit))   { t.onCandidate = fn }
func (t *fakeTransport) OnStateChange(fn func(ports.TransportState)) { t.onStateChange = fn }
func (t *fakeTransport) OnRemoteTrack(fn func(ports.RemoteTrack))    { t.onRemoteTrack = fn }

func (t *fakeTransport) Stats() (domain.TransportStats, error) {
	if t.statsFn != nil {
		return t.statsFn()
	}
	return domain.TransportStats{}, nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

func (t *fakeTransport) addedCandidates() []domain.CandidateInit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.CandidateInit(nil), t.candidates...)
}

func (t *fakeTransport) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeDataChannel struct {
	label string

	mu        sync.Mutex
	sent      [][]byte
	closed    int
	onOpen    func()
	onMessage func([]byte)

	// When set, Send hands the payload to the hook instead of recording it,
	// letting tests emulate the remote end of the channel.
	sendHook func([]byte)
}

func newFakeDataChannel(label string) *fakeDataChannel {
	return &fakeDataChannel{label: label}
}

func (c *fakeDataChannel) Label() string { return c.label }

func (c *fakeDataChannel) Send(payload []byte) error {
	c.mu.Lock()
	hook := c.sendHook
	if hook == nil {
		c.sent = append(c.sent, append([]byte(nil), payload...))
	}
	c.mu.Unlock()

	if hook != nil {
		hook(payload)
	}
	return nil
}

func (c *fakeDataChannel) OnOpen(fn func())          { c.onOpen = fn }
func (c *fakeDataChannel) OnMessage(fn func([]byte)) { c.onMessage = fn }

func (c *fakeDataChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeDataChannel) sentPayloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeDataChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// deliver emulates a message arriving from the remote end.
func (c *fakeDataChannel) deliver(payload []byte) {
	if c.onMessage != nil {
		c.onMessage(payload)
	}
}

type fakeSignaler struct {
	mu      sync.Mutex
	sent    []domain.Envelope
	sendErr error
}

func (s *fakeSignaler) ListPeers(ctx context.Context) ([]domain.PeerID, error) {
	return nil, nil
}

func (s *fakeSignaler) Send(ctx context.Context, env domain.Envelope) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, env)
	return nil
}

func (s *fakeSignaler) Poll(ctx context.Context, id domain.PeerID) ([]domain.Delivery, error) {
	return nil, nil
}

func (s *fakeSignaler) envelopes() []domain.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Envelope(nil), s.sent...)
}

// recordingObserver captures every notification for assertion.
type recordingObserver struct {
	mu      sync.Mutex
	states  []domain.SessionState
	errs    []error
	rtts    []time.Duration
	samples []domain.MetricsSample
}

func (o *recordingObserver) OnSessionState(remote domain.PeerID, state domain.SessionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func (o *recordingObserver) OnSessionError(remote domain.PeerID, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func (o *recordingObserver) OnRemoteTrack(remote domain.PeerID, track ports.RemoteTrack) {}

func (o *recordingObserver) OnRoundTrip(remote domain.PeerID, rtt time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rtts = append(o.rtts, rtt)
}

func (o *recordingObserver) OnMetricsSample(remote domain.PeerID, sample domain.MetricsSample) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, sample)
}

func (o *recordingObserver) sessionStates() []domain.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.SessionState(nil), o.states...)
}

func (o *recordingObserver) sessionErrors() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errs...)
}

func (o *recordingObserver) roundTrips() []time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Duration(nil), o.rtts...)
}

func (o *recordingObserver) metricsSamples() []domain.MetricsSample {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.MetricsSample(nil), o.samples...)
}
