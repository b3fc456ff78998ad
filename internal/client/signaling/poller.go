package signaling

import (
	"context"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"go.uber.org/zap"
)

// DeliveryHandler consumes one relayed signal. Deliveries from a single poll
// are dispatched synchronously, in the order the relay returned them.
type DeliveryHandler interface {
	HandleDelivery(from domain.PeerID, sig domain.Signal)
}

// Poller retrieves pending envelopes for the local identity on a fixed
// interval. It starts at process initialization and runs for the process
// lifetime regardless of session state. A failed tick is logged and skipped;
// the next tick proceeds independently.
type Poller struct {
	signaler ports.Signaler
	localID  domain.PeerID
	handler  DeliveryHandler
	interval time.Duration
	logger   *zap.SugaredLogger

	done chan struct{}
}

func NewPoller(
	signaler ports.Signaler,
	localID domain.PeerID,
	handler DeliveryHandler,
	interval time.Duration,
	logger *zap.SugaredLogger,
) *Poller {
	return &Poller{
		signaler: signaler,
		localID:  localID,
		handler:  handler,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. The first poll happens after one full
// interval, matching browser-style setInterval scheduling.
func (p *Poller) Start() {
	go p.run()
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.done:
			return
		}
	}
}

func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	deliveries, err := p.signaler.Poll(ctx, p.localID)
	if err != nil {
		// Transient: the relay retains nothing for a failed response, and
		// the next scheduled tick is the retry.
		p.logger.Warnw("poll tick failed", "peer_id", p.localID, "error", err)
		return
	}

	for _, d := range deliveries {
		p.handler.HandleDelivery(d.SenderID, d.Signal)
	}
}

// Stop cancels the polling loop. Safe to call once.
func (p *Poller) Stop() {
	close(p.done)
}
