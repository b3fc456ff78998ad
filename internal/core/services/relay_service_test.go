package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRelay() *RelayService {
	return NewRelayService(
		memory.NewMemoryDirectoryRepository(30*time.Second),
		memory.NewMemoryMailboxRepository(),
		nil,
		zap.NewNop().Sugar(),
	)
}

func envelope(from, to domain.PeerID, sig domain.Signal) domain.Envelope {
	return domain.Envelope{SenderID: from, RecipientID: to, Signal: sig}
}

func TestRelay_PollReturnsEnvelopesInSendOrder(t *testing.T) {
	relay := newTestRelay()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sdp := fmt.Sprintf("v=%d", i)
		require.NoError(t, relay.Send(ctx, envelope("alice", "bob", domain.NewOffer(sdp))))
	}

	deliveries, err := relay.Poll(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, deliveries, 5)
	for i, d := range deliveries {
		assert.Equal(t, domain.PeerID("alice"), d.SenderID)
		assert.Equal(t, fmt.Sprintf("v=%d", i), d.Signal.SDP)
	}

	// A second immediate poll must be empty: delivery removes atomically.
	again, err := relay.Poll(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRelay_SendToUnknownRecipientIsStored(t *testing.T) {
	relay := newTestRelay()
	ctx := context.Background()

	// "carol" has never polled or registered; storing for her must succeed.
	require.NoError(t, relay.Send(ctx, envelope("alice", "carol", domain.NewOffer("v=0"))))

	deliveries, err := relay.Poll(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
}

func TestRelay_SendValidation(t *testing.T) {
	relay := newTestRelay()
	ctx := context.Background()

	err := relay.Send(ctx, envelope("", "bob", domain.NewOffer("v=0")))
	assert.ErrorIs(t, err, domain.ErrMissingSender)

	err = relay.Send(ctx, envelope("alice", "", domain.NewOffer("v=0")))
	assert.ErrorIs(t, err, domain.ErrMissingRecipient)

	err = relay.Send(ctx, envelope("alice", "bob", domain.Signal{Kind: domain.KindCandidate}))
	assert.Error(t, err)
}

func TestRelay_PollRequiresPeerID(t *testing.T) {
	relay := newTestRelay()

	_, err := relay.Poll(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingRecipient)
}

func TestRelay_TrafficRefreshesDirectory(t *testing.T) {
	relay := newTestRelay()
	ctx := context.Background()

	require.NoError(t, relay.Send(ctx, envelope("alice", "bob", domain.NewOffer("v=0"))))
	_, err := relay.Poll(ctx, "bob")
	require.NoError(t, err)

	peers, err := relay.ListPeers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.PeerID{"alice", "bob"}, peers)
}
