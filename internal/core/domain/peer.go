package domain

import "time"

type PeerID string

// Peer is a directory entry for a currently reachable peer. Identities are
// opaque strings generated by each client at startup; the relay never
// authenticates them.
type Peer struct {
	ID       PeerID    `json:"id"`
	Address  string    `json:"address,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}
