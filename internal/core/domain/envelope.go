package domain

// Envelope is one relayed signaling message. Envelopes are immutable once
// created: the mailbox owns them until a poll drains them, after which the
// consuming state machine does.
type Envelope struct {
	SenderID    PeerID `json:"sender_id"`
	RecipientID PeerID `json:"recipient_id"`
	Signal      Signal `json:"message"`
}

// Delivery is the poll-side view of an envelope; the recipient is implicit
// in the poll request.
type Delivery struct {
	SenderID PeerID `json:"sender_id"`
	Signal   Signal `json:"message"`
}

func (e Envelope) Validate() error {
	if e.SenderID == "" {
		return ErrMissingSender
	}
	if e.RecipientID == "" {
		return ErrMissingRecipient
	}
	return e.Signal.Validate()
}
