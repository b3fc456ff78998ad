package domain

import (
	"encoding/json"
	"fmt"
)

// SignalKind discriminates the signaling payload variants.
type SignalKind string

const (
	KindOffer     SignalKind = "offer"
	KindAnswer    SignalKind = "answer"
	KindCandidate SignalKind = "candidate"
)

// CandidateInit carries one ICE candidate as trickled by the browser-facing
// wire format.
type CandidateInit struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Signal is the tagged union carried inside an envelope: an offer, an answer
// or a connectivity candidate. On the wire offers and answers carry an
// explicit "type" field while candidates are recognized by the presence of a
// "candidate" field; both shapes are preserved for compatibility with
// existing clients.
type Signal struct {
	Kind      SignalKind
	SDP       string
	Candidate *CandidateInit
}

func NewOffer(sdp string) Signal {
	return Signal{Kind: KindOffer, SDP: sdp}
}

func NewAnswer(sdp string) Signal {
	return Signal{Kind: KindAnswer, SDP: sdp}
}

func NewCandidate(c CandidateInit) Signal {
	return Signal{Kind: KindCandidate, Candidate: &c}
}

type sessionDescriptionJSON struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func (s Signal) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindOffer, KindAnswer:
		return json.Marshal(sessionDescriptionJSON{Type: string(s.Kind), SDP: s.SDP})
	case KindCandidate:
		if s.Candidate == nil {
			return nil, fmt.Errorf("candidate signal without candidate data")
		}
		return json.Marshal(s.Candidate)
	default:
		return nil, fmt.Errorf("unknown signal kind: %q", s.Kind)
	}
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type      string  `json:"type"`
		SDP       string  `json:"sdp"`
		Candidate *string `json:"candidate"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("malformed signal payload: %w", err)
	}

	// Candidates are tagged by field presence, not by "type".
	if probe.Candidate != nil {
		var c CandidateInit
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("malformed candidate payload: %w", err)
		}
		*s = Signal{Kind: KindCandidate, Candidate: &c}
		return nil
	}

	switch probe.Type {
	case string(KindOffer):
		*s = Signal{Kind: KindOffer, SDP: probe.SDP}
	case string(KindAnswer):
		*s = Signal{Kind: KindAnswer, SDP: probe.SDP}
	default:
		return fmt.Errorf("unknown signal type: %q", probe.Type)
	}
	return nil
}

// Validate checks that the union is internally consistent.
func (s Signal) Validate() error {
	switch s.Kind {
	case KindOffer, KindAnswer:
		if s.SDP == "" {
			return fmt.Errorf("%s signal requires sdp", s.Kind)
		}
	case KindCandidate:
		if s.Candidate == nil || s.Candidate.Candidate == "" {
			return fmt.Errorf("candidate signal requires candidate data")
		}
	default:
		return fmt.Errorf("unknown signal kind: %q", s.Kind)
	}
	return nil
}
