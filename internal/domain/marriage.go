package domain

import "time"

// ProposalKind distinguishes the two-party handshakes.
type ProposalKind string

const (
	ProposalMarriage ProposalKind = "marriage"
	ProposalDivorce  ProposalKind = "divorce"
)

// Proposal is a durable pending request with a single responder. Keeping
// it in the store (rather than in-process maps) lets any process
// instance answer it and survives restarts.
type Proposal struct {
	ID         string       `json:"id"`
	Kind       ProposalKind `json:"kind"`
	ProposerID string       `json:"proposer_id"`
	TargetID   string       `json:"target_id"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Marriage is an active relationship between an unordered account pair.
// The pair is normalized so that PartnerA < PartnerB; an account appears
// in at most one row.
type Marriage struct {
	PartnerA  string    `json:"partner_a"`
	PartnerB  string    `json:"partner_b"`
	MarriedAt time.Time `json:"married_at"`
}

// OrderPair normalizes an account pair for storage.
func OrderPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// SpouseOf returns the other partner, or "" when id is not part of the
// marriage.
func (m *Marriage) SpouseOf(id string) string {
	switch id {
	case m.PartnerA:
		return m.PartnerB
	case m.PartnerB:
		return m.PartnerA
	}
	return ""
}
