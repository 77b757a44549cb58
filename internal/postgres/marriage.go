package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chatcoins/internal/domain"
)

// MarriageOf returns the active relationship containing the account, or
// nil when single.
func (s *Store) MarriageOf(ctx context.Context, accountID string) (*domain.Marriage, error) {
	var m domain.Marriage
	err := s.pool.QueryRow(ctx, `
		SELECT partner_a, partner_b, married_at
		FROM marriages
		WHERE partner_a = $1 OR partner_b = $1
	`, accountID).Scan(&m.PartnerA, &m.PartnerB, &m.MarriedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fault("reading marriage", err)
	}
	return &m, nil
}

// CreateProposal stores a pending two-party handshake. A duplicate
// pending request for the same pair and kind rejects unless the
// existing row has lapsed, in which case it is replaced.
func (s *Store) CreateProposal(ctx context.Context, kind domain.ProposalKind, proposerID, targetID string, ttl time.Duration) (*domain.Proposal, error) {
	p := &domain.Proposal{
		ID:         uuid.New().String(),
		Kind:       kind,
		ProposerID: proposerID,
		TargetID:   targetID,
		CreatedAt:  time.Now(),
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO proposals (id, kind, proposer_id, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, proposer_id, target_id) DO UPDATE
		SET id = EXCLUDED.id, created_at = EXCLUDED.created_at
		WHERE proposals.created_at <= now() - $6::interval
	`, p.ID, string(kind), proposerID, targetID, p.CreatedAt, ttl)
	if err != nil {
		return nil, fault("creating proposal", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrAlreadyInState
	}
	return p, nil
}

// TakeProposal atomically removes a pending proposal addressed to the
// responder, returning NotFound when no such request exists. Deleting
// on read makes a response single-shot even across process instances.
// Proposals older than ttl read as absent; a lapsed request must be
// filed again, it cannot be accepted months later.
func (s *Store) TakeProposal(ctx context.Context, kind domain.ProposalKind, proposerID, targetID string, ttl time.Duration) (*domain.Proposal, error) {
	var p domain.Proposal
	var k string
	err := s.pool.QueryRow(ctx, `
		DELETE FROM proposals
		WHERE kind = $1 AND proposer_id = $2 AND target_id = $3
		  AND created_at > now() - $4::interval
		RETURNING id, kind, proposer_id, target_id, created_at
	`, string(kind), proposerID, targetID, ttl).Scan(&p.ID, &k, &p.ProposerID, &p.TargetID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fault("taking proposal", err)
	}
	p.Kind = domain.ProposalKind(k)
	return &p, nil
}

// PruneProposals drops proposals past their lifetime. Lapsed rows also
// read as absent at TakeProposal time; this clears them so a fresh
// request for the same pair is not rejected as a duplicate.
func (s *Store) PruneProposals(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM proposals WHERE created_at <= now() - $1::interval
	`, olderThan)
	if err != nil {
		return 0, fault("pruning proposals", err)
	}
	return tag.RowsAffected(), nil
}

// CreateMarriage records the accepted relationship. The single-active-
// relationship invariant is re-validated at commit time: if either
// party married someone else while the proposal was pending, the
// creation rejects.
func (s *Store) CreateMarriage(ctx context.Context, a, b string) (*domain.Marriage, error) {
	pa, pb := domain.OrderPair(a, b)

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := ensureAccountTx(ctx, tx, pa); err != nil {
		return nil, err
	}
	if err := ensureAccountTx(ctx, tx, pb); err != nil {
		return nil, err
	}

	var m domain.Marriage
	err = tx.QueryRow(ctx, `
		INSERT INTO marriages (partner_a, partner_b, married_at)
		SELECT $1, $2, now()
		WHERE NOT EXISTS (
			SELECT 1 FROM marriages
			WHERE partner_a IN ($1, $2) OR partner_b IN ($1, $2)
		)
		RETURNING partner_a, partner_b, married_at
	`, pa, pb).Scan(&m.PartnerA, &m.PartnerB, &m.MarriedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlreadyInState
		}
		return nil, fault("creating marriage", err)
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMarriage terminates the relationship; NotFound when the pair is
// not married.
func (s *Store) DeleteMarriage(ctx context.Context, a, b string) error {
	pa, pb := domain.OrderPair(a, b)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM marriages WHERE partner_a = $1 AND partner_b = $2
	`, pa, pb)
	if err != nil {
		return fault("deleting marriage", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
