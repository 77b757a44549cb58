package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chatcoins/internal/domain"
)

// ActionArrest is the cooldown key for officer pacing. The cooldown is
// per officer, not per target.
const ActionArrest = "arrest"

// CreateArrest books a target and stamps the officer's cooldown in one
// transaction. Both guards are evaluated at commit time: an active
// arrest on the target rejects with AlreadyInState, an unelapsed
// officer cooldown with CooldownActive carrying the remaining wait.
func (s *Store) CreateArrest(ctx context.Context, targetID, officerID string, releaseAt time.Time, officerCooldown time.Duration) (*domain.ArrestRecord, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Officer pacing first. The conditional upsert only advances the
	// timestamp once the cooldown has fully elapsed.
	tag, err := tx.Exec(ctx, `
		INSERT INTO cooldowns (account_id, action, last_action_at)
		VALUES ($1, $2, now())
		ON CONFLICT (account_id, action)
		DO UPDATE SET last_action_at = now()
		WHERE cooldowns.last_action_at <= now() - $3::interval
	`, officerID, ActionArrest, officerCooldown)
	if err != nil {
		return nil, fault("stamping officer cooldown", err)
	}
	if tag.RowsAffected() == 0 {
		var last time.Time
		if err := tx.QueryRow(ctx, `
			SELECT last_action_at FROM cooldowns WHERE account_id = $1 AND action = $2
		`, officerID, ActionArrest).Scan(&last); err != nil {
			return nil, fault("reading officer cooldown", err)
		}
		return nil, &domain.CooldownError{
			Action:    ActionArrest,
			Remaining: time.Until(last.Add(officerCooldown)),
		}
	}

	// An expired arrest row is logically absent and may be overwritten;
	// an active one rejects.
	var rec domain.ArrestRecord
	err = tx.QueryRow(ctx, `
		INSERT INTO arrests (account_id, officer_id, release_at, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account_id)
		DO UPDATE SET officer_id = EXCLUDED.officer_id, release_at = EXCLUDED.release_at, created_at = now()
		WHERE arrests.release_at <= now()
		RETURNING account_id, officer_id, release_at, created_at
	`, targetID, officerID, releaseAt).Scan(&rec.AccountID, &rec.OfficerID, &rec.ReleaseAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlreadyInState
		}
		return nil, fault("creating arrest", err)
	}

	if err := commit(ctx, tx); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ActiveArrest returns the target's arrest, or nil once the release
// time has passed. Expiry is evaluated on read; the sweep only cleans
// storage.
func (s *Store) ActiveArrest(ctx context.Context, accountID string) (*domain.ArrestRecord, error) {
	var rec domain.ArrestRecord
	err := s.pool.QueryRow(ctx, `
		SELECT account_id, officer_id, release_at, created_at
		FROM arrests
		WHERE account_id = $1 AND release_at > now()
	`, accountID).Scan(&rec.AccountID, &rec.OfficerID, &rec.ReleaseAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fault("reading arrest", err)
	}
	return &rec, nil
}

// SweepArrests removes released arrest rows.
func (s *Store) SweepArrests(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM arrests WHERE release_at <= now()`)
	if err != nil {
		return 0, fault("sweeping arrests", err)
	}
	return tag.RowsAffected(), nil
}
