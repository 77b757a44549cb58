package service

import (
	"context"
	"fmt"

	"github.com/chatcoins/internal/domain"
)

// ProposeMarriage files a durable marriage request addressed to the
// target. The request survives restarts and can be answered by any
// process instance.
func (s *EconomyService) ProposeMarriage(ctx context.Context, proposerID, targetID string) (*domain.Proposal, error) {
	if proposerID == targetID {
		return nil, fmt.Errorf("cannot marry yourself: %w", domain.ErrInvalidRequest)
	}

	for _, id := range []string{proposerID, targetID} {
		marriage, err := s.store.MarriageOf(ctx, id)
		if err != nil {
			return nil, err
		}
		if marriage != nil {
			return nil, fmt.Errorf("%s is already married: %w", id, domain.ErrAlreadyInState)
		}
	}

	if err := s.store.EnsureAccount(ctx, targetID); err != nil {
		return nil, err
	}
	return s.store.CreateProposal(ctx, domain.ProposalMarriage, proposerID, targetID, s.economy.Marriage.ProposalTTL)
}

// RespondMarriage answers a pending marriage proposal. The response is
// single-shot: the proposal is consumed whether accepted or declined.
// The single-active-relationship invariant is re-validated at commit
// time inside the store.
func (s *EconomyService) RespondMarriage(ctx context.Context, responderID, proposerID string, accept bool) (*domain.Marriage, error) {
	if _, err := s.store.TakeProposal(ctx, domain.ProposalMarriage, proposerID, responderID, s.economy.Marriage.ProposalTTL); err != nil {
		return nil, err
	}
	if !accept {
		return nil, nil
	}

	marriage, err := s.store.CreateMarriage(ctx, proposerID, responderID)
	if err != nil {
		return nil, err
	}

	s.publish(domain.Event{
		Type:     domain.EventMarriage,
		ActorID:  proposerID,
		TargetID: responderID,
	})
	return marriage, nil
}

// RequestDivorce files a durable divorce request with the requester's
// spouse as the responder.
func (s *EconomyService) RequestDivorce(ctx context.Context, requesterID string) (*domain.Proposal, error) {
	marriage, err := s.store.MarriageOf(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if marriage == nil {
		return nil, fmt.Errorf("not married: %w", domain.ErrNotFound)
	}
	return s.store.CreateProposal(ctx, domain.ProposalDivorce, requesterID, marriage.SpouseOf(requesterID), s.economy.Marriage.ProposalTTL)
}

// RespondDivorce answers a pending divorce request. Accepting ends the
// marriage; declining only consumes the request.
func (s *EconomyService) RespondDivorce(ctx context.Context, responderID, requesterID string, accept bool) error {
	if _, err := s.store.TakeProposal(ctx, domain.ProposalDivorce, requesterID, responderID, s.economy.Marriage.ProposalTTL); err != nil {
		return err
	}
	if !accept {
		return nil
	}

	if err := s.store.DeleteMarriage(ctx, requesterID, responderID); err != nil {
		return err
	}

	s.publish(domain.Event{
		Type:     domain.EventDivorce,
		ActorID:  requesterID,
		TargetID: responderID,
	})
	return nil
}
