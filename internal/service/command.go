package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chatcoins/internal/domain"
)

// Command verbs accepted from the messaging gateway.
const (
	VerbTransfer      = "transfer"
	VerbRoulette      = "roulette"
	VerbDie           = "die"
	VerbDice          = "dice"
	VerbSteal         = "steal"
	VerbArrest        = "arrest"
	VerbBuy           = "buy"
	VerbMarry         = "marry"
	VerbMarryAnswer   = "marry_answer"
	VerbDivorce       = "divorce"
	VerbDivorceAnswer = "divorce_answer"
)

// Execute dispatches one decoded chat command to the matching economy
// operation. The outcome reaches users through the event feed; the
// returned error only reports why a command was rejected.
func (s *EconomyService) Execute(ctx context.Context, cmd domain.Command) error {
	switch cmd.Verb {
	case VerbTransfer:
		amount, err := domain.ParseCoins(cmd.Amount)
		if err != nil {
			return err
		}
		_, err = s.Transfer(ctx, cmd.ActorID, cmd.TargetID, amount, strings.TrimSpace(cmd.Args))
		return err

	case VerbRoulette:
		amount, err := domain.ParseCoins(cmd.Amount)
		if err != nil {
			return err
		}
		bet, err := domain.ParseRouletteBet(cmd.Args)
		if err != nil {
			return err
		}
		_, err = s.PlayRoulette(ctx, cmd.ActorID, bet, amount)
		return err

	case VerbDie, VerbDice:
		amount, err := domain.ParseCoins(cmd.Amount)
		if err != nil {
			return err
		}
		selection, err := strconv.Atoi(strings.TrimSpace(cmd.Args))
		if err != nil {
			return fmt.Errorf("parsing dice selection %q: %w", cmd.Args, domain.ErrInvalidRequest)
		}
		dice := 1
		if cmd.Verb == VerbDice {
			dice = 2
		}
		_, err = s.PlayDice(ctx, cmd.ActorID, domain.DiceBet{Dice: dice, Selection: selection}, amount)
		return err

	case VerbSteal:
		_, err := s.Steal(ctx, cmd.ActorID, cmd.TargetID)
		return err

	case VerbArrest:
		_, err := s.Arrest(ctx, cmd.ActorID, cmd.TargetID, cmd.Args)
		return err

	case VerbBuy:
		_, err := s.PurchasePrivilege(ctx, cmd.ActorID, strings.TrimSpace(cmd.Args))
		return err

	case VerbMarry:
		_, err := s.ProposeMarriage(ctx, cmd.ActorID, cmd.TargetID)
		return err

	case VerbMarryAnswer:
		_, err := s.RespondMarriage(ctx, cmd.ActorID, cmd.TargetID, parseAnswer(cmd.Args))
		return err

	case VerbDivorce:
		_, err := s.RequestDivorce(ctx, cmd.ActorID)
		return err

	case VerbDivorceAnswer:
		return s.RespondDivorce(ctx, cmd.ActorID, cmd.TargetID, parseAnswer(cmd.Args))

	default:
		return fmt.Errorf("unknown verb %q: %w", cmd.Verb, domain.ErrInvalidRequest)
	}
}

func parseAnswer(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "accept", "true":
		return true
	}
	return false
}
