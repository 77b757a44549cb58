package domain

import "time"

// EventType tags committed economy events published to the gateway feed.
type EventType string

const (
	EventTransfer        = EventType("transfer")
	EventRouletteResult  = EventType("roulette_result")
	EventDiceResult      = EventType("dice_result")
	EventTheft           = EventType("theft")
	EventArrest          = EventType("arrest")
	EventBonusGranted    = EventType("bonus_granted")
	EventPrivilegeBought = EventType("privilege_purchased")
	EventMarriage        = EventType("marriage")
	EventDivorce         = EventType("divorce")
)

// Event is the envelope published after a committed operation. Delivery
// is best-effort: publishing failures never roll back the economic
// transaction.
type Event struct {
	Type      EventType         `json:"type"`
	ActorID   string            `json:"actor_id"`
	TargetID  string            `json:"target_id,omitempty"`
	Amount    string            `json:"amount,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Command is the decoded envelope the Messaging Gateway delivers: actor,
// optional target, a parsed verb, and the free-form argument text.
type Command struct {
	ActorID  string `json:"actor_id"`
	TargetID string `json:"target_id,omitempty"`
	Verb     string `json:"verb"`
	Amount   string `json:"amount,omitempty"`
	Args     string `json:"args,omitempty"`
}
