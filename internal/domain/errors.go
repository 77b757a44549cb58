package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors. Every economy operation either commits all of its
// described effects or returns one of these with zero effect.
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAlreadyInState    = errors.New("already in the requested state")
	ErrQuotaExceeded     = errors.New("daily quota exceeded")
	ErrCooldownActive    = errors.New("cooldown active")
	ErrNotFound          = errors.New("account not found")
	ErrNoEffect          = errors.New("operation had no effect")
	ErrInvalidRequest    = errors.New("invalid request")
)

// ErrStoreUnavailable wraps infrastructure faults from the persistent
// store. Operations failing with it are guaranteed to have rolled back.
var ErrStoreUnavailable = errors.New("store unavailable")

// CooldownError carries the remaining wait for a rate-limited action.
type CooldownError struct {
	Action    string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active for %s: %s remaining", e.Action, e.Remaining.Round(time.Second))
}

// Is makes errors.Is(err, ErrCooldownActive) match.
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// IsDomainError checks if an error belongs to the expected-outcome
// taxonomy, as opposed to an infrastructure fault.
func IsDomainError(err error) bool {
	for _, de := range []error{
		ErrInvalidAmount,
		ErrInsufficientFunds,
		ErrPermissionDenied,
		ErrAlreadyInState,
		ErrQuotaExceeded,
		ErrCooldownActive,
		ErrNotFound,
		ErrNoEffect,
		ErrInvalidRequest,
	} {
		if errors.Is(err, de) {
			return true
		}
	}
	return false
}
