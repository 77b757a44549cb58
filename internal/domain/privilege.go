package domain

import "time"

// Well-known privilege kinds. The purchase catalog may define further
// kinds (cosmetics) that gate nothing.
const (
	PrivilegeThief  = "thief"
	PrivilegePolice = "police"
)

// Privilege is a time-limited entitlement held by an account. A nil-zero
// ExpiresAt means the privilege is permanent. At most one row exists per
// (account, kind).
type Privilege struct {
	AccountID string     `json:"account_id"`
	Kind      string     `json:"kind"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Active checks expiry against the given clock. Expired rows are
// treated as absent even before the sweep removes them.
func (p *Privilege) Active(now time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}
