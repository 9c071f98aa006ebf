package otp

import "time"

// Purpose scopes a code to the flow that requested it.
type Purpose string

const (
	PurposePasswordReset Purpose = "password-reset"
	PurposeEmailVerify   Purpose = "email-verify"
)

// Code is a short-lived, single-use 6-digit secret tied to one user and one purpose.
// Many codes may exist per (user, purpose) over time; only the most-recently-issued
// unconsumed one is actionable. Rows are never deleted here; pruning stale rows is
// an operational concern.
type Code struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	Purpose  Purpose   `json:"purpose"`
	Value    string    `json:"-"` // exactly 6 ASCII digits, zero-padded
	IssuedAt time.Time `json:"issued_at"` // UTC
	Consumed bool      `json:"consumed"`
}

// Expired reports whether the code has outlived its validity window.
func (c Code) Expired() bool {
	return nowFunc().Sub(c.IssuedAt) >= codeTTL
}

// Valid reports whether the code can still be consumed.
func (c Code) Valid() bool {
	return !c.Consumed && !c.Expired()
}
