package domain

import "time"

// APIKeyState is the mutable state of one upstream API credential.
// Keys are identified at runtime by their 1-based index and persisted
// by masked suffix so secrets never reach storage.
type APIKeyState struct {
	ID               int        `json:"id"`
	Secret           string     `json:"-"`
	MaskedSuffix     string     `json:"masked_suffix"`
	RequestsInWindow int        `json:"requests_in_window"`
	WindowStart      time.Time  `json:"window_start"`
	ParkedUntil      *time.Time `json:"parked_until,omitempty"`
	ParkedReason     string     `json:"parked_reason,omitempty"`
}

// Parked reports whether the key is currently parked.
func (k APIKeyState) Parked(now time.Time) bool {
	return k.ParkedUntil != nil && now.Before(*k.ParkedUntil)
}

// MaskSuffix returns the last four characters of a secret for display.
func MaskSuffix(secret string) string {
	if len(secret) < 4 {
		return "????"
	}
	return secret[len(secret)-4:]
}

// CreditsMeta is the usage metadata an upstream response carries.
type CreditsMeta struct {
	Consumed  *int `json:"consumed,omitempty"`
	Remaining *int `json:"remaining,omitempty"`
}

// CreditsSnapshot is the last observed credit usage for one key.
// Last write wins; persisted for display only.
type CreditsSnapshot struct {
	KeyID        int       `json:"key_id"`
	MaskedSuffix string    `json:"masked_suffix"`
	Consumed     *int      `json:"consumed,omitempty"`
	Remaining    *int      `json:"remaining,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}
