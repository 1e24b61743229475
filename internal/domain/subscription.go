package domain

import "time"

// SubscriptionKind determines how a subscription code is matched
// against live flight data.
type SubscriptionKind string

const (
	// KindAircraft matches flights by aircraft type code (e.g. A388).
	KindAircraft SubscriptionKind = "aircraft"
	// KindRegistration matches flights by tail registration (e.g. A6-EVN).
	KindRegistration SubscriptionKind = "registration"
	// KindAirport matches flights inbound to an airport code (e.g. WAW).
	// Outbound traffic from the same airport is not a match.
	KindAirport SubscriptionKind = "airport"
)

// Kinds lists all subscription kinds in the canonical order used for
// batch planning. The order is fixed so repeated cycles with unchanged
// subscriptions produce the same batch composition.
var Kinds = []SubscriptionKind{KindAircraft, KindRegistration, KindAirport}

func (k SubscriptionKind) Valid() bool {
	switch k {
	case KindAircraft, KindRegistration, KindAirport:
		return true
	}
	return false
}

type Subscription struct {
	ID        int64            `json:"id"`
	GuildID   string           `json:"guild_id"`
	UserID    string           `json:"user_id"`
	Kind      SubscriptionKind `json:"kind"`
	Code      string           `json:"code"`
	CreatedAt time.Time        `json:"created_at"`
}

type CreateSubscriptionRequest struct {
	GuildID string           `json:"guild_id"`
	UserID  string           `json:"user_id"`
	Kind    SubscriptionKind `json:"kind"`
	Code    string           `json:"code"`
}

// QueryTarget is the unit of upstream querying: every subscription with
// the same (kind, code) collapses into one target, so upstream call
// volume is bounded by distinct codes rather than subscriber count.
type QueryTarget struct {
	Kind SubscriptionKind `json:"kind"`
	Code string           `json:"code"`
}
