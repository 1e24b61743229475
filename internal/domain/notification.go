package domain

// MatchedFlight pairs one subscription with one flight that satisfies
// its matching rule. Transient; lives only within a single poll cycle.
type MatchedFlight struct {
	SubscriptionID int64
	GuildID        string
	UserID         string
	Kind           SubscriptionKind
	Code           string
	Flight         FlightRecord
}

// NotificationPair identifies one (subscription, flight) notification
// for the durable log. Written only after confirmed delivery.
type NotificationPair struct {
	SubscriptionID int64
	FlightKey      string
}

// NotificationGroup is the unit handed to the transport: one outbound
// message per (guild, kind, code) per cycle.
type NotificationGroup struct {
	GuildID string
	Kind    SubscriptionKind
	Code    string

	// Flights are the distinct matched flights for this code, in
	// first-seen order.
	Flights []FlightRecord

	// MentionUserIDs are the subscriber user IDs to tag, ordered by
	// subscription ID and truncated to the transport's mention limit.
	MentionUserIDs []string

	// OverflowMentions counts subscribers dropped by truncation.
	OverflowMentions int

	// Pairs covers every (subscription, flight) combination in this
	// group, including subscribers beyond the mention cutoff.
	Pairs []NotificationPair
}
