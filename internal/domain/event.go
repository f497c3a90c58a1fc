package domain

import (
	"strings"
	"time"
)

// EventKind enumerates the SendGrid event types the engine understands.
type EventKind string

const (
	KindProcessed   EventKind = "processed"
	KindDelivered   EventKind = "delivered"
	KindOpen        EventKind = "open"
	KindClick       EventKind = "click"
	KindBounce      EventKind = "bounce"
	KindDeferred    EventKind = "deferred"
	KindDropped     EventKind = "dropped"
	KindUnsubscribe EventKind = "unsubscribe"
	KindSpamReport  EventKind = "spamreport"
	KindBlock       EventKind = "block"
)

// UncategorizedTag is the implicit tag of an event that carries none.
const UncategorizedTag = "Uncategorized"

// AllKinds lists every valid event kind in SendGrid lifecycle order.
var AllKinds = []EventKind{
	KindProcessed,
	KindDelivered,
	KindOpen,
	KindClick,
	KindBounce,
	KindDeferred,
	KindDropped,
	KindUnsubscribe,
	KindSpamReport,
	KindBlock,
}

// Valid reports whether k is one of the fixed event kinds.
func (k EventKind) Valid() bool {
	for _, v := range AllKinds {
		if k == v {
			return true
		}
	}
	return false
}

// IsBounceClass reports whether k counts toward a recipient's bounce tally.
// Hard bounces, drops and blocks all count the same.
func (k EventKind) IsBounceClass() bool {
	return k == KindBounce || k == KindDropped || k == KindBlock
}

// IsEngagement reports whether k is an open or a click.
func (k EventKind) IsEngagement() bool {
	return k == KindOpen || k == KindClick
}

// Event is one email-lifecycle signal. Events are immutable once handed to
// the analytics engine.
type Event struct {
	ID         string    `json:"sg_event_id" db:"sg_event_id"`
	UniqueID   int64     `json:"unique_id,omitempty" db:"unique_id"`
	SMTPID     string    `json:"smtp_id,omitempty" db:"smtp_id"`
	Recipient  string    `json:"email" db:"email"`
	Kind       EventKind `json:"event" db:"event"`
	OccurredAt time.Time `json:"timestamp" db:"occurred_at"`
	Tags       []string  `json:"category" db:"categories"`
	AccountID  string    `json:"email_account_id,omitempty" db:"email_account_id"`
}

// RecipientKey returns the case-insensitive identity of the recipient.
func (e Event) RecipientKey() string {
	return strings.ToLower(strings.TrimSpace(e.Recipient))
}

// Domain returns the lower-cased part of the recipient after the last '@',
// or "" when the address has none.
func (e Event) Domain() string {
	return EmailDomain(e.Recipient)
}

// EffectiveTags returns the event's tags, or the implicit Uncategorized tag
// when it has none.
func (e Event) EffectiveTags() []string {
	if len(e.Tags) == 0 {
		return []string{UncategorizedTag}
	}
	return e.Tags
}

// EmailDomain extracts the lower-cased domain of an address.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}
