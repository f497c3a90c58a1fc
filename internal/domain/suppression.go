package domain

import "time"

// SuppressionReason enumerates why an address was suppressed.
type SuppressionReason string

const (
	ReasonRepeatedBounce SuppressionReason = "repeated_bounce"
	ReasonSpamReport     SuppressionReason = "spam_report"
	ReasonUnsubscribe    SuppressionReason = "unsubscribe"
	ReasonManual         SuppressionReason = "manual"
)

// SuppressionSource indicates where the suppression signal originated.
type SuppressionSource string

const (
	SourceBounceDetector SuppressionSource = "bounce_detector"
	SourceWebhook        SuppressionSource = "webhook"
	SourceManual         SuppressionSource = "manual"
	SourceImport         SuppressionSource = "import"
)

// Suppression is one entry of the suppression list. BounceCount and
// LastEventAt carry the evidence that produced it, when there is any.
type Suppression struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Domain      string            `json:"domain"`
	Reason      SuppressionReason `json:"reason"`
	Source      SuppressionSource `json:"source"`
	BounceCount int               `json:"bounce_count,omitempty"`
	LastEventAt time.Time         `json:"last_event_at,omitempty"`
	Note        string            `json:"note,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
