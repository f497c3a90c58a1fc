package ingest

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/sendgrid-insights/internal/analytics"
)

// Signature headers sent by the SendGrid signed Event Webhook.
const (
	SignatureHeader = "X-Twilio-Email-Event-Webhook-Signature"
	TimestampHeader = "X-Twilio-Email-Event-Webhook-Timestamp"
)

// WebhookEvent is one element of an Event Webhook POST body. Category is
// a string or an array of strings on the wire.
type WebhookEvent struct {
	Email       string          `json:"email"`
	Timestamp   json.Number     `json:"timestamp"`
	SMTPID      string          `json:"smtp-id"`
	Event       string          `json:"event"`
	Category    json.RawMessage `json:"category"`
	SGEventID   string          `json:"sg_event_id"`
	SGMessageID string          `json:"sg_message_id"`
	Type        string          `json:"type"`
	Reason      string          `json:"reason"`
	AccountID   string          `json:"email_account_id"`
}

// categories decodes the polymorphic category field.
func (e WebhookEvent) categories() []string {
	raw := bytes.TrimSpace(e.Category)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return []string{one}
	}
	return nil
}

// kind folds SendGrid's bounce subtypes: a bounce of type "blocked" is
// reported as a block.
func (e WebhookEvent) kind() string {
	if strings.EqualFold(e.Event, "bounce") && strings.EqualFold(e.Type, "blocked") {
		return "block"
	}
	return e.Event
}

// DecodeWebhook decodes an Event Webhook batch into raw records. Bodies
// with more than maxEvents elements are rejected; maxEvents <= 0 disables
// the check.
func DecodeWebhook(r io.Reader, maxEvents int) ([]analytics.RawEvent, error) {
	var batch []WebhookEvent
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if maxEvents > 0 && len(batch) > maxEvents {
		return nil, fmt.Errorf("%w: %d events exceeds limit of %d", ErrBadPayload, len(batch), maxEvents)
	}

	out := make([]analytics.RawEvent, 0, len(batch))
	for _, e := range batch {
		out = append(out, analytics.RawEvent{
			ID:         e.SGEventID,
			SMTPID:     e.SMTPID,
			Email:      e.Email,
			Event:      e.kind(),
			Timestamp:  e.Timestamp.String(),
			Categories: e.categories(),
			AccountID:  e.AccountID,
		})
	}
	return out, nil
}

// Verifier checks signed Event Webhook requests against the ECDSA public
// key shown in the SendGrid console.
type Verifier struct {
	key *ecdsa.PublicKey
}

// NewVerifier parses a base64 encoded DER public key.
func NewVerifier(publicKey string) (*Verifier, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(publicKey))
	if err != nil {
		return nil, fmt.Errorf("decode webhook public key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse webhook public key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("webhook public key is %T, want ECDSA", parsed)
	}
	return &Verifier{key: key}, nil
}

// Verify checks signature over timestamp followed by the raw body.
func (v *Verifier) Verify(body []byte, signature, timestamp string) error {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(sig) == 0 || timestamp == "" {
		return ErrBadSignature
	}
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write(body)
	if !ecdsa.VerifyASN1(v.key, h.Sum(nil), sig) {
		return ErrBadSignature
	}
	return nil
}
