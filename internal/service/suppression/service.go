package suppression

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/metrics"
	"github.com/ignite/sendgrid-insights/internal/pkg/logger"
)

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
	now  func() time.Time
	log  *logger.Logger

	mu      sync.Mutex
	matcher *Matcher
	stale   bool
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, log: logger.With("component", "suppression")}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}

// IsSuppressed checks whether an address should no longer be mailed.
func (s *Service) IsSuppressed(ctx context.Context, email string) (bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return false, err
	}
	return s.repo.IsSuppressed(ctx, email)
}

// Request describes a suppression to record.
type Request struct {
	Email       string                   `json:"email"`
	Reason      domain.SuppressionReason `json:"reason"`
	Source      domain.SuppressionSource `json:"source"`
	BounceCount int                      `json:"bounce_count,omitempty"`
	LastEventAt time.Time                `json:"last_event_at,omitempty"`
	Note        string                   `json:"note,omitempty"`
}

// Suppress records one entry. It is idempotent: suppressing an address
// twice keeps one entry. It reports whether the address was newly added.
func (s *Service) Suppress(ctx context.Context, req Request) (bool, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return false, err
	}
	if req.Reason == "" {
		req.Reason = domain.ReasonManual
	}
	if req.Source == "" {
		req.Source = domain.SourceManual
	}

	entry := &domain.Suppression{
		Email:       email,
		Domain:      domain.EmailDomain(email),
		Reason:      req.Reason,
		Source:      req.Source,
		BounceCount: req.BounceCount,
		LastEventAt: req.LastEventAt,
		Note:        req.Note,
		CreatedAt:   s.now(),
	}
	created, err := s.repo.Suppress(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("suppress %s: %w", logger.RedactEmail(email), err)
	}
	s.invalidate()
	if created {
		metrics.AddSuppressed(1)
	}
	return created, nil
}

// SuppressCritical suppresses every critical bounce warning and returns
// how many addresses were newly added. Warnings below critical are left
// for monitoring.
func (s *Service) SuppressCritical(ctx context.Context, warnings []domain.BounceWarning) (int, error) {
	added := 0
	for _, w := range warnings {
		if w.Severity != domain.SeverityCritical {
			continue
		}
		created, err := s.Suppress(ctx, Request{
			Email:       w.Email,
			Reason:      domain.ReasonRepeatedBounce,
			Source:      domain.SourceBounceDetector,
			BounceCount: w.BounceCount,
			LastEventAt: w.LastBounce,
		})
		if err != nil {
			return added, err
		}
		if created {
			added++
		}
	}
	if added > 0 {
		s.log.Info("suppressed repeated bouncers", "added", added)
	}
	return added, nil
}

// SuppressFromEvents suppresses the recipients of spam report and
// unsubscribe events. Events with unusable addresses are skipped.
func (s *Service) SuppressFromEvents(ctx context.Context, events []domain.Event) (int, error) {
	added := 0
	for _, ev := range events {
		var reason domain.SuppressionReason
		switch ev.Kind {
		case domain.KindSpamReport:
			reason = domain.ReasonSpamReport
		case domain.KindUnsubscribe:
			reason = domain.ReasonUnsubscribe
		default:
			continue
		}
		created, err := s.Suppress(ctx, Request{
			Email:       ev.Recipient,
			Reason:      reason,
			Source:      domain.SourceWebhook,
			LastEventAt: ev.OccurredAt,
		})
		if err != nil {
			if isInvalid(err) {
				s.log.Warn("skipping event with unusable recipient", "event_id", ev.ID)
				continue
			}
			return added, err
		}
		if created {
			added++
		}
	}
	return added, nil
}

// Remove deletes a suppression entry.
func (s *Service) Remove(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.repo.Remove(ctx, email); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// List returns suppression entries matching the given filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Suppression, int, error) {
	return s.repo.List(ctx, filter)
}

// Stats returns aggregate counts grouped by reason and source.
type Stats struct {
	Total       int            `json:"total"`
	ByReason    map[string]int `json:"by_reason"`
	BySource    map[string]int `json:"by_source"`
	Last24Hours int            `json:"last_24_hours"`
}

// GetStats computes suppression statistics for the dashboard.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	entries, total, err := s.repo.List(ctx, ListFilter{Limit: 0})
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-24 * time.Hour)
	stats := &Stats{
		Total:    total,
		ByReason: make(map[string]int),
		BySource: make(map[string]int),
	}
	for _, e := range entries {
		stats.ByReason[string(e.Reason)]++
		stats.BySource[string(e.Source)]++
		if e.CreatedAt.After(cutoff) {
			stats.Last24Hours++
		}
	}
	return stats, nil
}

// AllEmails returns every suppressed address, sorted.
func (s *Service) AllEmails(ctx context.Context) ([]string, error) {
	return s.repo.AllEmails(ctx)
}
