package suppression

import (
	"context"
	"fmt"
	"time"
)

// matcherMaxAge bounds how long a matcher built on this replica is trusted
// when another replica may have changed the list.
const matcherMaxAge = time.Minute

// ScreenResult splits a recipient list into mailable and suppressed
// entries. Entries are echoed in their submitted form.
type ScreenResult struct {
	Checked    int      `json:"checked"`
	Allowed    []string `json:"allowed"`
	Suppressed []string `json:"suppressed"`
	Invalid    []string `json:"invalid"`
}

// Screen checks a recipient list against the suppression list in one
// pass. Each entry is an address or the MD5 hex of a normalized address.
func (s *Service) Screen(ctx context.Context, entries []string) (ScreenResult, error) {
	m, err := s.Matcher(ctx)
	if err != nil {
		return ScreenResult{}, err
	}

	res := ScreenResult{
		Checked:    len(entries),
		Allowed:    make([]string, 0, len(entries)),
		Suppressed: make([]string, 0),
		Invalid:    make([]string, 0),
	}
	for _, entry := range entries {
		h, ok := ParseHash(entry)
		if !ok {
			email, err := normalizeEmail(entry)
			if err != nil {
				res.Invalid = append(res.Invalid, entry)
				continue
			}
			h = HashEmail(email)
		}
		if m.Contains(h) {
			res.Suppressed = append(res.Suppressed, entry)
		} else {
			res.Allowed = append(res.Allowed, entry)
		}
	}
	return res, nil
}

// Matcher returns a snapshot of the active list, rebuilding it after a
// local change or once it is older than matcherMaxAge.
func (s *Service) Matcher(ctx context.Context) (*Matcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.matcher != nil && !s.stale && now.Sub(s.matcher.builtAt) < matcherMaxAge {
		return s.matcher, nil
	}
	emails, err := s.repo.AllEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load suppression list: %w", err)
	}
	s.matcher = NewMatcher(emails, now)
	s.stale = false
	s.log.Debug("suppression matcher rebuilt", "entries", s.matcher.Len())
	return s.matcher, nil
}

func (s *Service) invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}
