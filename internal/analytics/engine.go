package analytics

import (
	"sort"
	"time"
	_ "time/tzdata" // reporting zones must resolve on minimal container images
)

// DefaultTimezone is the reporting zone used when none is configured.
const DefaultTimezone = "Australia/Brisbane"

// Engine carries the reporting zone used to assign events to calendar days.
// An Engine is immutable after construction and safe for concurrent use.
type Engine struct {
	loc *time.Location
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocation sets the reporting zone. A nil location is ignored.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// New creates an Engine reporting in DefaultTimezone unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{loc: defaultLocation()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewForZone creates an Engine for a named IANA zone.
func NewForZone(name string) (*Engine, error) {
	if name == "" {
		return New(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return New(WithLocation(loc)), nil
}

// Location returns the reporting zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// dayKey formats t as the YYYY-MM-DD calendar day in the reporting zone.
func (e *Engine) dayKey(t time.Time) string {
	return t.In(e.loc).Format(dateLayout)
}

// startOfDay returns local midnight of t's calendar day in the reporting zone.
func (e *Engine) startOfDay(t time.Time) time.Time {
	y, m, d := t.In(e.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.loc)
}

// startOfWeek returns local midnight of the Monday starting t's ISO week.
func (e *Engine) startOfWeek(t time.Time) time.Time {
	day := e.startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// startOfMonth returns local midnight of the first day of t's month.
func (e *Engine) startOfMonth(t time.Time) time.Time {
	y, m, _ := t.In(e.loc).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, e.loc)
}

const dateLayout = "2006-01-02"

// rate returns part/whole as a percentage, or 0 when whole is 0.
func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// stringSet is an insertion-ordered set of strings.
type stringSet struct {
	seen  map[string]struct{}
	order []string
}

func newStringSet() *stringSet {
	return &stringSet{seen: make(map[string]struct{})}
}

func (s *stringSet) add(v string) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

func (s *stringSet) size() int {
	return len(s.order)
}

func (s *stringSet) values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}
