// Package export renders report views as CSV tables.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Table is a CSV header plus rows.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Filename returns the download name for the table.
func (t Table) Filename() string {
	return t.Name + ".csv"
}

// Write renders t to w.
func (t Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }

func rate(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(isoMillis)
}

// Activity renders raw events.
func Activity(events []domain.Event) Table {
	t := Table{
		Name:   "activity",
		Header: []string{"timestamp", "email", "event", "smtp_id", "categories", "email_account_id", "sg_event_id"},
		Rows:   make([][]string, 0, len(events)),
	}
	for _, e := range events {
		cats := strings.Join(e.Tags, "|")
		if cats == "" {
			cats = domain.UncategorizedTag
		}
		t.Rows = append(t.Rows, []string{
			stamp(e.OccurredAt), e.Recipient, string(e.Kind), e.SMTPID, cats, e.AccountID, e.ID,
		})
	}
	return t
}

// Figures renders daily (or rolled up) buckets.
func Figures(buckets []domain.DailyBucket) Table {
	t := Table{
		Name: "figures",
		Header: []string{
			"date", "requests", "delivered", "opens", "unique_opens", "clicks", "unique_clicks",
			"unsubscribes", "bounces", "spam_reports", "blocks", "bounce_drops", "spam_drops",
		},
		Rows: make([][]string, 0, len(buckets)),
	}
	for _, b := range buckets {
		t.Rows = append(t.Rows, []string{
			b.Date, itoa(b.Requests), itoa(b.Delivered), itoa(b.Opens), itoa(b.UniqueOpens),
			itoa(b.Clicks), itoa(b.UniqueClicks), itoa(b.Unsubscribes), itoa(b.Bounces),
			itoa(b.SpamReports), itoa(b.Blocks), itoa(b.BounceDrops), itoa(b.SpamDrops),
		})
	}
	return t
}

// Categories renders category aggregates.
func Categories(cats []domain.CategoryAggregate) Table {
	t := Table{
		Name: "categories",
		Header: []string{
			"category", "delivered", "unique_opens", "unique_clicks", "unsubscribes", "spam_reports",
			"open_rate", "click_rate",
		},
		Rows: make([][]string, 0, len(cats)),
	}
	for _, c := range cats {
		t.Rows = append(t.Rows, []string{
			c.Category, itoa(c.Delivered), itoa(c.UniqueOpens), itoa(c.UniqueClicks),
			itoa(c.Unsubscribes), itoa(c.SpamReports), rate(c.OpenRate), rate(c.ClickRate),
		})
	}
	return t
}

// Contacts renders contact engagement records.
func Contacts(contacts []domain.ContactEngagement) Table {
	t := Table{
		Name: "contacts",
		Header: []string{
			"email", "domain", "total_sent", "opens", "clicks", "bounces", "open_rate", "click_rate",
			"bounce_rate", "engagement_score", "tier", "last_activity", "days_since_last_activity",
		},
		Rows: make([][]string, 0, len(contacts)),
	}
	for _, c := range contacts {
		t.Rows = append(t.Rows, []string{
			c.Email, c.Domain, itoa(c.TotalSent), itoa(c.Opens), itoa(c.Clicks), itoa(c.Bounces),
			rate(c.OpenRate), rate(c.ClickRate), rate(c.BounceRate), rate(c.EngagementScore),
			string(c.Tier), stamp(c.LastActivity), itoa(c.DaysSinceLastActivity),
		})
	}
	return t
}

// Domains renders domain engagement records.
func Domains(domains []domain.DomainEngagement) Table {
	t := Table{
		Name: "domains",
		Header: []string{
			"domain", "unique_contacts", "total_sent", "total_opens", "total_clicks", "total_bounces",
			"avg_open_rate", "avg_click_rate", "bounce_rate", "engagement_score", "trend",
			"first_contact", "last_activity", "top_contacts",
		},
		Rows: make([][]string, 0, len(domains)),
	}
	for _, d := range domains {
		t.Rows = append(t.Rows, []string{
			d.Domain, itoa(d.UniqueContacts), itoa(d.TotalSent), itoa(d.TotalOpens),
			itoa(d.TotalClicks), itoa(d.TotalBounces), rate(d.AvgOpenRate), rate(d.AvgClickRate),
			rate(d.BounceRate), rate(d.EngagementScore), string(d.Trend),
			stamp(d.FirstContact), stamp(d.LastActivity), strings.Join(d.TopContacts, "|"),
		})
	}
	return t
}

// Bounces renders bounce warnings.
func Bounces(warnings []domain.BounceWarning) Table {
	t := Table{
		Name: "bounces",
		Header: []string{
			"email", "domain", "bounce_count", "bounce_types", "first_bounce", "last_bounce",
			"days_bouncing", "severity", "action_required",
		},
		Rows: make([][]string, 0, len(warnings)),
	}
	for _, w := range warnings {
		kinds := make([]string, len(w.BounceTypes))
		for i, k := range w.BounceTypes {
			kinds[i] = string(k)
		}
		t.Rows = append(t.Rows, []string{
			w.Email, w.Domain, itoa(w.BounceCount), strings.Join(kinds, "|"),
			stamp(w.FirstBounce), stamp(w.LastBounce), itoa(w.DaysBouncing),
			string(w.Severity), string(w.ActionRequired),
		})
	}
	return t
}

// Suppressions renders the suppression list.
func Suppressions(list []domain.Suppression) Table {
	t := Table{
		Name:   "suppressions",
		Header: []string{"email", "domain", "reason", "source", "bounce_count", "last_event_at", "note", "created_at"},
		Rows:   make([][]string, 0, len(list)),
	}
	for _, s := range list {
		t.Rows = append(t.Rows, []string{
			s.Email, s.Domain, string(s.Reason), string(s.Source), itoa(s.BounceCount),
			stamp(s.LastEventAt), s.Note, stamp(s.CreatedAt),
		})
	}
	return t
}
