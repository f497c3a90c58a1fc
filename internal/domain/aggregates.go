package domain

import "time"

// Granularity is the calendar interval used to bucket time-series views.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity maps a query value to a Granularity, defaulting to Daily.
func ParseGranularity(s string) Granularity {
	switch Granularity(s) {
	case Weekly:
		return Weekly
	case Monthly:
		return Monthly
	default:
		return Daily
	}
}

// DailyBucket holds one calendar interval's rolled counts. Date is the
// YYYY-MM-DD start of the interval in the reporting zone; Label is a human
// label for weekly and monthly rollups.
type DailyBucket struct {
	Date         string `json:"date"`
	Label        string `json:"label,omitempty"`
	Requests     int    `json:"requests"`
	Delivered    int    `json:"delivered"`
	Opens        int    `json:"opens"`
	UniqueOpens  int    `json:"unique_opens"`
	Clicks       int    `json:"clicks"`
	UniqueClicks int    `json:"unique_clicks"`
	Unsubscribes int    `json:"unsubscribes"`
	Bounces      int    `json:"bounces"`
	SpamReports  int    `json:"spam_reports"`
	Blocks       int    `json:"blocks"`
	BounceDrops  int    `json:"bounce_drops"`
	SpamDrops    int    `json:"spam_drops"`
	Deferred     int    `json:"deferred"`
}

// Add sums every counter of other into b.
func (b *DailyBucket) Add(other DailyBucket) {
	b.Requests += other.Requests
	b.Delivered += other.Delivered
	b.Opens += other.Opens
	b.UniqueOpens += other.UniqueOpens
	b.Clicks += other.Clicks
	b.UniqueClicks += other.UniqueClicks
	b.Unsubscribes += other.Unsubscribes
	b.Bounces += other.Bounces
	b.SpamReports += other.SpamReports
	b.Blocks += other.Blocks
	b.BounceDrops += other.BounceDrops
	b.SpamDrops += other.SpamDrops
	b.Deferred += other.Deferred
}

// KPIMetrics are the headline percentages shown above the dashboard.
type KPIMetrics struct {
	Processed         int     `json:"processed"`
	DeliveredPct      float64 `json:"delivered_pct"`
	BouncedBlockedPct float64 `json:"bounced_blocked_pct"`
	UniqueOpensPct    float64 `json:"unique_opens_pct"`
}

// CategoryAggregate is one tag's performance.
type CategoryAggregate struct {
	Category     string  `json:"category"`
	Delivered    int     `json:"delivered"`
	UniqueOpens  int     `json:"unique_opens"`
	UniqueClicks int     `json:"unique_clicks"`
	Unsubscribes int     `json:"unsubscribes"`
	SpamReports  int     `json:"spam_reports"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
}

// FunnelStageName names a step of the send funnel.
type FunnelStageName string

const (
	StageSent          FunnelStageName = "sent"
	StageDelivered     FunnelStageName = "delivered"
	StageUniqueOpened  FunnelStageName = "unique_opened"
	StageUniqueClicked FunnelStageName = "unique_clicked"
)

// FunnelStage is one step of the funnel with its conversion from the
// previous step, in percent.
type FunnelStage struct {
	Stage          FunnelStageName `json:"stage"`
	Count          int             `json:"count"`
	ConversionRate float64         `json:"conversion_rate"`
}

// Tier classifies contacts and domains by engagement.
type Tier string

const (
	TierHot         Tier = "hot"
	TierWarm        Tier = "warm"
	TierCold        Tier = "cold"
	TierProblematic Tier = "problematic"
)

// ContactEngagement is one recipient's rollup over the scoring window.
type ContactEngagement struct {
	Email                 string    `json:"email"`
	Domain                string    `json:"domain"`
	TotalSent             int       `json:"total_sent"`
	Opens                 int       `json:"opens"`
	Clicks                int       `json:"clicks"`
	Bounces               int       `json:"bounces"`
	OpenRate              float64   `json:"open_rate"`
	ClickRate             float64   `json:"click_rate"`
	BounceRate            float64   `json:"bounce_rate"`
	LastActivity          time.Time `json:"last_activity"`
	DaysSinceLastActivity int       `json:"days_since_last_activity"`
	EngagementScore       float64   `json:"engagement_score"`
	Tier                  Tier      `json:"tier"`
}

// ContactSummary describes a filtered contact list.
type ContactSummary struct {
	TotalContacts      int     `json:"total_contacts"`
	AvgEngagementScore float64 `json:"avg_engagement_score"`
	HighValueCount     int     `json:"high_value_count"`
	WarmCount          int     `json:"warm_count"`
	ColdCount          int     `json:"cold_count"`
}

// ContactReport is the response shape of the engagement view.
type ContactReport struct {
	Contacts    []ContactEngagement `json:"contacts"`
	Summary     ContactSummary      `json:"summary"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// DomainEngagement is one email domain's rollup across its recipients.
type DomainEngagement struct {
	Domain          string    `json:"domain"`
	UniqueContacts  int       `json:"unique_contacts"`
	TopContacts     []string  `json:"top_contacts"`
	TotalSent       int       `json:"total_sent"`
	TotalOpens      int       `json:"total_opens"`
	TotalClicks     int       `json:"total_clicks"`
	TotalBounces    int       `json:"total_bounces"`
	AvgOpenRate     float64   `json:"avg_open_rate"`
	AvgClickRate    float64   `json:"avg_click_rate"`
	BounceRate      float64   `json:"bounce_rate"`
	EngagementScore float64   `json:"engagement_score"`
	Trend           Tier      `json:"trend"`
	FirstContact    time.Time `json:"first_contact"`
	LastActivity    time.Time `json:"last_activity"`
}

// DomainSummary describes a filtered domain list.
type DomainSummary struct {
	TotalDomains         int `json:"total_domains"`
	HotLeads             int `json:"hot_leads"`
	WarmLeads            int `json:"warm_leads"`
	AtRisk               int `json:"at_risk"`
	TotalContactsCovered int `json:"total_contacts_covered"`
}

// DomainReport is the response shape of the domain insights view.
type DomainReport struct {
	Domains     []DomainEngagement `json:"domains"`
	Summary     DomainSummary      `json:"summary"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Severity grades warnings and insights.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// BounceAction is the operator action recommended for a bouncing contact.
type BounceAction string

const (
	ActionSuppress BounceAction = "suppress"
	ActionMonitor  BounceAction = "monitor"
)

// BounceWarning flags a recipient with repeated bounce-class events.
type BounceWarning struct {
	Email          string       `json:"email"`
	Domain         string       `json:"domain"`
	BounceCount    int          `json:"bounce_count"`
	BounceTypes    []EventKind  `json:"bounce_types"`
	FirstBounce    time.Time    `json:"first_bounce"`
	LastBounce     time.Time    `json:"last_bounce"`
	DaysBouncing   int          `json:"days_bouncing"`
	Severity       Severity     `json:"severity"`
	ActionRequired BounceAction `json:"action_required"`
}

// SequenceMetrics aggregates every recipient's Nth send.
type SequenceMetrics struct {
	SequenceNumber   int      `json:"sequence_number"`
	TotalSent        int      `json:"total_sent"`
	UniqueRecipients int      `json:"unique_recipients"`
	OpenRate         float64  `json:"open_rate"`
	ClickRate        float64  `json:"click_rate"`
	Recipients       []string `json:"recipients"`
}

// SequenceTrend counts sends per sequence position within one bucket.
type SequenceTrend struct {
	Date      time.Time   `json:"date"`
	Sequences map[int]int `json:"sequences"`
}

// SequenceAnalytics is the full result of a sequence analysis run.
type SequenceAnalytics struct {
	Metrics              []SequenceMetrics `json:"metrics"`
	Trends               []SequenceTrend   `json:"trends"`
	TotalEmails          int               `json:"total_emails"`
	UniqueRecipients     int               `json:"unique_recipients"`
	AverageSequenceDepth float64           `json:"average_sequence_depth"`
}

// SequenceComparison pairs a range's analysis with the preceding range's.
type SequenceComparison struct {
	Current  SequenceAnalytics `json:"current"`
	Previous SequenceAnalytics `json:"previous"`
}

// MetricDelta is one metric's before/after values.
type MetricDelta struct {
	Metric        string  `json:"metric"`
	Before        float64 `json:"before"`
	After         float64 `json:"after"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// InsightAction is the call to action attached to an insight.
type InsightAction struct {
	Label      string `json:"label"`
	Type       string `json:"type"`
	Href       string `json:"href,omitempty"`
	ExportType string `json:"export_type,omitempty"`
}

// Insight is a rule-generated observation about the event stream.
type Insight struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Severity    Severity      `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Metric      int           `json:"metric"`
	MetricLabel string        `json:"metric_label"`
	Action      InsightAction `json:"action"`
	GeneratedAt time.Time     `json:"generated_at"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
}
