package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ignite/sendgrid-insights/internal/analytics"
	"github.com/ignite/sendgrid-insights/internal/domain"
	"github.com/ignite/sendgrid-insights/internal/export"
	"github.com/ignite/sendgrid-insights/internal/ingest"
	"github.com/ignite/sendgrid-insights/internal/repository/memory"
	"github.com/ignite/sendgrid-insights/internal/service/events"
)

type analyzeOptions struct {
	report      string
	start       string
	end         string
	granularity string
	sort        string
	limit       int
	csv         bool
}

var reportNames = []string{
	"overview", "kpi", "daily", "funnel", "categories", "bounces",
	"activity", "engagement", "domains", "insights", "sequences",
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze <export.csv>...",
		Short: "Report on SendGrid CSV exports without a database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.report, "report", "r", "overview", "Report: "+strings.Join(reportNames, ", "))
	f.StringVar(&opts.start, "start", "", "First day (YYYY-MM-DD)")
	f.StringVar(&opts.end, "end", "", "Last day (YYYY-MM-DD)")
	f.StringVarP(&opts.granularity, "granularity", "g", "daily", "daily, weekly or monthly")
	f.StringVar(&opts.sort, "sort", "", "Category sort metric")
	f.IntVar(&opts.limit, "limit", 0, "Row limit for engagement and domains (0 = all)")
	f.BoolVar(&opts.csv, "csv", false, "Write CSV instead of JSON where the report supports it")
	return cmd
}

func runAnalyze(ctx context.Context, out, errOut io.Writer, files []string, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	engine, err := reportEngine()
	if err != nil {
		return err
	}
	svc := events.NewService(memory.NewEventRepo(), engine)

	for _, path := range files {
		res, stats, err := loadCSV(ctx, svc, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(errOut, "%s: %d rows, %d skipped, %d malformed, %d stored\n",
			path, stats.Rows, stats.Skipped, stats.Malformed, res.Stored)
	}

	q := events.Query{Start: opts.start, End: opts.end}
	g := domain.ParseGranularity(opts.granularity)

	var (
		v     interface{}
		table *export.Table
	)
	switch opts.report {
	case "overview":
		v, err = svc.Overview(ctx, q)
	case "kpi":
		v, err = svc.KPIs(ctx, q)
	case "daily":
		var buckets []domain.DailyBucket
		if buckets, err = svc.Timeseries(ctx, q, g); err == nil {
			v, table = buckets, ptr(export.Figures(buckets))
		}
	case "funnel":
		v, err = svc.Funnel(ctx, q)
	case "categories":
		var cats []domain.CategoryAggregate
		if cats, err = svc.Categories(ctx, q, analytics.CategoryMetric(opts.sort)); err == nil {
			v, table = cats, ptr(export.Categories(cats))
		}
	case "bounces":
		var warnings []domain.BounceWarning
		if warnings, err = svc.Bounces(ctx, q); err == nil {
			v, table = warnings, ptr(export.Bounces(warnings))
		}
	case "activity":
		var evs []domain.Event
		if evs, err = svc.Activity(ctx, q); err == nil {
			v, table = evs, ptr(export.Activity(evs))
		}
	case "engagement":
		f := analytics.DefaultContactFilter()
		f.Limit = opts.limit
		var report domain.ContactReport
		if report, err = svc.Engagement(ctx, f); err == nil {
			v, table = report, ptr(export.Contacts(report.Contacts))
		}
	case "domains":
		f := analytics.DefaultDomainFilter()
		f.Limit = opts.limit
		var report domain.DomainReport
		if report, err = svc.Domains(ctx, f); err == nil {
			v, table = report, ptr(export.Domains(report.Domains))
		}
	case "insights":
		v, err = svc.Insights(ctx)
	case "sequences":
		v, err = svc.Sequences(ctx, q, g)
	default:
		return fmt.Errorf("unknown report %q (want one of %s)", opts.report, strings.Join(reportNames, ", "))
	}
	if err != nil {
		return err
	}

	if opts.csv {
		if table == nil {
			return fmt.Errorf("report %q has no CSV form", opts.report)
		}
		return table.Write(out)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadCSV(ctx context.Context, sink ingest.Sink, path string) (events.IngestResult, ingest.ParseStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return events.IngestResult{}, ingest.ParseStats{}, err
	}
	defer f.Close()

	raws, stats, err := ingest.ParseCSV(f)
	if err != nil {
		return events.IngestResult{}, stats, fmt.Errorf("%s: %w", path, err)
	}
	res, err := sink.IngestRaw(ctx, events.SourceCLI, raws)
	if err != nil {
		return res, stats, fmt.Errorf("%s: %w", path, err)
	}
	return res, stats, nil
}

// reportEngine honours --tz, then the configured zone, then the default.
func reportEngine() (*analytics.Engine, error) {
	zone := timezone
	if zone == "" {
		if cfg, err := loadConfig(); err == nil {
			zone = cfg.Analytics.Timezone
		}
	}
	engine, err := analytics.NewForZone(zone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", zone, err)
	}
	return engine, nil
}

func ptr(t export.Table) *export.Table { return &t }
