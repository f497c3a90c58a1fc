package analytics

import (
	"sort"
	"strings"

	"github.com/ignite/sendgrid-insights/internal/domain"
)

// Categories aggregates events per tag. An event with several tags counts
// once in each of them; repeated tags on one event count once.
func Categories(events []domain.Event) map[string]domain.CategoryAggregate {
	aggs := make(map[string]*domain.CategoryAggregate)
	opened := make(map[string]*stringSet)
	clicked := make(map[string]*stringSet)

	for _, ev := range events {
		for _, tag := range eventTags(ev) {
			agg, ok := aggs[tag]
			if !ok {
				agg = &domain.CategoryAggregate{Category: tag}
				aggs[tag] = agg
				opened[tag] = newStringSet()
				clicked[tag] = newStringSet()
			}
			switch ev.Kind {
			case domain.KindDelivered:
				agg.Delivered++
			case domain.KindOpen:
				opened[tag].add(ev.RecipientKey())
			case domain.KindClick:
				clicked[tag].add(ev.RecipientKey())
			case domain.KindUnsubscribe:
				agg.Unsubscribes++
			case domain.KindSpamReport:
				agg.SpamReports++
			}
		}
	}

	out := make(map[string]domain.CategoryAggregate, len(aggs))
	for tag, agg := range aggs {
		agg.UniqueOpens = opened[tag].size()
		agg.UniqueClicks = clicked[tag].size()
		agg.OpenRate = rate(agg.UniqueOpens, agg.Delivered)
		agg.ClickRate = rate(agg.UniqueClicks, agg.Delivered)
		out[tag] = *agg
	}
	return out
}

// eventTags returns the distinct trimmed tags of ev. Blank tags and
// untagged events map to the Uncategorized tag.
func eventTags(ev domain.Event) []string {
	set := newStringSet()
	for _, tag := range ev.EffectiveTags() {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			tag = domain.UncategorizedTag
		}
		set.add(tag)
	}
	return set.values()
}

// CategoryMetric names a sortable column of the category table.
type CategoryMetric string

const (
	ByDelivered    CategoryMetric = "delivered"
	ByUniqueOpens  CategoryMetric = "unique_opens"
	ByUniqueClicks CategoryMetric = "unique_clicks"
	ByUnsubscribes CategoryMetric = "unsubscribes"
	BySpamReports  CategoryMetric = "spam_reports"
	ByOpenRate     CategoryMetric = "open_rate"
	ByClickRate    CategoryMetric = "click_rate"
	ByCategory     CategoryMetric = "category"
)

// SortCategories flattens the category map and orders it by metric,
// descending, with the category name breaking ties. ByCategory sorts by
// name ascending. Unknown metrics fall back to ByUniqueOpens.
func SortCategories(aggs map[string]domain.CategoryAggregate, metric CategoryMetric) []domain.CategoryAggregate {
	out := make([]domain.CategoryAggregate, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, agg)
	}

	if metric == ByCategory {
		sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
		return out
	}

	value := categoryValue(metric)
	sort.Slice(out, func(i, j int) bool {
		vi, vj := value(out[i]), value(out[j])
		if vi != vj {
			return vi > vj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func categoryValue(metric CategoryMetric) func(domain.CategoryAggregate) float64 {
	switch metric {
	case ByDelivered:
		return func(a domain.CategoryAggregate) float64 { return float64(a.Delivered) }
	case ByUniqueClicks:
		return func(a domain.CategoryAggregate) float64 { return float64(a.UniqueClicks) }
	case ByUnsubscribes:
		return func(a domain.CategoryAggregate) float64 { return float64(a.Unsubscribes) }
	case BySpamReports:
		return func(a domain.CategoryAggregate) float64 { return float64(a.SpamReports) }
	case ByOpenRate:
		return func(a domain.CategoryAggregate) float64 { return a.OpenRate }
	case ByClickRate:
		return func(a domain.CategoryAggregate) float64 { return a.ClickRate }
	default:
		return func(a domain.CategoryAggregate) float64 { return float64(a.UniqueOpens) }
	}
}
