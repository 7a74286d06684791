package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// ActivitySummary is the per-subject aggregate over a set of session
// records. It is computed on demand and never persisted by the core.
type ActivitySummary struct {
	SessionCount  int           `json:"session_count"`
	TotalUpload   int64         `json:"total_upload"`
	TotalDownload int64         `json:"total_download"`
	TotalDuration time.Duration `json:"total_duration"`

	Services             []string `json:"services"`
	Protocols            []string `json:"protocols"`
	DistinctDestinations int      `json:"distinct_destinations"`

	// FirstActivity and LastActivity are the min and max session start
	// times. Nil when the record set is empty.
	FirstActivity *time.Time `json:"first_activity,omitempty"`
	LastActivity  *time.Time `json:"last_activity,omitempty"`

	// AnomalousSessions counts sessions carrying at least one anomaly tag.
	AnomalousSessions int `json:"anomalous_sessions"`
}

// Aggregator folds raw session records into an ActivitySummary. It holds no
// state; Summarize is a pure function over its input.
type Aggregator struct{}

// NewAggregator returns an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Summarize aggregates the given records. Malformed records are skipped and
// counted; an empty input produces a zeroed summary, not an error.
// tagsBySession, when non-nil, must be parallel to records and is used to
// count anomaly-bearing sessions.
func (a *Aggregator) Summarize(records []*ipdr.SessionRecord, tagsBySession []ipdr.TagSet) (*ActivitySummary, int) {
	summary := &ActivitySummary{}
	skipped := 0

	services := make(map[string]struct{})
	protocols := make(map[string]struct{})
	destinations := make(map[string]struct{})

	for i, rec := range records {
		if err := ipdr.ValidateRecord(rec); err != nil {
			skipped++
			continue
		}

		summary.SessionCount++
		summary.TotalUpload += rec.BytesUploaded
		summary.TotalDownload += rec.BytesDownload
		summary.TotalDuration += rec.Duration()

		services[normalizeLabel(rec.Service)] = struct{}{}
		protocols[normalizeLabel(rec.Protocol)] = struct{}{}
		destinations[rec.Destination.NormalizedAddress()] = struct{}{}

		start := rec.StartTime
		if summary.FirstActivity == nil || start.Before(*summary.FirstActivity) {
			t := start
			summary.FirstActivity = &t
		}
		if summary.LastActivity == nil || start.After(*summary.LastActivity) {
			t := start
			summary.LastActivity = &t
		}

		if tagsBySession != nil && i < len(tagsBySession) && len(tagsBySession[i]) > 0 {
			summary.AnomalousSessions++
		}
	}

	summary.Services = sortedKeys(services)
	summary.Protocols = sortedKeys(protocols)
	summary.DistinctDestinations = len(destinations)
	return summary, skipped
}

// DistinctDestinationCount counts the distinct destination addresses across
// valid records. The detector's high-connectivity rule consumes this as a
// subject-level signal computed once per investigation pass.
func DistinctDestinationCount(records []*ipdr.SessionRecord) int {
	destinations := make(map[string]struct{})
	for _, rec := range records {
		if ipdr.ValidateRecord(rec) != nil {
			continue
		}
		destinations[rec.Destination.NormalizedAddress()] = struct{}{}
	}
	return len(destinations)
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
