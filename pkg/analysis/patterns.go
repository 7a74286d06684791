package analysis

import (
	"time"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// ActivityPatterns describes when and through which partners a subject
// communicates. Derived entirely from the record set; empty input yields
// zeroed patterns.
type ActivityPatterns struct {
	HourlyActivity map[int]int    `json:"hourly_activity"`
	DailyActivity  map[string]int `json:"daily_activity"`

	// MostActiveHour is -1 when no sessions were observed. Ties resolve to
	// the earliest hour for deterministic output.
	MostActiveHour int    `json:"most_active_hour"`
	MostActiveDay  string `json:"most_active_day,omitempty"`

	// OffHoursPercent is the share of sessions starting inside the
	// configured off-hours window, 0-100.
	OffHoursPercent float64 `json:"off_hours_percent"`

	TopPartnerBySessions string `json:"top_partner_by_sessions,omitempty"`
	TopPartnerByVolume   string `json:"top_partner_by_volume,omitempty"`
}

// weekdayOrder fixes tie-breaking for the most-active-day computation.
var weekdayOrder = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// AnalyzePatterns computes temporal and partner usage patterns for a
// subject's records. Malformed records are ignored; the caller already
// accounts for them through the aggregation skip count.
func AnalyzePatterns(cfg Config, records []*ipdr.SessionRecord, partners map[string]*PartnerSummary) *ActivityPatterns {
	p := &ActivityPatterns{
		HourlyActivity: make(map[int]int),
		DailyActivity:  make(map[string]int),
		MostActiveHour: -1,
	}

	valid, offHours := 0, 0
	for _, rec := range records {
		if ipdr.ValidateRecord(rec) != nil {
			continue
		}
		valid++
		hour := rec.StartTime.Hour()
		p.HourlyActivity[hour]++
		p.DailyActivity[rec.StartTime.Weekday().String()]++
		if cfg.inOffHours(hour) {
			offHours++
		}
	}

	if valid == 0 {
		return p
	}
	p.OffHoursPercent = float64(offHours) / float64(valid) * 100

	best := 0
	for hour := 0; hour < 24; hour++ {
		if n := p.HourlyActivity[hour]; n > best {
			best = n
			p.MostActiveHour = hour
		}
	}

	best = 0
	for _, day := range weekdayOrder {
		if n := p.DailyActivity[day.String()]; n > best {
			best = n
			p.MostActiveDay = day.String()
		}
	}

	var bySessions, byVolume *PartnerSummary
	for _, partner := range SortPartners(partners) {
		if bySessions == nil {
			bySessions = partner
		}
		if byVolume == nil || partner.TotalUpload+partner.TotalDownload > byVolume.TotalUpload+byVolume.TotalDownload {
			byVolume = partner
		}
	}
	if bySessions != nil {
		p.TopPartnerBySessions = bySessions.Destination
	}
	if byVolume != nil {
		p.TopPartnerByVolume = byVolume.Destination
	}
	return p
}
