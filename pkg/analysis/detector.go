package analysis

import (
	"strings"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// DetectionContext carries subject-level signals that the detector applies
// uniformly to every session evaluated in the same investigation pass.
type DetectionContext struct {
	// DistinctDestinationCount is the subject's distinct destination
	// address count, computed once per investigation.
	DistinctDestinationCount int
}

// Detector classifies sessions against the configured rule set. Rules are
// evaluated independently; a session may carry zero, one, or several tags.
type Detector struct {
	cfg      Config
	denylist map[string]struct{}
}

// NewDetector builds a Detector. Invalid thresholds are fatal here.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, denylist: cfg.denylistSet()}, nil
}

// Classify returns the anomaly tags for one session. The function is pure
// and idempotent: the same record and context always yield the same set.
func (d *Detector) Classify(rec *ipdr.SessionRecord, dctx DetectionContext) ipdr.TagSet {
	tags := make(ipdr.TagSet)
	if rec == nil {
		return tags
	}

	if rec.TotalBytes() > d.cfg.HighDataThresholdBytes {
		tags.Add(ipdr.TagHighDataUsage)
	}
	if d.cfg.inOffHours(rec.StartTime.Hour()) {
		tags.Add(ipdr.TagOffHoursActivity)
	}
	if dctx.DistinctDestinationCount > d.cfg.HighConnectivityThreshold {
		tags.Add(ipdr.TagHighConnectivity)
	}
	if _, listed := d.denylist[strings.ToLower(strings.TrimSpace(rec.Service))]; listed {
		tags.Add(ipdr.TagSuspiciousService)
	}
	return tags
}

// ClassifyAll classifies every record in one pass, returning a tag set per
// record at the matching index. Malformed records receive an empty set.
func (d *Detector) ClassifyAll(records []*ipdr.SessionRecord, dctx DetectionContext) []ipdr.TagSet {
	out := make([]ipdr.TagSet, len(records))
	for i, rec := range records {
		if ipdr.ValidateRecord(rec) != nil {
			out[i] = make(ipdr.TagSet)
			continue
		}
		out[i] = d.Classify(rec, dctx)
	}
	return out
}
