package analysis

import (
	"sort"
	"time"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// PartnerSummary aggregates a subject's sessions toward one communication
// partner (the B-party view).
type PartnerSummary struct {
	// Destination is the grouping key: the normalized destination address,
	// or address:port when the index is keyed by port.
	Destination string `json:"destination"`
	// Port is the first-seen destination port, kept as a detail when
	// grouping is port-insensitive.
	Port int `json:"port"`

	SessionCount  int      `json:"session_count"`
	TotalUpload   int64    `json:"total_upload"`
	TotalDownload int64    `json:"total_download"`
	Services      []string `json:"services"`
	Protocols     []string `json:"protocols"`

	FirstContact time.Time `json:"first_contact"`
	LastContact  time.Time `json:"last_contact"`

	// Location is filled by the orchestrator when the geo resolver knows
	// the address. Nil means unknown, which is not an error.
	Location *ipdr.Location `json:"location,omitempty"`
}

// PartnerIndex groups a subject's sessions by destination endpoint.
type PartnerIndex struct {
	keyByPort bool
}

// NewPartnerIndex builds an index grouping by bare destination address.
// keyByPort switches the grouping identity to address:port.
func NewPartnerIndex(keyByPort bool) *PartnerIndex {
	return &PartnerIndex{keyByPort: keyByPort}
}

type partnerAccum struct {
	summary   *PartnerSummary
	services  map[string]struct{}
	protocols map[string]struct{}
}

// Index folds records into per-partner summaries keyed by destination
// identity. Malformed records are skipped and counted. The returned map has
// no contractual iteration order; use SortPartners for stable rendering.
func (x *PartnerIndex) Index(records []*ipdr.SessionRecord) (map[string]*PartnerSummary, int) {
	groups := make(map[string]*partnerAccum)
	skipped := 0

	for _, rec := range records {
		if err := ipdr.ValidateRecord(rec); err != nil {
			skipped++
			continue
		}

		key := rec.Destination.NormalizedAddress()
		if x.keyByPort {
			key = ipdr.Endpoint{Address: key, Port: rec.Destination.Port}.String()
		}

		acc, ok := groups[key]
		if !ok {
			acc = &partnerAccum{
				summary: &PartnerSummary{
					Destination:  key,
					Port:         rec.Destination.Port,
					FirstContact: rec.StartTime,
					LastContact:  rec.EndTime,
				},
				services:  make(map[string]struct{}),
				protocols: make(map[string]struct{}),
			}
			groups[key] = acc
		}

		sum := acc.summary
		sum.SessionCount++
		sum.TotalUpload += rec.BytesUploaded
		sum.TotalDownload += rec.BytesDownload
		acc.services[normalizeLabel(rec.Service)] = struct{}{}
		acc.protocols[normalizeLabel(rec.Protocol)] = struct{}{}

		if rec.StartTime.Before(sum.FirstContact) {
			sum.FirstContact = rec.StartTime
		}
		if rec.EndTime.After(sum.LastContact) {
			sum.LastContact = rec.EndTime
		}
	}

	out := make(map[string]*PartnerSummary, len(groups))
	for key, acc := range groups {
		acc.summary.Services = sortedKeys(acc.services)
		acc.summary.Protocols = sortedKeys(acc.protocols)
		out[key] = acc.summary
	}
	return out, skipped
}

// SortPartners returns the summaries ordered by session count descending,
// then destination ascending, for deterministic report rendering.
func SortPartners(partners map[string]*PartnerSummary) []*PartnerSummary {
	out := make([]*PartnerSummary, 0, len(partners))
	for _, p := range partners {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionCount != out[j].SessionCount {
			return out[i].SessionCount > out[j].SessionCount
		}
		return out[i].Destination < out[j].Destination
	})
	return out
}
