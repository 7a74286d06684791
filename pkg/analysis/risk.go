package analysis

import "github.com/dmistry/ipdrlens/pkg/ipdr"

// Tier is the categorical bucket for a risk score.
type Tier string

const (
	TierRed    Tier = "RED"
	TierYellow Tier = "YELLOW"
	TierGreen  Tier = "GREEN"
	TierNone   Tier = "NONE"
)

// RiskScore is a bounded numeric summary of a subject's anomaly burden.
// It is always recomputed, never mutated.
type RiskScore struct {
	Score int  `json:"score"` // 0-100
	Tier  Tier `json:"tier"`

	// Contributing lists the anomaly types that added to the score, in
	// canonical tag order for reproducible output.
	Contributing []ipdr.AnomalyTag `json:"contributing"`
}

// Scorer maps a subject's anomaly composition to a RiskScore. It consults
// neither storage nor the clock: two calls with identical inputs produce
// bit-identical output, which audit reproducibility requires.
type Scorer struct {
	cfg Config
}

// NewScorer builds a Scorer. Invalid weights or tier cutoffs are fatal here.
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Score reduces per-session tag sets to a clamped [0,100] score and tier.
// Per anomaly type the contribution is weight * min(sessionCount, cap), so
// one prolific anomaly type cannot saturate the score. Adding an
// anomaly-bearing session never lowers the result.
func (s *Scorer) Score(summary *ActivitySummary, tagsBySession []ipdr.TagSet) RiskScore {
	_ = summary // the score is a function of anomaly composition alone

	counts := make(map[ipdr.AnomalyTag]int, len(ipdr.AllAnomalyTags))
	for _, tags := range tagsBySession {
		for tag := range tags {
			counts[tag]++
		}
	}

	raw := 0
	contributing := make([]ipdr.AnomalyTag, 0, len(counts))
	for _, tag := range ipdr.AllAnomalyTags {
		n := counts[tag]
		if n == 0 {
			continue
		}
		if n > s.cfg.AnomalyCapPerType {
			n = s.cfg.AnomalyCapPerType
		}
		weight := s.cfg.AnomalyWeights[tag]
		if weight > 0 {
			raw += weight * n
			contributing = append(contributing, tag)
		}
	}

	if raw > 100 {
		raw = 100
	}
	return RiskScore{
		Score:        raw,
		Tier:         s.tierFor(raw),
		Contributing: contributing,
	}
}

func (s *Scorer) tierFor(score int) Tier {
	switch {
	case score >= s.cfg.RiskTiers.Red:
		return TierRed
	case score >= s.cfg.RiskTiers.Yellow:
		return TierYellow
	case score >= s.cfg.RiskTiers.Green:
		return TierGreen
	default:
		return TierNone
	}
}
