package analysis

import (
	"fmt"
	"strings"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
	"github.com/dmistry/ipdrlens/pkg/validation"
)

// TierThresholds holds the lower score bound of each severity tier.
// Scores below Green map to TierNone.
type TierThresholds struct {
	Red    int `yaml:"red"`
	Yellow int `yaml:"yellow"`
	Green  int `yaml:"green"`
}

// Config carries every tunable threshold used by the analytics components.
// Thresholds are injected, never hard-coded, so investigators can adjust
// sensitivity without code changes. A Config must pass Validate before use.
type Config struct {
	// HighDataThresholdBytes flags sessions whose combined byte count
	// exceeds it. Default 100 MiB.
	HighDataThresholdBytes int64 `yaml:"high_data_threshold_bytes"`

	// OffHoursStart/OffHoursEnd define the off-hours window as hours of
	// day. The window wraps past midnight when start > end; the start hour
	// is included and the end hour excluded. Default 23 -> 6.
	OffHoursStart int `yaml:"off_hours_start"`
	OffHoursEnd   int `yaml:"off_hours_end"`

	// HighConnectivityThreshold flags subjects contacting more distinct
	// destinations than this. Default 50.
	HighConnectivityThreshold int `yaml:"high_connectivity_threshold"`

	// SuspiciousServices is a denylist of service labels, matched exactly
	// and case-insensitively.
	SuspiciousServices []string `yaml:"suspicious_services"`

	// AnomalyWeights maps each anomaly type to its score contribution.
	// Default 25 per type.
	AnomalyWeights map[ipdr.AnomalyTag]int `yaml:"anomaly_weights"`

	// AnomalyCapPerType bounds how many sessions of a single anomaly type
	// count toward the score, so one prolific anomaly cannot saturate it.
	// Default 1.
	AnomalyCapPerType int `yaml:"anomaly_cap_per_type"`

	// RiskTiers holds the severity tier cutoffs. Defaults 70/40/20.
	RiskTiers TierThresholds `yaml:"risk_tiers"`

	// KeyPartnersByPort switches partner identity from bare destination
	// address to address:port.
	KeyPartnersByPort bool `yaml:"key_partners_by_port"`
}

// DefaultConfig returns the standard investigation thresholds.
func DefaultConfig() Config {
	return Config{
		HighDataThresholdBytes:    100 * 1024 * 1024,
		OffHoursStart:             23,
		OffHoursEnd:               6,
		HighConnectivityThreshold: 50,
		SuspiciousServices:        nil,
		AnomalyWeights: map[ipdr.AnomalyTag]int{
			ipdr.TagHighDataUsage:     25,
			ipdr.TagOffHoursActivity:  25,
			ipdr.TagHighConnectivity:  25,
			ipdr.TagSuspiciousService: 25,
		},
		AnomalyCapPerType: 1,
		RiskTiers:         TierThresholds{Red: 70, Yellow: 40, Green: 20},
	}
}

// Validate checks every threshold. Errors satisfy
// errors.Is(err, ipdr.ErrInvalidConfig) and are fatal at construction.
func (c Config) Validate() error {
	cv := validation.NewConfigValidator("analysis.Config").
		PositiveInt64("HighDataThresholdBytes", c.HighDataThresholdBytes).
		HourOfDay("OffHoursStart", c.OffHoursStart).
		HourOfDay("OffHoursEnd", c.OffHoursEnd).
		Positive("HighConnectivityThreshold", c.HighConnectivityThreshold).
		Positive("AnomalyCapPerType", c.AnomalyCapPerType).
		RangeInt("RiskTiers.Red", c.RiskTiers.Red, 1, 100).
		RangeInt("RiskTiers.Yellow", c.RiskTiers.Yellow, 1, 100).
		RangeInt("RiskTiers.Green", c.RiskTiers.Green, 1, 100).
		Custom("RiskTiers", func() error {
			if c.RiskTiers.Red <= c.RiskTiers.Yellow || c.RiskTiers.Yellow <= c.RiskTiers.Green {
				return fmt.Errorf("tier cutoffs must descend: red %d > yellow %d > green %d",
					c.RiskTiers.Red, c.RiskTiers.Yellow, c.RiskTiers.Green)
			}
			return nil
		}).
		Custom("AnomalyWeights", func() error {
			for tag, w := range c.AnomalyWeights {
				if w < 0 {
					return fmt.Errorf("weight for %s must be non-negative, got %d", tag, w)
				}
			}
			return nil
		})

	if err := cv.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ipdr.ErrInvalidConfig, err)
	}
	return nil
}

// denylistSet folds the configured service denylist for case-insensitive
// exact matching.
func (c Config) denylistSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.SuspiciousServices))
	for _, s := range c.SuspiciousServices {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return set
}

// inOffHours reports whether the hour falls in the configured window,
// wrapping past midnight when the window does.
func (c Config) inOffHours(hour int) bool {
	if c.OffHoursStart == c.OffHoursEnd {
		return false
	}
	if c.OffHoursStart < c.OffHoursEnd {
		return hour >= c.OffHoursStart && hour < c.OffHoursEnd
	}
	return hour >= c.OffHoursStart || hour < c.OffHoursEnd
}
