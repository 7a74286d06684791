package analysis

import (
	"testing"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

func mustScorer(t *testing.T, cfg Config) *Scorer {
	t.Helper()
	s, err := NewScorer(cfg)
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

func TestScore_NoAnomalies(t *testing.T) {
	s := mustScorer(t, DefaultConfig())

	got := s.Score(&ActivitySummary{}, nil)
	if got.Score != 0 {
		t.Errorf("expected score 0, got %d", got.Score)
	}
	if got.Tier != TierNone {
		t.Errorf("expected tier NONE, got %s", got.Tier)
	}
	if len(got.Contributing) != 0 {
		t.Errorf("expected no contributing tags, got %v", got.Contributing)
	}
}

func TestScore_DefaultWeights(t *testing.T) {
	s := mustScorer(t, DefaultConfig())

	tests := []struct {
		name     string
		tags     []ipdr.TagSet
		want     int
		wantTier Tier
	}{
		{
			"one anomaly type",
			[]ipdr.TagSet{ipdr.NewTagSet(ipdr.TagOffHoursActivity)},
			25, TierGreen,
		},
		{
			"two types",
			[]ipdr.TagSet{ipdr.NewTagSet(ipdr.TagOffHoursActivity, ipdr.TagHighDataUsage)},
			50, TierYellow,
		},
		{
			"three types",
			[]ipdr.TagSet{ipdr.NewTagSet(ipdr.TagHighDataUsage, ipdr.TagOffHoursActivity, ipdr.TagSuspiciousService)},
			75, TierRed,
		},
		{
			"all four types",
			[]ipdr.TagSet{
				ipdr.NewTagSet(ipdr.TagHighDataUsage, ipdr.TagOffHoursActivity),
				ipdr.NewTagSet(ipdr.TagHighConnectivity, ipdr.TagSuspiciousService),
			},
			100, TierRed,
		},
		{
			"repeat sessions capped per type",
			[]ipdr.TagSet{
				ipdr.NewTagSet(ipdr.TagOffHoursActivity),
				ipdr.NewTagSet(ipdr.TagOffHoursActivity),
				ipdr.NewTagSet(ipdr.TagOffHoursActivity),
			},
			25, TierGreen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(&ActivitySummary{SessionCount: len(tt.tags)}, tt.tags)
			if got.Score != tt.want {
				t.Errorf("score = %d, want %d", got.Score, tt.want)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", got.Tier, tt.wantTier)
			}
		})
	}
}

func TestScore_ClampedAt100(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnomalyWeights = map[ipdr.AnomalyTag]int{
		ipdr.TagHighDataUsage:     90,
		ipdr.TagOffHoursActivity:  90,
		ipdr.TagHighConnectivity:  90,
		ipdr.TagSuspiciousService: 90,
	}
	s := mustScorer(t, cfg)

	tags := []ipdr.TagSet{ipdr.NewTagSet(ipdr.AllAnomalyTags...)}
	got := s.Score(&ActivitySummary{SessionCount: 1}, tags)
	if got.Score != 100 {
		t.Errorf("expected clamp to 100, got %d", got.Score)
	}
	if got.Tier != TierRed {
		t.Errorf("expected RED, got %s", got.Tier)
	}
}

func TestScore_CapPerType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnomalyWeights = map[ipdr.AnomalyTag]int{ipdr.TagOffHoursActivity: 10}
	cfg.AnomalyCapPerType = 3
	s := mustScorer(t, cfg)

	many := make([]ipdr.TagSet, 10)
	for i := range many {
		many[i] = ipdr.NewTagSet(ipdr.TagOffHoursActivity)
	}
	got := s.Score(&ActivitySummary{SessionCount: 10}, many)
	if got.Score != 30 {
		t.Errorf("expected 10 sessions capped at 3, score 30, got %d", got.Score)
	}
}

func TestScore_ContributingCanonicalOrder(t *testing.T) {
	s := mustScorer(t, DefaultConfig())
	tags := []ipdr.TagSet{
		ipdr.NewTagSet(ipdr.TagSuspiciousService),
		ipdr.NewTagSet(ipdr.TagHighDataUsage),
	}

	got := s.Score(&ActivitySummary{SessionCount: 2}, tags)
	want := []ipdr.AnomalyTag{ipdr.TagHighDataUsage, ipdr.TagSuspiciousService}
	if len(got.Contributing) != len(want) {
		t.Fatalf("expected %v, got %v", want, got.Contributing)
	}
	for i := range want {
		if got.Contributing[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got.Contributing[i])
		}
	}
}

func TestTierBoundaries(t *testing.T) {
	s := mustScorer(t, DefaultConfig())

	tests := []struct {
		score int
		want  Tier
	}{
		{100, TierRed},
		{70, TierRed},
		{69, TierYellow},
		{40, TierYellow},
		{39, TierGreen},
		{20, TierGreen},
		{19, TierNone},
		{0, TierNone},
	}
	for _, tt := range tests {
		if got := s.tierFor(tt.score); got != tt.want {
			t.Errorf("tierFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScore_ZeroWeightTypeDoesNotContribute(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnomalyWeights[ipdr.TagOffHoursActivity] = 0
	s := mustScorer(t, cfg)

	tags := []ipdr.TagSet{ipdr.NewTagSet(ipdr.TagOffHoursActivity)}
	got := s.Score(&ActivitySummary{SessionCount: 1}, tags)
	if got.Score != 0 || len(got.Contributing) != 0 {
		t.Errorf("zero-weight anomaly should not score or contribute, got %+v", got)
	}
}
