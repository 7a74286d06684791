package analysis

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// genTagSet produces a random anomaly tag set drawn from the known tags.
func genTagSet() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, len(ipdr.AllAnomalyTags)-1)).Map(func(idxs []int) ipdr.TagSet {
		set := make(ipdr.TagSet)
		for _, i := range idxs {
			set.Add(ipdr.AllAnomalyTags[i])
		}
		return set
	})
}

// TestScorerProperties verifies invariants the scorer must hold for any
// anomaly composition, not just hand-picked cases.
func TestScorerProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	scorer := mustScorer(t, DefaultConfig())

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	// Property 1: score always lands in [0, 100]
	properties.Property("score is bounded", prop.ForAll(
		func(tags []ipdr.TagSet) bool {
			got := scorer.Score(&ActivitySummary{SessionCount: len(tags)}, tags)
			return got.Score >= 0 && got.Score <= 100
		},
		gen.SliceOf(genTagSet()),
	))

	// Property 2: adding sessions never lowers the score
	properties.Property("score is monotone under added sessions", prop.ForAll(
		func(base, extra []ipdr.TagSet) bool {
			before := scorer.Score(&ActivitySummary{SessionCount: len(base)}, base)

			grown := make([]ipdr.TagSet, 0, len(base)+len(extra))
			grown = append(grown, base...)
			grown = append(grown, extra...)
			after := scorer.Score(&ActivitySummary{SessionCount: len(grown)}, grown)

			return after.Score >= before.Score
		},
		gen.SliceOf(genTagSet()),
		gen.SliceOf(genTagSet()),
	))

	// Property 3: identical input yields identical output
	properties.Property("score is deterministic", prop.ForAll(
		func(tags []ipdr.TagSet) bool {
			first := scorer.Score(&ActivitySummary{SessionCount: len(tags)}, tags)
			second := scorer.Score(&ActivitySummary{SessionCount: len(tags)}, tags)
			if first.Score != second.Score || first.Tier != second.Tier {
				return false
			}
			if len(first.Contributing) != len(second.Contributing) {
				return false
			}
			for i := range first.Contributing {
				if first.Contributing[i] != second.Contributing[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genTagSet()),
	))

	properties.TestingRun(t)
}

// TestAggregationProperties checks conservation laws over random record
// sets: bytes are conserved and partner groups partition the sessions.
func TestAggregationProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	// Random records over a small destination pool so groups form.
	genRecords := gen.SliceOf(gen.IntRange(0, 1<<20)).Map(func(vals []int) []*ipdr.SessionRecord {
		records := make([]*ipdr.SessionRecord, len(vals))
		for i, v := range vals {
			dest := fmt.Sprintf("203.0.113.%d", v%8+1)
			records[i] = rec("123456789012", v%24, dest, int64(v), int64(v/2), "WhatsApp")
		}
		return records
	})

	// Property 1: summary byte totals equal the sum over the input
	properties.Property("byte totals are conserved", prop.ForAll(
		func(records []*ipdr.SessionRecord) bool {
			var wantUp, wantDown int64
			for _, r := range records {
				wantUp += r.BytesUploaded
				wantDown += r.BytesDownload
			}
			summary, skipped := NewAggregator().Summarize(records, nil)
			return skipped == 0 &&
				summary.TotalUpload == wantUp &&
				summary.TotalDownload == wantDown
		},
		genRecords,
	))

	// Property 2: partner session counts partition the valid sessions
	properties.Property("partner groups partition sessions", prop.ForAll(
		func(records []*ipdr.SessionRecord) bool {
			partners, skipped := NewPartnerIndex(false).Index(records)
			total := 0
			for _, p := range partners {
				total += p.SessionCount
			}
			return total+skipped == len(records)
		},
		genRecords,
	))

	// Property 3: distinct destination counts agree across components
	properties.Property("destination counts agree", prop.ForAll(
		func(records []*ipdr.SessionRecord) bool {
			summary, _ := NewAggregator().Summarize(records, nil)
			partners, _ := NewPartnerIndex(false).Index(records)
			return summary.DistinctDestinations == len(partners) &&
				DistinctDestinationCount(records) == len(partners)
		},
		genRecords,
	))

	properties.TestingRun(t)
}
