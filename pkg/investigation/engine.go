// Package investigation composes the analytics components into whole-subject
// investigations and network cluster analyses. The engine retains no state
// between calls; results always reflect the record source at call time.
package investigation

import (
	"context"
	"fmt"
	"time"

	"github.com/dmistry/ipdrlens/pkg/analysis"
	"github.com/dmistry/ipdrlens/pkg/cluster"
	"github.com/dmistry/ipdrlens/pkg/geoip"
	"github.com/dmistry/ipdrlens/pkg/ipdr"
	"github.com/dmistry/ipdrlens/pkg/logging"
	"github.com/dmistry/ipdrlens/pkg/metrics"
	"github.com/dmistry/ipdrlens/pkg/store"
)

// Deps wires an Engine. Records, Subjects, and Partners are required;
// Resolver, Logger, and Metrics default to no-ops when nil.
type Deps struct {
	Records  store.RecordProvider
	Subjects store.SubjectProvider
	Partners cluster.PartnerProvider

	Resolver geoip.Resolver
	Logger   logging.Logger
	Metrics  *metrics.Registry

	Config         analysis.Config
	ClusterOptions cluster.Options
}

// Engine runs investigations. Safe for concurrent use: all analysis is pure
// and the record source is accessed read-only.
type Engine struct {
	records  store.RecordProvider
	subjects store.SubjectProvider
	resolver geoip.Resolver
	logger   logging.Logger
	metrics  *metrics.Registry

	cfg         analysis.Config
	clusterOpts cluster.Options

	aggregator *analysis.Aggregator
	detector   *analysis.Detector
	scorer     *analysis.Scorer
	partners   *analysis.PartnerIndex
	builder    *cluster.Builder
}

// NewEngine validates configuration and builds an engine. Configuration
// errors are fatal here, never silently substituted.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Records == nil || deps.Subjects == nil || deps.Partners == nil {
		return nil, fmt.Errorf("%w: record, subject, and partner providers are required", ipdr.ErrInvalidConfig)
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, err
	}
	if err := deps.ClusterOptions.Validate(); err != nil {
		return nil, err
	}

	detector, err := analysis.NewDetector(deps.Config)
	if err != nil {
		return nil, err
	}
	scorer, err := analysis.NewScorer(deps.Config)
	if err != nil {
		return nil, err
	}

	resolver := deps.Resolver
	if resolver == nil {
		resolver = geoip.NopResolver{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Engine{
		records:     deps.Records,
		subjects:    deps.Subjects,
		resolver:    resolver,
		logger:      logger.With(logging.Component("investigation")),
		metrics:     deps.Metrics,
		cfg:         deps.Config,
		clusterOpts: deps.ClusterOptions,
		aggregator:  analysis.NewAggregator(),
		detector:    detector,
		scorer:      scorer,
		partners:    analysis.NewPartnerIndex(deps.Config.KeyPartnersByPort),
		builder:     cluster.NewBuilder(deps.Partners),
	}, nil
}

// Investigate produces the full analytic picture for one subject. Only an
// unknown subject identity fails; zero observed activity yields a zeroed
// summary and a NONE-tier score.
func (e *Engine) Investigate(ctx context.Context, key ipdr.SubjectKey) (*Result, error) {
	started := time.Now()

	subject, err := e.subjects.Subject(ctx, key)
	if err != nil {
		e.observeInvestigation("error", started, 0)
		return nil, err
	}

	records, err := e.records.RecordsBySubject(ctx, key)
	if err != nil {
		e.observeInvestigation("error", started, 0)
		return nil, fmt.Errorf("loading records for %s: %w", key, err)
	}

	dctx := analysis.DetectionContext{
		DistinctDestinationCount: analysis.DistinctDestinationCount(records),
	}
	tagsBySession := e.detector.ClassifyAll(records, dctx)

	summary, skipped := e.aggregator.Summarize(records, tagsBySession)
	partnerMap, _ := e.partners.Index(records)
	e.enrichPartners(partnerMap)

	result := &Result{
		Subject:        subject,
		GeneratedAt:    time.Now().UTC(),
		Summary:        summary,
		Partners:       analysis.SortPartners(partnerMap),
		Patterns:       analysis.AnalyzePatterns(e.cfg, records, partnerMap),
		Anomalies:      buildFindings(tagsBySession),
		Risk:           e.scorer.Score(summary, tagsBySession),
		SkippedRecords: skipped,
	}

	if result.Risk.Tier == analysis.TierRed || result.Risk.Tier == analysis.TierYellow {
		reasons := make([]string, 0, len(result.Risk.Contributing))
		for _, tag := range result.Risk.Contributing {
			reasons = append(reasons, string(tag))
		}
		result.Suspicion = &ipdr.SuspicionUpdate{Subject: key, Reasons: reasons}
	}

	e.logger.Info("investigation completed",
		logging.Subject(string(key)),
		logging.Count(summary.SessionCount),
		logging.Skipped(skipped),
		logging.String("tier", string(result.Risk.Tier)),
		logging.Latency(time.Since(started)),
	)
	e.observeInvestigation("ok", started, skipped)
	return result, nil
}

// AnalyzeCluster builds the bounded-depth network graph around a center
// subject and derives cluster metrics. A small or disconnected graph is
// never an error.
func (e *Engine) AnalyzeCluster(ctx context.Context, center ipdr.SubjectKey, depth int) (*ClusterResult, error) {
	started := time.Now()

	if _, err := e.subjects.Subject(ctx, center); err != nil {
		e.observeCluster("error", started, 0, false)
		return nil, err
	}

	opts := e.clusterOpts
	opts.Depth = depth
	graph, err := e.builder.Build(ctx, center, opts)
	if err != nil {
		e.observeCluster("error", started, 0, false)
		return nil, err
	}

	riskByNode := make(map[ipdr.SubjectKey]analysis.RiskScore, graph.NodeCount())
	for nodeKey := range graph.Nodes {
		risk, err := e.scoreSubject(ctx, nodeKey)
		if err != nil {
			e.observeCluster("error", started, graph.NodeCount(), graph.Truncated)
			return nil, err
		}
		riskByNode[nodeKey] = risk
	}

	result := &ClusterResult{
		Graph: graph,
		Metrics: graph.ComputeMetrics(func(k ipdr.SubjectKey) bool {
			tier := riskByNode[k].Tier
			return tier == analysis.TierRed || tier == analysis.TierYellow
		}),
		RiskByNode: riskByNode,
	}

	e.logger.Info("cluster analysis completed",
		logging.Subject(string(center)),
		logging.Int("nodes", graph.NodeCount()),
		logging.Int("edges", graph.EdgeCount()),
		logging.Bool("truncated", graph.Truncated),
		logging.Latency(time.Since(started)),
	)
	e.observeCluster("ok", started, graph.NodeCount(), graph.Truncated)
	return result, nil
}

// scoreSubject computes a subject's risk score without building the rest of
// the investigation result.
func (e *Engine) scoreSubject(ctx context.Context, key ipdr.SubjectKey) (analysis.RiskScore, error) {
	records, err := e.records.RecordsBySubject(ctx, key)
	if err != nil {
		return analysis.RiskScore{}, fmt.Errorf("loading records for %s: %w", key, err)
	}
	dctx := analysis.DetectionContext{
		DistinctDestinationCount: analysis.DistinctDestinationCount(records),
	}
	tagsBySession := e.detector.ClassifyAll(records, dctx)
	summary, _ := e.aggregator.Summarize(records, tagsBySession)
	return e.scorer.Score(summary, tagsBySession), nil
}

func (e *Engine) enrichPartners(partners map[string]*analysis.PartnerSummary) {
	for _, p := range partners {
		if loc, ok := e.resolver.Locate(p.Destination); ok {
			l := loc
			p.Location = &l
		}
	}
}

func buildFindings(tagsBySession []ipdr.TagSet) []AnomalyFinding {
	counts := make(map[ipdr.AnomalyTag]int)
	for _, tags := range tagsBySession {
		for tag := range tags {
			counts[tag]++
		}
	}

	var out []AnomalyFinding
	for _, tag := range ipdr.AllAnomalyTags {
		n := counts[tag]
		if n == 0 {
			continue
		}
		out = append(out, AnomalyFinding{
			Tag:         tag,
			Sessions:    n,
			Severity:    severityByTag[tag],
			Description: fmt.Sprintf("%d session(s) flagged %s", n, tag),
		})
	}
	return out
}

func (e *Engine) observeInvestigation(status string, started time.Time, skipped int) {
	if e.metrics != nil {
		e.metrics.RecordInvestigation(status, time.Since(started), skipped)
	}
}

func (e *Engine) observeCluster(status string, started time.Time, nodes int, truncated bool) {
	if e.metrics != nil {
		e.metrics.RecordClusterAnalysis(status, time.Since(started), nodes, truncated)
	}
}
