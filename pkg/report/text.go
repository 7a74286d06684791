// Package report renders investigation results as plain text for
// investigators. Rendering is deterministic: identical results produce
// byte-identical reports apart from the generation timestamp.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmistry/ipdrlens/pkg/investigation"
)

const rule = "============================================================"

// MaxPartners bounds how many partners the report lists.
const MaxPartners = 10

// RenderText renders a full investigation report.
func RenderText(result *investigation.Result) string {
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "IPDR INVESTIGATION REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Generated: %s\n\n", result.GeneratedAt.Format(time.RFC3339))

	subject := result.Subject
	fmt.Fprintln(&b, "SUBJECT:")
	fmt.Fprintf(&b, "  Key:        %s\n", subject.Key)
	fmt.Fprintf(&b, "  Name:       %s\n", subject.Name)
	if subject.Phone != "" {
		fmt.Fprintf(&b, "  Phone:      %s\n", subject.Phone)
	}
	fmt.Fprintf(&b, "  Suspicious: %v\n", subject.IsSuspicious)
	if len(subject.SuspicionReasons) > 0 {
		fmt.Fprintf(&b, "  Reasons:    %s\n", strings.Join(subject.SuspicionReasons, ", "))
	}
	fmt.Fprintln(&b)

	summary := result.Summary
	fmt.Fprintln(&b, "ACTIVITY SUMMARY:")
	fmt.Fprintf(&b, "  Sessions:            %d\n", summary.SessionCount)
	fmt.Fprintf(&b, "  Upload:              %s\n", formatBytes(summary.TotalUpload))
	fmt.Fprintf(&b, "  Download:            %s\n", formatBytes(summary.TotalDownload))
	fmt.Fprintf(&b, "  Total Duration:      %s\n", summary.TotalDuration)
	fmt.Fprintf(&b, "  Distinct Partners:   %d\n", summary.DistinctDestinations)
	fmt.Fprintf(&b, "  Anomalous Sessions:  %d\n", summary.AnomalousSessions)
	if result.SkippedRecords > 0 {
		fmt.Fprintf(&b, "  Skipped Records:     %d (malformed)\n", result.SkippedRecords)
	}
	if summary.FirstActivity != nil {
		fmt.Fprintf(&b, "  First Seen:          %s\n", summary.FirstActivity.Format(time.RFC3339))
		fmt.Fprintf(&b, "  Last Seen:           %s\n", summary.LastActivity.Format(time.RFC3339))
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "RISK: %d/100 (%s)\n", result.Risk.Score, result.Risk.Tier)
	for _, finding := range result.Anomalies {
		fmt.Fprintf(&b, "  - %s [severity %s]\n", finding.Description, finding.Severity)
	}
	fmt.Fprintln(&b)

	patterns := result.Patterns
	fmt.Fprintln(&b, "TEMPORAL ANALYSIS:")
	if patterns.MostActiveHour >= 0 {
		fmt.Fprintf(&b, "  Most Active Hour: %02d:00\n", patterns.MostActiveHour)
		fmt.Fprintf(&b, "  Most Active Day:  %s\n", patterns.MostActiveDay)
		fmt.Fprintf(&b, "  Off-Hours Share:  %.1f%%\n", patterns.OffHoursPercent)
	} else {
		fmt.Fprintln(&b, "  No activity observed.")
	}
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "COMMUNICATION PARTNERS (%d):\n", len(result.Partners))
	for i, partner := range result.Partners {
		if i == MaxPartners {
			fmt.Fprintf(&b, "  ... %d more\n", len(result.Partners)-MaxPartners)
			break
		}
		fmt.Fprintf(&b, "  %2d. %s\n", i+1, partner.Destination)
		fmt.Fprintf(&b, "      Sessions: %d  Up: %s  Down: %s\n",
			partner.SessionCount, formatBytes(partner.TotalUpload), formatBytes(partner.TotalDownload))
		fmt.Fprintf(&b, "      Services: %s\n", strings.Join(partner.Services, ", "))
		if partner.Location != nil {
			fmt.Fprintf(&b, "      Location: %.4f, %.4f\n", partner.Location.Latitude, partner.Location.Longitude)
		}
	}
	fmt.Fprintln(&b)

	if result.Suspicion != nil {
		fmt.Fprintln(&b, "RECOMMENDATION:")
		fmt.Fprintf(&b, "  Mark subject suspicious: %s\n", strings.Join(result.Suspicion.Reasons, ", "))
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "END OF REPORT")
	fmt.Fprintln(&b, rule)
	return b.String()
}

// RenderClusterText renders a cluster analysis summary.
func RenderClusterText(result *investigation.ClusterResult) string {
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "NETWORK CLUSTER ANALYSIS")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Center: %s  Depth: %d\n", result.Graph.Center, result.Graph.Depth)
	if result.Graph.Truncated {
		fmt.Fprintln(&b, "NOTE: expansion truncated by a timeout or node cap; partial graph shown.")
	}
	fmt.Fprintf(&b, "Nodes: %d  Edges: %d  Avg Degree: %.2f\n\n",
		result.Metrics.NodeCount, result.Metrics.EdgeCount, result.Metrics.AverageDegree)

	fmt.Fprintln(&b, "SUBJECTS BY DEPTH:")
	for _, node := range result.Graph.SortedNodes() {
		risk := result.RiskByNode[node.Key]
		fmt.Fprintf(&b, "  [%d] %s  risk %d (%s)\n", node.Depth, node.Key, risk.Score, risk.Tier)
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "EDGES (shared destinations):")
	for _, edge := range result.Graph.Edges {
		fmt.Fprintf(&b, "  %s -- %s  weight %d\n", edge.A, edge.B, edge.Weight)
	}
	fmt.Fprintln(&b)

	if len(result.Metrics.Suspicious) > 0 {
		fmt.Fprintln(&b, "PRIORITY SUBJECTS:")
		for _, key := range result.Metrics.Suspicious {
			fmt.Fprintf(&b, "  %s\n", key)
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, rule)
	return b.String()
}

func formatBytes(n int64) string {
	const (
		kib = 1024
		mib = 1024 * kib
		gib = 1024 * mib
	)
	switch {
	case n >= gib:
		return fmt.Sprintf("%.2f GiB", float64(n)/float64(gib))
	case n >= mib:
		return fmt.Sprintf("%.2f MiB", float64(n)/float64(mib))
	case n >= kib:
		return fmt.Sprintf("%.2f KiB", float64(n)/float64(kib))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
