package investigation

import (
	"time"

	"github.com/dmistry/ipdrlens/pkg/analysis"
	"github.com/dmistry/ipdrlens/pkg/cluster"
	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// AnomalyFinding aggregates one anomaly type across a subject's sessions.
type AnomalyFinding struct {
	Tag         ipdr.AnomalyTag `json:"tag"`
	Sessions    int             `json:"sessions"`
	Severity    string          `json:"severity"`
	Description string          `json:"description"`
}

// Result is the full investigation output for one subject. Every field is
// recomputed per call from the record source; nothing is cached.
type Result struct {
	Subject     *ipdr.Subject `json:"subject"`
	GeneratedAt time.Time     `json:"generated_at"`

	Summary  *analysis.ActivitySummary  `json:"activity_summary"`
	Partners []*analysis.PartnerSummary `json:"partners"`
	Patterns *analysis.ActivityPatterns `json:"patterns"`

	Anomalies []AnomalyFinding   `json:"anomalies"`
	Risk      analysis.RiskScore `json:"risk"`

	// SkippedRecords counts malformed records excluded from aggregation.
	SkippedRecords int `json:"skipped_records"`

	// Suspicion is the recommended suspicion-state update, present when
	// the risk tier reaches YELLOW. Applying it is the caller's decision
	// and an external persistence step.
	Suspicion *ipdr.SuspicionUpdate `json:"suspicion,omitempty"`
}

// ClusterResult is the output of a network cluster analysis.
type ClusterResult struct {
	Graph   *cluster.Graph  `json:"graph"`
	Metrics cluster.Metrics `json:"metrics"`

	// RiskByNode holds the independently computed risk score of every
	// discovered subject, backing the suspicious-node subset.
	RiskByNode map[ipdr.SubjectKey]analysis.RiskScore `json:"risk_by_node"`
}

// severityByTag mirrors the severity labels investigators attach to each
// anomaly class.
var severityByTag = map[ipdr.AnomalyTag]string{
	ipdr.TagHighDataUsage:     "medium",
	ipdr.TagOffHoursActivity:  "low",
	ipdr.TagHighConnectivity:  "medium",
	ipdr.TagSuspiciousService: "high",
}
