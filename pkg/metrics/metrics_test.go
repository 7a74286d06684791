package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, r *Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func counterValue(t *testing.T, mf *dto.MetricFamily, label, value string) float64 {
	t.Helper()
	if mf == nil {
		t.Fatal("metric family missing")
	}
	for _, m := range mf.GetMetric() {
		if label == "" {
			return m.GetCounter().GetValue()
		}
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no metric with %s=%q in %s", label, value, mf.GetName())
	return 0
}

func TestRecordInvestigation(t *testing.T) {
	r := NewRegistry()
	r.RecordInvestigation("ok", 5*time.Millisecond, 3)
	r.RecordInvestigation("ok", 2*time.Millisecond, 0)
	r.RecordInvestigation("error", time.Millisecond, 0)

	families := gather(t, r)

	total := families["ipdrlens_investigations_total"]
	if got := counterValue(t, total, "status", "ok"); got != 2 {
		t.Errorf("ok investigations = %v, want 2", got)
	}
	if got := counterValue(t, total, "status", "error"); got != 1 {
		t.Errorf("error investigations = %v, want 1", got)
	}

	skipped := families["ipdrlens_records_skipped_total"]
	if got := counterValue(t, skipped, "", ""); got != 3 {
		t.Errorf("skipped records = %v, want 3", got)
	}

	duration := families["ipdrlens_investigation_duration_seconds"]
	if duration == nil {
		t.Fatal("duration histogram missing")
	}
	var samples uint64
	for _, m := range duration.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("duration samples = %d, want 3", samples)
	}
}

func TestRecordClusterAnalysis(t *testing.T) {
	r := NewRegistry()
	r.RecordClusterAnalysis("ok", 10*time.Millisecond, 25, false)
	r.RecordClusterAnalysis("ok", 40*time.Millisecond, 500, true)

	families := gather(t, r)

	if got := counterValue(t, families["ipdrlens_cluster_analyses_total"], "status", "ok"); got != 2 {
		t.Errorf("cluster analyses = %v, want 2", got)
	}
	if got := counterValue(t, families["ipdrlens_cluster_truncated_total"], "", ""); got != 1 {
		t.Errorf("truncated = %v, want 1", got)
	}

	nodes := families["ipdrlens_cluster_nodes_visited"]
	if nodes == nil {
		t.Fatal("nodes histogram missing")
	}
	h := nodes.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("node samples = %d, want 2", h.GetSampleCount())
	}
	if h.GetSampleSum() != 525 {
		t.Errorf("node sum = %v, want 525", h.GetSampleSum())
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.RecordInvestigation("ok", time.Millisecond, 0)

	families := gather(t, b)
	if mf := families["ipdrlens_investigations_total"]; mf != nil && len(mf.GetMetric()) > 0 {
		t.Error("registries must not share state")
	}
}
