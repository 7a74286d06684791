package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

func storeRecord(subject ipdr.SubjectKey, start time.Time, dest string) *ipdr.SessionRecord {
	return &ipdr.SessionRecord{
		SubjectKey:    subject,
		StartTime:     start,
		EndTime:       start.Add(time.Minute),
		Source:        ipdr.Endpoint{Address: "10.0.0.1", Port: 40001},
		Destination:   ipdr.Endpoint{Address: dest, Port: 443},
		Protocol:      "TCP",
		BytesUploaded: 100,
		BytesDownload: 100,
		Service:       "WhatsApp",
	}
}

func TestMemoryStore_SubjectLookup(t *testing.T) {
	s := NewMemoryStore()
	if err := s.PutSubject(&ipdr.Subject{Key: "123456789012", Name: "Rajesh Kumar"}); err != nil {
		t.Fatalf("PutSubject: %v", err)
	}

	got, err := s.Subject(context.Background(), "123456789012")
	if err != nil {
		t.Fatalf("Subject: %v", err)
	}
	if got.Name != "Rajesh Kumar" {
		t.Errorf("unexpected subject: %+v", got)
	}

	_, err = s.Subject(context.Background(), "999999999999")
	if !errors.Is(err, ipdr.ErrSubjectNotFound) {
		t.Errorf("expected ErrSubjectNotFound, got %v", err)
	}
}

func TestMemoryStore_PutSubjectRejectsBadKey(t *testing.T) {
	s := NewMemoryStore()
	if err := s.PutSubject(&ipdr.Subject{Key: "short"}); err == nil {
		t.Error("expected error for malformed key")
	}
	if err := s.PutSubject(nil); err == nil {
		t.Error("expected error for nil subject")
	}
}

func TestMemoryStore_RecordsBySubjectReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.AddRecords(storeRecord("123456789012", start, "203.0.113.5"))

	first, _ := s.RecordsBySubject(context.Background(), "123456789012")
	first[0] = nil

	second, _ := s.RecordsBySubject(context.Background(), "123456789012")
	if second[0] == nil {
		t.Error("callers must not be able to mutate the stored slice")
	}
}

func TestMemoryStore_RecordsByTimeRange(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.AddRecords(
		storeRecord("123456789012", base.Add(1*time.Hour), "203.0.113.5"),
		storeRecord("123456789012", base.Add(5*time.Hour), "203.0.113.5"),
		storeRecord("222222222222", base.Add(3*time.Hour), "203.0.113.5"),
	)

	got, err := s.RecordsByTimeRange(context.Background(), base, base.Add(4*time.Hour))
	if err != nil {
		t.Fatalf("RecordsByTimeRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records in range, got %d", len(got))
	}
	if !got[0].StartTime.Before(got[1].StartTime) {
		t.Error("records should come back in start-time order")
	}
}

func TestMemoryStore_DestinationIndex(t *testing.T) {
	s := NewMemoryStore()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.AddRecords(
		storeRecord("111111111111", start, "203.0.113.5"),
		storeRecord("222222222222", start, "203.0.113.5"),
		storeRecord("222222222222", start, "198.51.100.7"),
	)

	dests, err := s.Destinations(context.Background(), "222222222222")
	if err != nil {
		t.Fatalf("Destinations: %v", err)
	}
	if len(dests) != 2 {
		t.Errorf("expected 2 destinations, got %d", len(dests))
	}

	subjects, err := s.SubjectsByDestination(context.Background(), "203.0.113.5")
	if err != nil {
		t.Fatalf("SubjectsByDestination: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != "111111111111" || subjects[1] != "222222222222" {
		t.Errorf("unexpected subjects (must be sorted): %v", subjects)
	}
}

func TestMemoryStore_MalformedRecordsStayOutOfIndex(t *testing.T) {
	s := NewMemoryStore()
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	bad := storeRecord("111111111111", start, "203.0.113.5")
	bad.BytesUploaded = -1
	s.AddRecords(bad)

	// The raw record is kept so the skip count stays observable downstream.
	records, _ := s.RecordsBySubject(context.Background(), "111111111111")
	if len(records) != 1 {
		t.Fatalf("malformed record should still be stored, got %d", len(records))
	}

	subjects, _ := s.SubjectsByDestination(context.Background(), "203.0.113.5")
	if len(subjects) != 0 {
		t.Errorf("malformed record must not feed the destination index, got %v", subjects)
	}
}

func TestMemoryStore_ApplySuspicion(t *testing.T) {
	s := NewMemoryStore()
	if err := s.PutSubject(&ipdr.Subject{Key: "123456789012"}); err != nil {
		t.Fatal(err)
	}

	update := ipdr.SuspicionUpdate{
		Subject: "123456789012",
		Reasons: []string{"HIGH_DATA_USAGE", "OFF_HOURS_ACTIVITY"},
	}
	if err := s.ApplySuspicion(context.Background(), update); err != nil {
		t.Fatalf("ApplySuspicion: %v", err)
	}
	// Re-applying must not duplicate reasons.
	if err := s.ApplySuspicion(context.Background(), update); err != nil {
		t.Fatalf("ApplySuspicion repeat: %v", err)
	}

	subject, _ := s.Subject(context.Background(), "123456789012")
	if !subject.IsSuspicious {
		t.Error("subject should be marked suspicious")
	}
	if len(subject.SuspicionReasons) != 2 {
		t.Errorf("reasons should be deduplicated, got %v", subject.SuspicionReasons)
	}

	err := s.ApplySuspicion(context.Background(), ipdr.SuspicionUpdate{Subject: "999999999999"})
	if !errors.Is(err, ipdr.ErrSubjectNotFound) {
		t.Errorf("expected ErrSubjectNotFound, got %v", err)
	}
}

func TestMemoryStore_SuspiciousSubjects(t *testing.T) {
	s := NewMemoryStore()
	for _, sub := range []*ipdr.Subject{
		{Key: "333333333333", IsSuspicious: true},
		{Key: "111111111111", IsSuspicious: true},
		{Key: "222222222222"},
	} {
		if err := s.PutSubject(sub); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.SuspiciousSubjects(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Key != "111111111111" || got[1].Key != "333333333333" {
		t.Errorf("expected sorted suspicious subjects, got %+v", got)
	}
}
