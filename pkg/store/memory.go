package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// MemoryStore is an in-memory record store. It maintains an inverse
// destination index so cluster expansion avoids scanning every record.
// Reads take a shared lock; analysis over a loaded store is fully
// concurrent.
type MemoryStore struct {
	mu       sync.RWMutex
	subjects map[ipdr.SubjectKey]*ipdr.Subject
	records  map[ipdr.SubjectKey][]*ipdr.SessionRecord

	// byDestination maps a normalized destination address to the subjects
	// that contacted it.
	byDestination map[string]map[ipdr.SubjectKey]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects:      make(map[ipdr.SubjectKey]*ipdr.Subject),
		records:       make(map[ipdr.SubjectKey][]*ipdr.SessionRecord),
		byDestination: make(map[string]map[ipdr.SubjectKey]struct{}),
	}
}

// PutSubject registers or replaces a subject profile.
func (s *MemoryStore) PutSubject(subject *ipdr.Subject) error {
	if subject == nil || !ipdr.ValidSubjectKey(subject.Key) {
		return fmt.Errorf("%w: invalid subject profile", ipdr.ErrMalformedRecord)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.Key] = subject
	return nil
}

// AddRecords appends session records. Structurally malformed records are
// stored as-is (the analytics skip-and-continue policy handles them) but
// only valid records feed the destination index.
func (s *MemoryStore) AddRecords(records ...*ipdr.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec == nil {
			continue
		}
		s.records[rec.SubjectKey] = append(s.records[rec.SubjectKey], rec)
		if ipdr.ValidateRecord(rec) != nil {
			continue
		}
		dest := rec.Destination.NormalizedAddress()
		if s.byDestination[dest] == nil {
			s.byDestination[dest] = make(map[ipdr.SubjectKey]struct{})
		}
		s.byDestination[dest][rec.SubjectKey] = struct{}{}
	}
}

// Subject implements SubjectProvider.
func (s *MemoryStore) Subject(ctx context.Context, key ipdr.SubjectKey) (*ipdr.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ipdr.ErrSubjectNotFound, key)
	}
	return subject, nil
}

// SuspiciousSubjects implements SubjectProvider.
func (s *MemoryStore) SuspiciousSubjects(ctx context.Context) ([]*ipdr.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ipdr.Subject
	for _, subject := range s.subjects {
		if subject.IsSuspicious {
			out = append(out, subject)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// RecordsBySubject implements RecordProvider.
func (s *MemoryStore) RecordsBySubject(ctx context.Context, subject ipdr.SubjectKey) ([]*ipdr.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.records[subject]
	out := make([]*ipdr.SessionRecord, len(records))
	copy(out, records)
	return out, nil
}

// RecordsByTimeRange implements RecordProvider.
func (s *MemoryStore) RecordsByTimeRange(ctx context.Context, from, to time.Time) ([]*ipdr.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ipdr.SessionRecord
	for _, records := range s.records {
		for _, rec := range records {
			if !rec.StartTime.Before(from) && !rec.EndTime.After(to) {
				out = append(out, rec)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// Destinations implements cluster.PartnerProvider.
func (s *MemoryStore) Destinations(ctx context.Context, subject ipdr.SubjectKey) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for _, rec := range s.records[subject] {
		if ipdr.ValidateRecord(rec) != nil {
			continue
		}
		out[rec.Destination.NormalizedAddress()] = struct{}{}
	}
	return out, nil
}

// SubjectsByDestination implements cluster.PartnerProvider.
func (s *MemoryStore) SubjectsByDestination(ctx context.Context, destination string) ([]ipdr.SubjectKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjects := s.byDestination[destination]
	out := make([]ipdr.SubjectKey, 0, len(subjects))
	for key := range subjects {
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// ApplySuspicion implements SuspicionApplier: the external persistence step
// for a core-produced recommendation.
func (s *MemoryStore) ApplySuspicion(ctx context.Context, update ipdr.SuspicionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	subject, ok := s.subjects[update.Subject]
	if !ok {
		return fmt.Errorf("%w: %s", ipdr.ErrSubjectNotFound, update.Subject)
	}
	subject.IsSuspicious = true
	for _, reason := range update.Reasons {
		if !containsString(subject.SuspicionReasons, reason) {
			subject.SuspicionReasons = append(subject.SuspicionReasons, reason)
		}
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
