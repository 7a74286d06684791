// Package store supplies the record-source capabilities the analytics core
// consumes. The core only reads; the single write path is the explicit
// application of a SuspicionUpdate recommendation.
package store

import (
	"context"
	"time"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// RecordProvider yields session records for a subject or a time range.
type RecordProvider interface {
	RecordsBySubject(ctx context.Context, subject ipdr.SubjectKey) ([]*ipdr.SessionRecord, error)
	RecordsByTimeRange(ctx context.Context, from, to time.Time) ([]*ipdr.SessionRecord, error)
}

// SubjectProvider yields subject profiles. Subject returns
// ipdr.ErrSubjectNotFound when the identity is unknown.
type SubjectProvider interface {
	Subject(ctx context.Context, key ipdr.SubjectKey) (*ipdr.Subject, error)
	SuspiciousSubjects(ctx context.Context) ([]*ipdr.Subject, error)
}

// SuspicionApplier persists a suspicion recommendation produced by the
// analytics core. Kept separate so the core itself stays side-effect-free.
type SuspicionApplier interface {
	ApplySuspicion(ctx context.Context, update ipdr.SuspicionUpdate) error
}
