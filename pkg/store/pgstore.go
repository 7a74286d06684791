package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

// PGStore is a PostgreSQL-backed record store. It satisfies the same
// provider capabilities as MemoryStore, so investigations run unchanged
// against either.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to PostgreSQL and ensures the schema exists.
func NewPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS subjects (
			key                TEXT PRIMARY KEY,
			name               TEXT NOT NULL,
			phone              TEXT NOT NULL DEFAULT '',
			home_lat           DOUBLE PRECISION,
			home_lon           DOUBLE PRECISION,
			assigned_ips       TEXT[] NOT NULL DEFAULT '{}',
			usual_active_hours INT[]  NOT NULL DEFAULT '{}',
			is_suspicious      BOOLEAN NOT NULL DEFAULT FALSE,
			suspicion_reasons  TEXT[] NOT NULL DEFAULT '{}'
		);

		CREATE TABLE IF NOT EXISTS session_records (
			id                  BIGSERIAL PRIMARY KEY,
			subject_key         TEXT NOT NULL,
			device_id           TEXT NOT NULL DEFAULT '',
			start_time          TIMESTAMPTZ NOT NULL,
			end_time            TIMESTAMPTZ NOT NULL,
			source_address      TEXT NOT NULL,
			source_port         INT  NOT NULL,
			destination_address TEXT NOT NULL,
			destination_port    INT  NOT NULL,
			protocol            TEXT NOT NULL,
			bytes_uploaded      BIGINT NOT NULL,
			bytes_downloaded    BIGINT NOT NULL,
			service             TEXT NOT NULL,
			app_name            TEXT NOT NULL DEFAULT 'Unknown'
		);

		CREATE INDEX IF NOT EXISTS idx_session_records_subject
			ON session_records (subject_key);
		CREATE INDEX IF NOT EXISTS idx_session_records_destination
			ON session_records (lower(destination_address));
		CREATE INDEX IF NOT EXISTS idx_session_records_start
			ON session_records (start_time);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutSubject upserts a subject profile.
func (s *PGStore) PutSubject(ctx context.Context, subject *ipdr.Subject) error {
	if subject == nil || !ipdr.ValidSubjectKey(subject.Key) {
		return fmt.Errorf("%w: invalid subject profile", ipdr.ErrMalformedRecord)
	}
	var lat, lon *float64
	if subject.HomeLocation != nil {
		lat, lon = &subject.HomeLocation.Latitude, &subject.HomeLocation.Longitude
	}
	query := `
		INSERT INTO subjects (key, name, phone, home_lat, home_lon, assigned_ips, usual_active_hours, is_suspicious, suspicion_reasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			home_lat = EXCLUDED.home_lat,
			home_lon = EXCLUDED.home_lon,
			assigned_ips = EXCLUDED.assigned_ips,
			usual_active_hours = EXCLUDED.usual_active_hours
	`
	_, err := s.pool.Exec(ctx, query,
		string(subject.Key), subject.Name, subject.Phone, lat, lon,
		subject.AssignedIPs, subject.UsualActiveHours,
		subject.IsSuspicious, subject.SuspicionReasons,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subject: %w", err)
	}
	return nil
}

// InsertRecords bulk-loads session records through the COPY protocol.
func (s *PGStore) InsertRecords(ctx context.Context, records []*ipdr.SessionRecord) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		rows = append(rows, []any{
			string(rec.SubjectKey), rec.DeviceID, rec.StartTime, rec.EndTime,
			rec.Source.Address, rec.Source.Port,
			rec.Destination.Address, rec.Destination.Port,
			rec.Protocol, rec.BytesUploaded, rec.BytesDownload,
			rec.Service, rec.AppName,
		})
	}

	copied, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"session_records"},
		[]string{
			"subject_key", "device_id", "start_time", "end_time",
			"source_address", "source_port", "destination_address", "destination_port",
			"protocol", "bytes_uploaded", "bytes_downloaded", "service", "app_name",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return copied, fmt.Errorf("bulk insert failed: %w", err)
	}
	return copied, nil
}

// Subject implements SubjectProvider.
func (s *PGStore) Subject(ctx context.Context, key ipdr.SubjectKey) (*ipdr.Subject, error) {
	query := `
		SELECT key, name, phone, home_lat, home_lon, assigned_ips, usual_active_hours, is_suspicious, suspicion_reasons
		FROM subjects WHERE key = $1
	`
	subject := &ipdr.Subject{}
	var keyStr string
	var lat, lon *float64
	err := s.pool.QueryRow(ctx, query, string(key)).Scan(
		&keyStr, &subject.Name, &subject.Phone, &lat, &lon,
		&subject.AssignedIPs, &subject.UsualActiveHours,
		&subject.IsSuspicious, &subject.SuspicionReasons,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ipdr.ErrSubjectNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	subject.Key = ipdr.SubjectKey(keyStr)
	if lat != nil && lon != nil {
		subject.HomeLocation = &ipdr.Location{Latitude: *lat, Longitude: *lon}
	}
	return subject, nil
}

// SuspiciousSubjects implements SubjectProvider.
func (s *PGStore) SuspiciousSubjects(ctx context.Context) ([]*ipdr.Subject, error) {
	query := `
		SELECT key, name, phone, home_lat, home_lon, assigned_ips, usual_active_hours, is_suspicious, suspicion_reasons
		FROM subjects WHERE is_suspicious ORDER BY key
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list suspicious subjects: %w", err)
	}
	defer rows.Close()

	var out []*ipdr.Subject
	for rows.Next() {
		subject := &ipdr.Subject{}
		var keyStr string
		var lat, lon *float64
		if err := rows.Scan(
			&keyStr, &subject.Name, &subject.Phone, &lat, &lon,
			&subject.AssignedIPs, &subject.UsualActiveHours,
			&subject.IsSuspicious, &subject.SuspicionReasons,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subject.Key = ipdr.SubjectKey(keyStr)
		if lat != nil && lon != nil {
			subject.HomeLocation = &ipdr.Location{Latitude: *lat, Longitude: *lon}
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

// RecordsBySubject implements RecordProvider.
func (s *PGStore) RecordsBySubject(ctx context.Context, subject ipdr.SubjectKey) ([]*ipdr.SessionRecord, error) {
	query := recordSelect + ` WHERE subject_key = $1 ORDER BY start_time`
	rows, err := s.pool.Query(ctx, query, string(subject))
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RecordsByTimeRange implements RecordProvider.
func (s *PGStore) RecordsByTimeRange(ctx context.Context, from, to time.Time) ([]*ipdr.SessionRecord, error) {
	query := recordSelect + ` WHERE start_time >= $1 AND end_time <= $2 ORDER BY start_time`
	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Destinations implements cluster.PartnerProvider.
func (s *PGStore) Destinations(ctx context.Context, subject ipdr.SubjectKey) (map[string]struct{}, error) {
	query := `SELECT DISTINCT lower(destination_address) FROM session_records WHERE subject_key = $1`
	rows, err := s.pool.Query(ctx, query, string(subject))
	if err != nil {
		return nil, fmt.Errorf("failed to query destinations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var dest string
		if err := rows.Scan(&dest); err != nil {
			return nil, err
		}
		out[dest] = struct{}{}
	}
	return out, rows.Err()
}

// SubjectsByDestination implements cluster.PartnerProvider.
func (s *PGStore) SubjectsByDestination(ctx context.Context, destination string) ([]ipdr.SubjectKey, error) {
	query := `SELECT DISTINCT subject_key FROM session_records WHERE lower(destination_address) = lower($1) ORDER BY subject_key`
	rows, err := s.pool.Query(ctx, query, destination)
	if err != nil {
		return nil, fmt.Errorf("failed to query subjects by destination: %w", err)
	}
	defer rows.Close()

	var out []ipdr.SubjectKey
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, ipdr.SubjectKey(key))
	}
	return out, rows.Err()
}

// ApplySuspicion implements SuspicionApplier.
func (s *PGStore) ApplySuspicion(ctx context.Context, update ipdr.SuspicionUpdate) error {
	query := `
		UPDATE subjects SET
			is_suspicious = TRUE,
			suspicion_reasons = (
				SELECT array_agg(DISTINCT reason)
				FROM unnest(suspicion_reasons || $2::text[]) AS reason
			)
		WHERE key = $1
	`
	tag, err := s.pool.Exec(ctx, query, string(update.Subject), update.Reasons)
	if err != nil {
		return fmt.Errorf("failed to apply suspicion update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ipdr.ErrSubjectNotFound, update.Subject)
	}
	return nil
}

const recordSelect = `
	SELECT subject_key, device_id, start_time, end_time,
	       source_address, source_port, destination_address, destination_port,
	       protocol, bytes_uploaded, bytes_downloaded, service, app_name
	FROM session_records
`

func scanRecords(rows pgx.Rows) ([]*ipdr.SessionRecord, error) {
	var out []*ipdr.SessionRecord
	for rows.Next() {
		rec := &ipdr.SessionRecord{}
		var key string
		if err := rows.Scan(
			&key, &rec.DeviceID, &rec.StartTime, &rec.EndTime,
			&rec.Source.Address, &rec.Source.Port,
			&rec.Destination.Address, &rec.Destination.Port,
			&rec.Protocol, &rec.BytesUploaded, &rec.BytesDownload,
			&rec.Service, &rec.AppName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.SubjectKey = ipdr.SubjectKey(key)
		out = append(out, rec)
	}
	return out, rows.Err()
}
