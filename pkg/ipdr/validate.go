package ipdr

import (
	"net/netip"
	"regexp"
)

var subjectKeyPattern = regexp.MustCompile(`^\d{12}$`)

// ValidSubjectKey reports whether the key matches the fixed 12-digit format.
func ValidSubjectKey(key SubjectKey) bool {
	return subjectKeyPattern.MatchString(string(key))
}

// ValidateRecord performs the structural checks that gate a record's entry
// into aggregation. Errors satisfy errors.Is(err, ErrMalformedRecord).
func ValidateRecord(r *SessionRecord) error {
	if r == nil {
		return malformed("", "record", "nil record")
	}
	if !ValidSubjectKey(r.SubjectKey) {
		return malformed(r.SubjectKey, "subject_key", "must be exactly 12 digits")
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return malformed(r.SubjectKey, "timestamps", "start and end times are required")
	}
	if r.EndTime.Before(r.StartTime) {
		return malformed(r.SubjectKey, "end_time", "end time before start time")
	}
	if r.BytesUploaded < 0 {
		return malformed(r.SubjectKey, "bytes_uploaded", "negative byte count")
	}
	if r.BytesDownload < 0 {
		return malformed(r.SubjectKey, "bytes_downloaded", "negative byte count")
	}
	if err := validateEndpoint(r.SubjectKey, "source", r.Source); err != nil {
		return err
	}
	if err := validateEndpoint(r.SubjectKey, "destination", r.Destination); err != nil {
		return err
	}
	return nil
}

func validateEndpoint(subject SubjectKey, field string, ep Endpoint) error {
	if _, err := netip.ParseAddr(ep.Address); err != nil {
		return malformed(subject, field, "invalid address "+ep.Address)
	}
	if ep.Port < 0 || ep.Port > 65535 {
		return malformed(subject, field, "port out of range")
	}
	return nil
}
