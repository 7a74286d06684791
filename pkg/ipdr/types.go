package ipdr

import (
	"fmt"
	"strings"
	"time"
)

// SubjectKey identifies an investigated subject. Keys are fixed-format
// 12-digit numeric identifiers issued by the external record store.
type SubjectKey string

// Endpoint is one side of a communication session.
type Endpoint struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// String renders the endpoint as address:port.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// NormalizedAddress returns the case-normalized address, the identity used
// for port-insensitive partner grouping.
func (e Endpoint) NormalizedAddress() string {
	return strings.ToLower(strings.TrimSpace(e.Address))
}

// Location is a geographic coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SessionRecord is one logged communication session. Records are immutable
// once produced by the ingestion path; Duration is always derived from the
// timestamps, never stored independently.
type SessionRecord struct {
	SubjectKey SubjectKey `json:"subject_key"`
	DeviceID   string     `json:"device_id,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`

	Source      Endpoint `json:"source"`
	Destination Endpoint `json:"destination"`

	Protocol      string `json:"protocol"`
	BytesUploaded int64  `json:"bytes_uploaded"`
	BytesDownload int64  `json:"bytes_downloaded"`
	Service       string `json:"service"`
	AppName       string `json:"app_name,omitempty"`
}

// Duration returns the session length. Zero-duration sessions are valid.
func (r *SessionRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// TotalBytes returns uploaded plus downloaded bytes.
func (r *SessionRecord) TotalBytes() int64 {
	return r.BytesUploaded + r.BytesDownload
}

// Subject is the profile of an investigated individual. The core treats it
// as read-only input; suspicion-state changes are emitted as explicit
// SuspicionUpdate values and applied by an external persistence step.
type Subject struct {
	Key              SubjectKey `json:"key"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone,omitempty"`
	HomeLocation     *Location  `json:"home_location,omitempty"`
	AssignedIPs      []string   `json:"assigned_ips,omitempty"`
	UsualActiveHours []int      `json:"usual_active_hours,omitempty"`

	IsSuspicious     bool     `json:"is_suspicious"`
	SuspicionReasons []string `json:"suspicion_reasons,omitempty"`
}

// SuspicionUpdate is a recommended suspicion-state change for a subject.
// The analytics core never mutates subject state itself.
type SuspicionUpdate struct {
	Subject SubjectKey `json:"subject"`
	Reasons []string   `json:"reasons"`
}
