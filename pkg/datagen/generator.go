// Package datagen produces synthetic subjects and session records for
// demos and load exercises. Generation is deterministic for a fixed seed.
package datagen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
)

var (
	services  = []string{"WhatsApp", "YouTube", "Netflix", "Gmail", "Telegram", "Instagram", "BrowserHTTPS", "VoIP"}
	protocols = []string{"TCP", "UDP"}
	firstName = []string{"Aarav", "Vihaan", "Ananya", "Diya", "Ishaan", "Kavya", "Rohan", "Meera", "Arjun", "Priya"}
	lastName  = []string{"Sharma", "Patel", "Reddy", "Gupta", "Iyer", "Khan", "Singh", "Das", "Nair", "Bose"}
)

// Options tunes synthetic data generation.
type Options struct {
	Subjects           int
	SessionsPerSubject int
	// SuspiciousRatio is the share of subjects generated with anomalous
	// behavior: off-hours sessions, large transfers, wide fan-out.
	SuspiciousRatio float64
	// SharedDestinations controls how many destination addresses are
	// common across subjects, which drives cluster connectivity.
	SharedDestinations int
	Seed               int64
	Start              time.Time
}

// DefaultOptions returns a small but connected population.
func DefaultOptions() Options {
	return Options{
		Subjects:           25,
		SessionsPerSubject: 40,
		SuspiciousRatio:    0.15,
		SharedDestinations: 10,
		Seed:               1,
		Start:              time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Generator produces synthetic data.
type Generator struct {
	rng    *rand.Rand
	opts   Options
	shared []string
}

// New creates a Generator.
func New(opts Options) *Generator {
	rng := rand.New(rand.NewSource(opts.Seed))
	shared := make([]string, opts.SharedDestinations)
	for i := range shared {
		shared[i] = fmt.Sprintf("103.27.%d.%d", rng.Intn(200)+1, rng.Intn(250)+1)
	}
	return &Generator{rng: rng, opts: opts, shared: shared}
}

// Subjects generates the subject population.
func (g *Generator) Subjects() []*ipdr.Subject {
	out := make([]*ipdr.Subject, 0, g.opts.Subjects)
	for i := 0; i < g.opts.Subjects; i++ {
		key := g.subjectKey()
		out = append(out, &ipdr.Subject{
			Key:   key,
			Name:  firstName[g.rng.Intn(len(firstName))] + " " + lastName[g.rng.Intn(len(lastName))],
			Phone: g.phone(),
			HomeLocation: &ipdr.Location{
				Latitude:  8 + g.rng.Float64()*25,
				Longitude: 68 + g.rng.Float64()*20,
			},
			AssignedIPs:      []string{g.privateIP()},
			UsualActiveHours: activeHours(6, 23),
		})
	}
	return out
}

// Sessions generates records for one subject. The suspicious flag skews the
// distribution toward off-hours starts, heavy transfers, and wide fan-out.
func (g *Generator) Sessions(subject ipdr.SubjectKey, suspicious bool) []*ipdr.SessionRecord {
	deviceID := uuid.NewString()
	out := make([]*ipdr.SessionRecord, 0, g.opts.SessionsPerSubject)

	for i := 0; i < g.opts.SessionsPerSubject; i++ {
		day := g.rng.Intn(30)
		hour := 8 + g.rng.Intn(14)
		if suspicious && g.rng.Float64() < 0.5 {
			hour = []int{23, 0, 1, 2, 3, 4, 5}[g.rng.Intn(7)]
		}
		start := g.opts.Start.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour +
			time.Duration(g.rng.Intn(3600))*time.Second)
		duration := time.Duration(30+g.rng.Intn(3600)) * time.Second

		up := int64(g.rng.Intn(5 * 1024 * 1024))
		down := int64(g.rng.Intn(50 * 1024 * 1024))
		if suspicious && g.rng.Float64() < 0.25 {
			up = int64(120+g.rng.Intn(400)) * 1024 * 1024
		}

		out = append(out, &ipdr.SessionRecord{
			SubjectKey:    subject,
			DeviceID:      deviceID,
			StartTime:     start,
			EndTime:       start.Add(duration),
			Source:        ipdr.Endpoint{Address: g.privateIP(), Port: 1024 + g.rng.Intn(60000)},
			Destination:   ipdr.Endpoint{Address: g.destination(suspicious), Port: 443},
			Protocol:      protocols[g.rng.Intn(len(protocols))],
			BytesUploaded: up,
			BytesDownload: down,
			Service:       services[g.rng.Intn(len(services))],
			AppName:       "Unknown",
		})
	}
	return out
}

// Population generates subjects with their sessions in one call.
func (g *Generator) Population() ([]*ipdr.Subject, []*ipdr.SessionRecord) {
	subjects := g.Subjects()
	suspicious := int(float64(len(subjects)) * g.opts.SuspiciousRatio)

	var records []*ipdr.SessionRecord
	for i, s := range subjects {
		records = append(records, g.Sessions(s.Key, i < suspicious)...)
	}
	return subjects, records
}

func (g *Generator) destination(suspicious bool) string {
	// Shared destinations connect subjects into clusters; suspicious
	// subjects also fan out to many unique addresses.
	if suspicious && g.rng.Float64() < 0.6 {
		return fmt.Sprintf("45.%d.%d.%d", g.rng.Intn(200)+1, g.rng.Intn(250)+1, g.rng.Intn(250)+1)
	}
	if len(g.shared) > 0 && g.rng.Float64() < 0.5 {
		return g.shared[g.rng.Intn(len(g.shared))]
	}
	return fmt.Sprintf("104.%d.%d.%d", g.rng.Intn(200)+1, g.rng.Intn(250)+1, g.rng.Intn(250)+1)
}

func (g *Generator) subjectKey() ipdr.SubjectKey {
	digits := make([]byte, 12)
	for i := range digits {
		digits[i] = byte('0' + g.rng.Intn(10))
	}
	return ipdr.SubjectKey(digits)
}

func (g *Generator) phone() string {
	digits := make([]byte, 10)
	digits[0] = byte('6' + g.rng.Intn(4))
	for i := 1; i < 10; i++ {
		digits[i] = byte('0' + g.rng.Intn(10))
	}
	return string(digits)
}

func (g *Generator) privateIP() string {
	return fmt.Sprintf("10.%d.%d.%d", g.rng.Intn(250)+1, g.rng.Intn(250)+1, g.rng.Intn(250)+1)
}

func activeHours(from, to int) []int {
	out := make([]int, 0, to-from)
	for h := from; h < to; h++ {
		out = append(out, h)
	}
	return out
}
