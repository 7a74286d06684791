// Package ingest parses IPDR session-record files into the domain model.
// Parsing follows the same skip-and-continue policy as aggregation: a
// malformed row is counted and skipped, never aborts the batch.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/dmistry/ipdrlens/pkg/ipdr"
	"github.com/dmistry/ipdrlens/pkg/logging"
	"github.com/dmistry/ipdrlens/pkg/validation"
)

// csvColumns is the expected header of an IPDR export, in order.
var csvColumns = []string{
	"SubjectKey", "DeviceID", "StartTime", "EndTime",
	"SourceIP", "SourcePort", "DestinationIP", "DestinationPort",
	"Protocol", "BytesUpload", "BytesDownload", "Service", "AppName",
}

// Batch is the outcome of parsing one input.
type Batch struct {
	// ID identifies the batch for audit trails.
	ID      string
	Records []*ipdr.SessionRecord

	// Skipped counts rows rejected by structural validation.
	Skipped int
	// Errors holds one error per skipped row, capped at MaxErrors.
	Errors []error
}

// MaxErrors bounds how many per-row errors a batch retains.
const MaxErrors = 100

// Parser reads IPDR CSV exports.
type Parser struct {
	logger logging.Logger
}

// NewParser creates a Parser. A nil logger disables logging.
func NewParser(logger logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Parser{logger: logger.With(logging.Component("ingest"))}
}

// ParseFile opens and parses a CSV file. Files ending in .sz are
// transparently decompressed as a snappy stream.
func (p *Parser) ParseFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".sz") {
		r = snappy.NewReader(f)
	}
	return p.Parse(r)
}

// Parse reads CSV rows from r. The first row must be the header.
func (p *Parser) Parse(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	batch := &Batch{ID: uuid.NewString()}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// CSV-level damage (wrong field count, bad quoting) skips
			// the row like any other malformed record.
			batch.skip(fmt.Errorf("row %d: %w", len(batch.Records)+batch.Skipped+2, err))
			continue
		}

		rec, err := parseRow(row)
		if err != nil {
			batch.skip(err)
			continue
		}
		batch.Records = append(batch.Records, rec)
	}

	p.logger.Info("batch parsed",
		logging.String("batch", batch.ID),
		logging.Count(len(batch.Records)),
		logging.Skipped(batch.Skipped),
	)
	return batch, nil
}

func (b *Batch) skip(err error) {
	b.Skipped++
	if len(b.Errors) < MaxErrors {
		b.Errors = append(b.Errors, err)
	}
}

func checkHeader(header []string) error {
	if len(header) != len(csvColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(csvColumns), len(header))
	}
	for i, want := range csvColumns {
		if !strings.EqualFold(strings.TrimSpace(header[i]), want) {
			return fmt.Errorf("column %d: expected %q, got %q", i, want, header[i])
		}
	}
	return nil
}

func parseRow(row []string) (*ipdr.SessionRecord, error) {
	start, err := parseTime(row[2])
	if err != nil {
		return nil, fmt.Errorf("StartTime: %w", err)
	}
	end, err := parseTime(row[3])
	if err != nil {
		return nil, fmt.Errorf("EndTime: %w", err)
	}

	srcPort, err := strconv.Atoi(row[5])
	if err != nil {
		return nil, fmt.Errorf("SourcePort: %w", err)
	}
	dstPort, err := strconv.Atoi(row[7])
	if err != nil {
		return nil, fmt.Errorf("DestinationPort: %w", err)
	}
	up, err := strconv.ParseInt(row[9], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("BytesUpload: %w", err)
	}
	down, err := strconv.ParseInt(row[10], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("BytesDownload: %w", err)
	}

	req := &validation.RecordRequest{
		SubjectKey:         strings.TrimSpace(row[0]),
		SourceAddress:      strings.TrimSpace(row[4]),
		SourcePort:         srcPort,
		DestinationAddress: strings.TrimSpace(row[6]),
		DestinationPort:    dstPort,
		Protocol:           strings.TrimSpace(row[8]),
		BytesUploaded:      up,
		BytesDownloaded:    down,
		Service:            strings.TrimSpace(row[11]),
	}
	if err := validation.ValidateRecordRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ipdr.ErrMalformedRecord, err)
	}

	appName := strings.TrimSpace(row[12])
	if appName == "" {
		appName = "Unknown"
	}

	rec := &ipdr.SessionRecord{
		SubjectKey:    ipdr.SubjectKey(req.SubjectKey),
		DeviceID:      strings.TrimSpace(row[1]),
		StartTime:     start,
		EndTime:       end,
		Source:        ipdr.Endpoint{Address: req.SourceAddress, Port: req.SourcePort},
		Destination:   ipdr.Endpoint{Address: req.DestinationAddress, Port: req.DestinationPort},
		Protocol:      req.Protocol,
		BytesUploaded: up,
		BytesDownload: down,
		Service:       req.Service,
		AppName:       appName,
	}
	if err := ipdr.ValidateRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
