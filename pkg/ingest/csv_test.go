package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/snappy"
)

const sampleHeader = "SubjectKey,DeviceID,StartTime,EndTime,SourceIP,SourcePort,DestinationIP,DestinationPort,Protocol,BytesUpload,BytesDownload,Service,AppName\n"

const sampleRows = sampleHeader +
	"123456789012,dev-1,2025-06-01T10:00:00Z,2025-06-01T10:05:00Z,10.0.0.1,40001,203.0.113.5,443,TCP,1000,5000,WhatsApp,WhatsApp Messenger\n" +
	"123456789012,dev-1,2025-06-01 11:00:00,2025-06-01 11:02:00,10.0.0.1,40002,198.51.100.7,443,UDP,200,300,Telegram,\n"

func TestParse_ValidRows(t *testing.T) {
	batch, err := NewParser(nil).Parse(strings.NewReader(sampleRows))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if batch.ID == "" {
		t.Error("batch should carry an ID")
	}
	if len(batch.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch.Records))
	}
	if batch.Skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", batch.Skipped)
	}

	first := batch.Records[0]
	if first.SubjectKey != "123456789012" || first.Destination.Address != "203.0.113.5" {
		t.Errorf("unexpected record: %+v", first)
	}
	if first.BytesUploaded != 1000 || first.BytesDownload != 5000 {
		t.Errorf("byte fields wrong: %+v", first)
	}
	if first.AppName != "WhatsApp Messenger" {
		t.Errorf("app name wrong: %q", first.AppName)
	}

	// Empty AppName defaults rather than skipping the row.
	if batch.Records[1].AppName != "Unknown" {
		t.Errorf("expected Unknown app name, got %q", batch.Records[1].AppName)
	}
}

func TestParse_SkipsMalformedRows(t *testing.T) {
	input := sampleHeader +
		"123456789012,dev-1,2025-06-01T10:00:00Z,2025-06-01T10:05:00Z,10.0.0.1,40001,203.0.113.5,443,TCP,1000,5000,WhatsApp,App\n" +
		"badkey,dev-1,2025-06-01T10:00:00Z,2025-06-01T10:05:00Z,10.0.0.1,40001,203.0.113.5,443,TCP,1000,5000,WhatsApp,App\n" +
		"123456789012,dev-1,not-a-time,2025-06-01T10:05:00Z,10.0.0.1,40001,203.0.113.5,443,TCP,1000,5000,WhatsApp,App\n" +
		"123456789012,dev-1,2025-06-01T10:00:00Z,2025-06-01T10:05:00Z,10.0.0.1,40001,203.0.113.5,443,TCP,-5,5000,WhatsApp,App\n" +
		"123456789012,dev-1,2025-06-01T10:00:00Z,2025-06-01T10:05:00Z,10.0.0.1,40001,not-an-ip,443,TCP,1000,5000,WhatsApp,App\n"

	batch, err := NewParser(nil).Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("malformed rows must not abort the batch: %v", err)
	}
	if len(batch.Records) != 1 {
		t.Errorf("expected 1 valid record, got %d", len(batch.Records))
	}
	if batch.Skipped != 4 {
		t.Errorf("expected 4 skipped, got %d", batch.Skipped)
	}
	if len(batch.Errors) != 4 {
		t.Errorf("expected 4 row errors, got %d", len(batch.Errors))
	}
}

func TestParse_WrongFieldCountRowIsSkipped(t *testing.T) {
	input := sampleHeader + "123456789012,dev-1,2025-06-01T10:00:00Z\n"
	batch, err := NewParser(nil).Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if batch.Skipped != 1 || len(batch.Records) != 0 {
		t.Errorf("short row should be skipped: %+v", batch)
	}
}

func TestParse_RejectsBadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"wrong column name", strings.Replace(sampleHeader, "SubjectKey", "Msisdn", 1)},
		{"too few columns", "SubjectKey,DeviceID\n"},
		{"empty input", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewParser(nil).Parse(strings.NewReader(tt.input)); err == nil {
				t.Error("expected header error, got nil")
			}
		})
	}
}

func TestParse_HeaderIsCaseInsensitive(t *testing.T) {
	input := strings.ToLower(sampleHeader) +
		"123456789012,dev-1,2025-06-01T10:00:00Z,2025-06-01T10:05:00Z,10.0.0.1,40001,203.0.113.5,443,TCP,1,1,WhatsApp,App\n"
	batch, err := NewParser(nil).Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("lowercase header should be accepted: %v", err)
	}
	if len(batch.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(batch.Records))
	}
}

func TestParseFile_SnappyCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.csv.sz")

	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write([]byte(sampleRows)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	batch, err := NewParser(nil).ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Errorf("expected 2 records from compressed file, got %d", len(batch.Records))
	}
}

func TestParseFile_Missing(t *testing.T) {
	if _, err := NewParser(nil).ParseFile("/nonexistent/records.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}
