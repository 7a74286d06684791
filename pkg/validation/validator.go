package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	subjectKeyPattern = regexp.MustCompile(`^\d{12}$`)
	phonePattern      = regexp.MustCompile(`^[6-9]\d{9}$`)
)

func init() {
	validate = validator.New()
}

// RecordRequest is the shape an ingestion row must satisfy before it is
// promoted to a SessionRecord. Timestamps are validated separately because
// their ordering constraint spans two fields.
type RecordRequest struct {
	SubjectKey         string `validate:"required,len=12,numeric"`
	SourceAddress      string `validate:"required,ip"`
	SourcePort         int    `validate:"min=0,max=65535"`
	DestinationAddress string `validate:"required,ip"`
	DestinationPort    int    `validate:"min=0,max=65535"`
	Protocol           string `validate:"required,max=16"`
	BytesUploaded      int64  `validate:"min=0"`
	BytesDownloaded    int64  `validate:"min=0"`
	Service            string `validate:"required,max=64"`
}

// ValidateRecordRequest validates an ingestion row.
func ValidateRecordRequest(req *RecordRequest) error {
	if req == nil {
		return errors.New("record request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateSubjectKey checks the fixed 12-digit subject key format.
func ValidateSubjectKey(key string) error {
	if !subjectKeyPattern.MatchString(key) {
		return fmt.Errorf("subject key %q must be exactly 12 digits", key)
	}
	return nil
}

// ValidatePhone checks a 10-digit subscriber phone number. An empty phone is
// allowed; the profile field is optional.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("phone %q is not a valid 10-digit subscriber number", phone)
	}
	return nil
}

// formatValidationError converts validator/v10 errors into compact,
// field-prefixed messages.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %q constraint", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}
