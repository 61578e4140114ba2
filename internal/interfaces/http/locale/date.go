package locale

import (
	"strings"
	"time"

	"github.com/tourism/backoffice/internal/domain/shared"
)

// DateLayout is the day/month/year layout used by the back office
const DateLayout = "02/01/2006"

// ErrInvalidDate is returned for dates not in dd/mm/yyyy
var ErrInvalidDate = shared.NewDomainError("INVALID_DATE", "Date must be a valid dd/mm/yyyy date")

// ParseDate parses a dd/mm/yyyy date as midnight in loc
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseOptionalDate parses s, returning nil for an empty string
func ParseOptionalDate(s string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseDate(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IsDate reports whether s parses as a dd/mm/yyyy date
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, strings.TrimSpace(s))
	return err == nil
}

// FormatDate renders t as dd/mm/yyyy in loc
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}
