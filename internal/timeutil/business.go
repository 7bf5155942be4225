package timeutil

import (
	"time"
)

// Business is the location all route dates are recorded in (Arabia Standard Time, UTC+3).
var Business *time.Location

func init() {
	var err error
	Business, err = time.LoadLocation("Asia/Riyadh")
	if err != nil {
		// Fallback: create fixed zone if tzdata is not available
		Business = time.FixedZone("AST", 3*60*60)
	}
}

// Now returns the current time in the business location
func Now() time.Time {
	return time.Now().In(Business)
}

// Today returns the current business date as YYYY-MM-DD
func Today() string {
	return Now().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD route date in the business location
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, Business)
}

// ValidDate reports whether value is a well-formed route date
func ValidDate(value string) bool {
	_, err := ParseDate(value)
	return err == nil
}

// PreviousDay returns the calendar day before the given route date
func PreviousDay(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(DateLayout), nil
}

// StartOfDay returns the start of day (00:00:00) in the business location for the given time
func StartOfDay(t time.Time) time.Time {
	local := t.In(Business)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Business)
}

const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
	DisplayLayout  = "02 Jan 2006, 03:04 PM"
)
