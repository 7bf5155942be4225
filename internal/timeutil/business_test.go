package timeutil

import (
	"testing"
	"time"
)

func TestPreviousDay(t *testing.T) {
	cases := map[string]string{
		"2024-03-01": "2024-02-29",
		"2024-01-01": "2023-12-31",
		"2024-06-15": "2024-06-14",
	}
	for in, want := range cases {
		got, err := PreviousDay(in)
		if err != nil {
			t.Fatalf("PreviousDay(%s): %v", in, err)
		}
		if got != want {
			t.Fatalf("PreviousDay(%s) = %s, want %s", in, got, want)
		}
	}
	if _, err := PreviousDay("15/06/2024"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestStartOfDayUsesBusinessZone(t *testing.T) {
	// 22:30 UTC is already the next day in Riyadh.
	utc := time.Date(2024, 6, 14, 22, 30, 0, 0, time.UTC)
	got := StartOfDay(utc).Format(DateLayout)
	if got != "2024-06-15" {
		t.Fatalf("expected 2024-06-15, got %s", got)
	}
	if !ValidDate(got) {
		t.Fatalf("%s should be valid", got)
	}
}
