package provider

import (
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		form string
		want Kind
	}{
		{"8-K", KindEvent},
		{"8-K/A", KindEvent},
		{"10-K", KindPeriodic},
		{"10-q", KindPeriodic},
		{"DEF 14A", KindGovernance},
		{"DEFM14A", KindGovernance},
		{"PRE 14A", KindGovernance},
		{"EX-99.1", KindExhibit},
		{"ex-3.2", KindExhibit},
		{"S-1", KindOther},
	}
	for _, tt := range tests {
		if got := KindOf(tt.form); got != tt.want {
			t.Errorf("KindOf(%q) = %q, want %q", tt.form, got, tt.want)
		}
	}
}

func TestIsPressRelease(t *testing.T) {
	for form, want := range map[string]bool{
		"EX-99": true, "EX-99.1": true, "ex-99.2": true, " EX-99.10 ": true,
		"EX-990": false, "EX-9.9": false, "EX-3.1": false, "8-K": false,
	} {
		if got := IsPressRelease(form); got != want {
			t.Errorf("IsPressRelease(%q) = %v, want %v", form, got, want)
		}
	}
}

func TestDateRange(t *testing.T) {
	day := time.Date(2025, 3, 4, 15, 30, 0, 0, time.UTC)
	r := Around(day, 7)
	tests := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2025, 2, 25, 23, 59, 0, 0, time.UTC), true},
		{time.Date(2025, 2, 24, 12, 0, 0, 0, time.UTC), false},
		{time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.t); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.t, got, tt.want)
		}
	}

	if s := Since(day, 0); !s.Contains(day) || s.Contains(day.AddDate(0, 0, -1)) {
		t.Error("zero-day Since should contain only the day itself")
	}
}

func TestSortAndMatch(t *testing.T) {
	d1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	locs := []Locator{
		{DocumentID: "c", FilingDate: d2},
		{DocumentID: "b", FilingDate: d1},
		{DocumentID: "a", FilingDate: d1},
	}
	Sort(locs)
	if locs[0].DocumentID != "a" || locs[1].DocumentID != "b" || locs[2].DocumentID != "c" {
		t.Errorf("order = %s %s %s", locs[0].DocumentID, locs[1].DocumentID, locs[2].DocumentID)
	}

	if !MatchForm("def 14a", []string{"DEF 14A"}) || MatchForm("8-K", []string{"10-K"}) || !MatchForm("8-K", nil) {
		t.Error("MatchForm mismatch")
	}
}
