package service

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestAppendNote(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		entry    string
		limit    int
		want     string
	}{
		{"empty existing", "", "reason", 10, "reason"},
		{"blank existing", "  \n ", "reason", 10, "reason"},
		{"fits", "ab", "cd", 10, "ab\ncd"},
		{"exactly at limit", "abc", "defgh", 9, "abc\ndefgh"},
		{"drops oldest text", strings.Repeat("x", 20), "reason", 10, "…xx\nreason"},
		{"entry alone too long", "old", "0123456789abc", 10, "0123456789"},
		{"entry equal to limit", "old", "0123456789", 10, "0123456789"},
		{"counts runes", "ééé", "ü", 5, "ééé\nü"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := appendNote(tt.existing, tt.entry, tt.limit)
			if got != tt.want {
				t.Errorf("appendNote(%q, %q, %d) = %q, want %q", tt.existing, tt.entry, tt.limit, got, tt.want)
			}
			if n := utf8.RuneCountInString(got); n > tt.limit {
				t.Errorf("result has %d runes, limit %d", n, tt.limit)
			}
		})
	}
}

func TestAppendNote_RepeatedCancellationsStayBounded(t *testing.T) {
	notes := ""
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		notes = appendNote(notes, cancellationEntry(at, "Alice", strings.Repeat("r", 60)), MaxNotesLength)
	}
	if n := utf8.RuneCountInString(notes); n != MaxNotesLength {
		t.Errorf("notes length = %d, want %d", n, MaxNotesLength)
	}
	if !strings.HasPrefix(notes, "…") {
		t.Errorf("notes should start with the truncation marker: %q", notes[:10])
	}
	if !strings.HasSuffix(notes, "[CANCELLED 2026-03-01 09:30 by Alice] "+strings.Repeat("r", 60)) {
		t.Errorf("latest entry missing at the end")
	}
}
