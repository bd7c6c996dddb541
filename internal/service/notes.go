package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxCancelReasonLength = 500
	MaxNotesLength        = 1000
	truncationMarker      = "…"
)

func cancellationEntry(at time.Time, actor, reason string) string {
	return fmt.Sprintf("[CANCELLED %s by %s] %s", at.Format("2006-01-02 15:04"), actor, reason)
}

// appendNote adds entry on a new line and keeps the result within limit runes.
// Oldest text is dropped from the front first; an entry that alone exceeds
// the limit is cut at its end.
func appendNote(existing, entry string, limit int) string {
	entryRunes := []rune(entry)
	if len(entryRunes) >= limit {
		return string(entryRunes[:limit])
	}

	combined := entry
	if strings.TrimSpace(existing) != "" {
		combined = existing + "\n" + entry
	}
	if utf8.RuneCountInString(combined) <= limit {
		return combined
	}

	runes := []rune(combined)
	keep := limit - utf8.RuneCountInString(truncationMarker)
	return truncationMarker + string(runes[len(runes)-keep:])
}
