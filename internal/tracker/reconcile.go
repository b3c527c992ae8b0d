package tracker

import (
	"log/slog"
	"time"

	"tools.zach/dev/modwatch/internal/logger"
)

// ///////////////////////////////////////////////
// Reconciliation
// ///////////////////////////////////////////////

// MergeSticky combines an existing flag with a new observation. The result
// only moves from false to true, never back.
func MergeSticky(existing, observed bool) bool {
	return existing || observed
}

// Reconcile applies one sample of raw online names taken at now to s.
//
// Moderators absent from the sample are marked offline with their timestamps
// frozen. A moderator present in the sample continues their session when
// they were online in the previous sample and starts a new one otherwise, so
// a single missed poll always splits a session. An empty sample marks
// everyone offline.
func Reconcile(s *Store, raw []string, now time.Time) {
	// Must be captured before the blanket reset below, otherwise every
	// moderator would look like a reconnect.
	wasOnline := make(map[string]bool, len(s.Moderators))
	for name, r := range s.Moderators {
		wasOnline[name] = r.Online
		r.Online = false
	}

	seen := make(map[string]bool, len(raw))
	for _, rawName := range raw {
		name, undercover := Normalize(rawName)
		if name == "" {
			continue
		}

		r, known := s.Moderators[name]
		switch {
		case seen[name]:
			// Same person listed twice in one sample, e.g. with and without
			// the marker.
			r.Undercover = MergeSticky(r.Undercover, undercover)
		case !known:
			s.Moderators[name] = &Record{
				FirstSeen:  now,
				LastSeen:   now,
				Undercover: undercover,
				Online:     true,
			}
			logger.Trace(slog.Default(), "session opened", "name", name, "undercover", undercover)
		case !wasOnline[name]:
			r.FirstSeen = now
			r.LastSeen = now
			r.Online = true
			r.Undercover = MergeSticky(r.Undercover, undercover)
			logger.Trace(slog.Default(), "session reopened", "name", name)
		default:
			r.LastSeen = now
			r.Online = true
			r.Undercover = MergeSticky(r.Undercover, undercover)
		}
		seen[name] = true
	}
}

// Filter returns the raw names whose canonical name is not ignored. Order is
// preserved. A nil ignore func keeps everything.
func Filter(raw []string, ignore func(name string) bool) []string {
	if ignore == nil {
		return raw
	}
	kept := make([]string, 0, len(raw))
	for _, rawName := range raw {
		name, _ := Normalize(rawName)
		if ignore(name) {
			continue
		}
		kept = append(kept, rawName)
	}
	return kept
}
