// Package tracker turns repeated "who is online right now" samples into
// per-moderator session intervals for one calendar day.
//
// The package provides four pieces:
//
//   - [Normalize]: raw display name to canonical name plus undercover flag.
//   - [Store], [Load], [Save]: the day-keyed session snapshot on disk.
//   - [Reconcile]: applies one sample to a [Store].
//   - [Project]: renders a [Store] into the online and seen-today text blocks.
//
// A [Store] is owned by exactly one polling cycle at a time and is not safe
// for concurrent use.
package tracker

import (
	"regexp"
	"strings"
)

// ///////////////////////////////////////////////
// Name Normalization
// ///////////////////////////////////////////////

var (
	// suffixRe matches "name-undercover", "name_undercover", "name undercover"
	// and "nameundercover".
	suffixRe = regexp.MustCompile(`(?i)^(.+?)[-_ ]?undercover$`)
	// wrappedRe matches "name (undercover)", "name [undercover]" and
	// "name -undercover-".
	wrappedRe = regexp.MustCompile(`(?i)^(.+?)\s*[(\[-]?undercover[)\]-]?$`)
)

// Normalize strips an undercover marker from a raw display name and returns
// the canonical name with the undercover flag. Names without a marker are
// returned trimmed with undercover false. Normalize never fails; empty input
// yields an empty name.
func Normalize(raw string) (name string, undercover bool) {
	s := strings.TrimSpace(raw)
	if m := suffixRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := wrappedRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return s, false
}
