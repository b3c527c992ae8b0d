package tracker

import (
	"sort"
	"strings"
	"time"

	"github.com/hako/durafmt"
)

// ///////////////////////////////////////////////
// Projection Types
// ///////////////////////////////////////////////

// Order selects how [Project] sorts its lists.
type Order string

const (
	// OrderSession lists online moderators by session start (longest running
	// first) and seen-today moderators by last sighting (most recent first).
	OrderSession Order = "session"
	// OrderAlphabetical lists both blocks by canonical name.
	OrderAlphabetical Order = "alphabetical"
)

// ProjectOptions controls how a [Store] is rendered.
type ProjectOptions struct {
	// Location is the zone clock times are shown in. Nil means UTC.
	Location *time.Location
	// Order selects the sort order; the zero value means [OrderSession].
	Order Order
	// UndercoverLabel is appended to the name of undercover moderators.
	UndercoverLabel string
	// OnlineMarker is appended in the seen-today block for moderators that
	// are still online.
	OnlineMarker string
	// EmptyOnline replaces the online block when nobody is online.
	EmptyOnline string
	// EmptySeen replaces the seen-today block when nobody was seen.
	EmptySeen string
}

// Line is one rendered moderator entry.
type Line struct {
	Name   string
	Record Record
	Text   string
}

// Summary is the rendered view of a [Store].
type Summary struct {
	Online        []Line
	SeenToday     []Line
	OnlineText    string
	SeenTodayText string
}

// shortUnits renders durations as "1 h 5 m".
var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:y,wk:wk,d:d,h:h,m:m,s:s,ms:ms,us:us")

// ///////////////////////////////////////////////
// Projection
// ///////////////////////////////////////////////

// Project renders s. It does not modify s.
func Project(s *Store, opts ProjectOptions) Summary {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.EmptyOnline == "" {
		opts.EmptyOnline = "no one online"
	}
	if opts.EmptySeen == "" {
		opts.EmptySeen = "none"
	}

	var online, seen []Line
	for name, r := range s.Moderators {
		seen = append(seen, Line{Name: name, Record: *r})
		if r.Online {
			online = append(online, Line{Name: name, Record: *r})
		}
	}

	if opts.Order == OrderAlphabetical {
		sortByName(online)
		sortByName(seen)
	} else {
		sort.Slice(online, func(i, j int) bool {
			a, b := online[i], online[j]
			if !a.Record.FirstSeen.Equal(b.Record.FirstSeen) {
				return a.Record.FirstSeen.Before(b.Record.FirstSeen)
			}
			return a.Name < b.Name
		})
		sort.Slice(seen, func(i, j int) bool {
			a, b := seen[i], seen[j]
			if !a.Record.LastSeen.Equal(b.Record.LastSeen) {
				return a.Record.LastSeen.After(b.Record.LastSeen)
			}
			return a.Name < b.Name
		})
	}

	for i := range online {
		online[i].Text = formatLine(online[i], opts, false)
	}
	for i := range seen {
		seen[i].Text = formatLine(seen[i], opts, true)
	}

	return Summary{
		Online:        online,
		SeenToday:     seen,
		OnlineText:    joinLines(online, opts.EmptyOnline),
		SeenTodayText: joinLines(seen, opts.EmptySeen),
	}
}

// sortByName orders lines case-insensitively, falling back to the exact name
// so the order is total.
func sortByName(lines []Line) {
	sort.Slice(lines, func(i, j int) bool {
		a, b := strings.ToLower(lines[i].Name), strings.ToLower(lines[j].Name)
		if a != b {
			return a < b
		}
		return lines[i].Name < lines[j].Name
	})
}

// formatLine renders "name<label><marker> — 1 h 5 m (10:00–11:05)".
func formatLine(l Line, opts ProjectOptions, markOnline bool) string {
	var b strings.Builder
	b.WriteString(l.Name)
	if l.Record.Undercover {
		b.WriteString(opts.UndercoverLabel)
	}
	if markOnline && l.Record.Online {
		b.WriteString(opts.OnlineMarker)
	}
	b.WriteString(" — ")
	b.WriteString(FormatDuration(l.Record.Duration()))
	b.WriteString(" (")
	b.WriteString(l.Record.FirstSeen.In(opts.Location).Format("15:04"))
	b.WriteString("–")
	b.WriteString(l.Record.LastSeen.In(opts.Location).Format("15:04"))
	b.WriteString(")")
	return b.String()
}

// FormatDuration renders d in whole hours and minutes, e.g. "2 h 5 m".
// Anything under a minute (including negative values) renders as "0 m".
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)
	if d < time.Minute {
		return "0 m"
	}
	return durafmt.Parse(d).LimitFirstN(2).Format(shortUnits)
}

func joinLines(lines []Line, empty string) string {
	if len(lines) == 0 {
		return empty
	}
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, "\n")
}
