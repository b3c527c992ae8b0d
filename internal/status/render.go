// Package status turns a tracker summary and a player count into the webhook
// message shown in the channel.
package status

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"tools.zach/dev/modwatch/internal/tracker"
	"tools.zach/dev/modwatch/internal/webhook"
)

const (
	footerLayout = "02/01/2006 15:04:05"
	dateLayout   = "02 January 2006"
	isoLayout    = "2006-01-02T15:04:05.000Z"

	// blank stands in for an empty field value, which Discord rejects.
	blank = "\u200b"
)

// Display holds the configurable labels of the message.
type Display struct {
	Username         string
	Title            string
	Color            int
	OnlineCountLabel string
	OnlineHeading    string
	SeenHeading      string
	FooterPrefix     string
}

// Input is everything one render needs.
type Input struct {
	Summary tracker.Summary
	// Players is nil when the player feed gave no count.
	Players  *int
	Now      time.Time
	Location *time.Location
	Display  Display
}

// Build renders in as a single-embed message.
func Build(in Input) webhook.Message {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	local := in.Now.In(loc)
	d := in.Display

	count := "N/A"
	if in.Players != nil {
		count = humanize.Comma(int64(*in.Players))
	}

	fields := []webhook.Field{
		{Name: d.OnlineCountLabel + ": " + count, Value: blank},
		{Name: d.OnlineHeading, Value: in.Summary.OnlineText},
		{Name: d.SeenHeading + " (" + local.Format(dateLayout) + ")", Value: in.Summary.SeenTodayText},
	}
	for i := range fields {
		fields[i].Name = clip(fields[i].Name, webhook.MaxFieldName)
		fields[i].Value = clip(fields[i].Value, webhook.MaxFieldValue)
		if strings.TrimSpace(fields[i].Value) == "" {
			fields[i].Value = blank
		}
	}

	return webhook.Message{
		Username: d.Username,
		Embeds: []webhook.Embed{{
			Title:     d.Title,
			Color:     d.Color,
			Fields:    fields,
			Footer:    &webhook.Footer{Text: d.FooterPrefix + ": " + local.Format(footerLayout)},
			Timestamp: in.Now.UTC().Format(isoLayout),
		}},
	}
}

// clip shortens s to at most limit runes. When lines have to be dropped the
// cut happens at a line boundary and an ellipsis line marks it.
func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	const more = "…"
	budget := limit - utf8.RuneCountInString(more)

	if i := strings.LastIndexByte(truncateRunes(s, budget), '\n'); i > 0 {
		return s[:i] + "\n" + more
	}
	return truncateRunes(s, budget) + more
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
