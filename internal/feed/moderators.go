package feed

import (
	"context"
	"regexp"
	"strings"
)

var (
	// cellRe matches one source-view line cell of the presence page.
	cellRe = regexp.MustCompile(`(?i)<td[^>]*class="blob-code[^"]*"[^>]*>([\s\S]*?)</td>`)
	tagRe  = regexp.MustCompile(`<[^>]+>`)

	entities = strings.NewReplacer(
		"&nbsp;", " ",
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
	)
)

// Moderators fetches the presence page at url and returns the raw names it
// lists, in page order.
func (c *Client) Moderators(ctx context.Context, url string) ([]string, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParseModeratorPage(string(body)), nil
}

// ParseModeratorPage extracts one raw name per non-empty line cell. Markup is
// stripped, the common entities are decoded and surrounding whitespace is
// trimmed. A page without line cells yields an empty list.
func ParseModeratorPage(html string) []string {
	matches := cellRe.FindAllStringSubmatch(html, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		text := tagRe.ReplaceAllString(m[1], "")
		text = strings.TrimSpace(entities.Replace(text))
		if text != "" {
			names = append(names, text)
		}
	}
	return names
}
