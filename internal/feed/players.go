package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// countKeys are the fields that may carry the online player count, in
// preference order.
var countKeys = []string{"online_user", "players"}

// PlayerCount fetches the player-count endpoint at url. It returns nil when
// the response carries no usable count.
func (c *Client) PlayerCount(ctx context.Context, url string) (*int, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	return ParsePlayerCount(body)
}

// ParsePlayerCount decodes a player-count document. Each of [countKeys] is
// tried in turn; the first that holds a number or a numeric string wins.
func ParsePlayerCount(body []byte) (*int, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotJSON, snippet(body))
	}

	for _, key := range countKeys {
		if n, ok := toCount(doc[key]); ok {
			return &n, nil
		}
	}
	return nil, nil
}

// toCount reads v as a player count. Values that are not finite or fall
// outside [0, math.MaxInt32] are not counts.
func toCount(v any) (int, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// snippet returns at most the first 200 bytes of body for error messages.
func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		body = body[:limit]
	}
	return strings.TrimSpace(string(body))
}
