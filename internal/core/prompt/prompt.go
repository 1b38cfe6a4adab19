// Package prompt extracts business types and a location from a free-text
// discovery prompt using rule-based matching
package prompt

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"webgap/internal/core/categories"
	"webgap/internal/core/textnorm"
	perr "webgap/internal/platform/errors"
)

// Query is the structured form of a discovery prompt
type Query struct {
	BusinessTypes []string
	Location      string
	// RadiusKm is 0 when the prompt does not name a radius
	RadiusKm float64
}

var (
	radiusRe = regexp.MustCompile(`(?:within|in a radius of)\s+(\d+(?:\.\d+)?)\s*(?:km|kilometers|kilometres)`)

	// location markers, scanned right to left so trailing clauses win
	locationMarkers = []string{" in ", " near ", " around ", " close to ", " at "}

	fillerWords = map[string]bool{
		"find": true, "show": true, "list": true, "me": true, "all": true,
		"any": true, "the": true, "a": true, "an": true, "please": true,
		"businesses": true, "business": true, "places": true, "place": true,
		"shops": true, "without": true, "with": true, "no": true, "missing": true,
		"website": true, "websites": true, "that": true, "have": true, "don't": true,
		"dont": true, "lack": true, "lacking": true,
	}
)

// Parse extracts business types and a location from text.
// It fails with an input error when no location can be found, before any
// tiling or network work happens.
func Parse(text string) (Query, error) {
	norm := textnorm.Normalize(text)
	if norm == "" {
		return Query{}, perr.InvalidArgf("prompt must not be empty")
	}

	q := Query{}

	// radius phrase, removed from the working text once captured
	if m := radiusRe.FindStringSubmatch(norm); m != nil {
		q.RadiusKm, _ = strconv.ParseFloat(m[1], 64)
		norm = strings.Replace(norm, m[0], "", 1)
		norm = textnorm.Normalize(norm)
	}

	// rightmost location marker wins so "bars in soho near london" → "london"
	head := norm
	for i := len(norm); i > 0; {
		idx, markerLen := -1, 0
		for _, mk := range locationMarkers {
			if j := strings.LastIndex(norm[:i], mk); j > idx {
				idx, markerLen = j, len(mk)
			}
		}
		if idx < 0 {
			break
		}
		loc := trimTrailingClause(strings.TrimSpace(norm[idx+markerLen:]))
		if loc != "" {
			q.Location = loc
			head = norm[:idx]
			break
		}
		i = idx
	}
	if q.Location == "" {
		return Query{}, perr.InvalidArgf("prompt does not name a location")
	}

	q.BusinessTypes = extractTypes(head)
	if len(q.BusinessTypes) == 0 {
		return Query{}, perr.InvalidArgf("prompt does not name a business type")
	}
	return q, nil
}

// extractTypes scans for known category keywords, then falls back to the
// non-filler remainder as a single free-form type
func extractTypes(head string) []string {
	head = strings.TrimSpace(head)
	if head == "" {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	for _, key := range categories.Keys() {
		if !containsWord(head, key) {
			continue
		}
		c, ok := categories.Lookup(key)
		if !ok || seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		out = append(out, c.Key)
	}
	if len(out) > 0 {
		// deterministic order regardless of map iteration
		sort.Strings(out)
		return out
	}

	var rest []string
	for _, w := range strings.Fields(head) {
		if !fillerWords[w] {
			rest = append(rest, w)
		}
	}
	if len(rest) == 0 {
		return nil
	}
	return []string{strings.Join(rest, " ")}
}

// trimTrailingClause drops qualifier clauses after the location proper, e.g.
// "paris without a website" → "paris"
func trimTrailingClause(loc string) string {
	for _, cut := range []string{" without ", " with no ", " that ", " which ", " lacking ", " missing "} {
		if j := strings.Index(loc, cut); j >= 0 {
			loc = loc[:j]
		}
	}
	return strings.TrimSpace(loc)
}

// containsWord reports whether phrase appears in s on word boundaries
func containsWord(s, phrase string) bool {
	idx := 0
	for {
		j := strings.Index(s[idx:], phrase)
		if j < 0 {
			return false
		}
		j += idx
		beforeOK := j == 0 || s[j-1] == ' '
		after := j + len(phrase)
		afterOK := after == len(s) || s[after] == ' '
		if beforeOK && afterOK {
			return true
		}
		idx = j + 1
		if idx >= len(s) {
			return false
		}
	}
}

