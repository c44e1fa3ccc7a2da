package sources

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cliffyan/go-source-finder/internal/engine"
)

const (
	reasonMaxRunes = 180
	reasonSuffix   = "found by search"
)

// titleSuffixPattern matches trailing " - Site", " | Site", " — Site" parts.
var titleSuffixPattern = regexp.MustCompile(`\s+[-|•–—]\s+.*`)

// SearchResult is one candidate source returned to the caller.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Reason  string `json:"reason"`
}

// dedupSet accumulates results in insertion order, keyed by domain and
// normalized title. The first result seen for a key wins.
type dedupSet struct {
	keys    map[string]struct{}
	results []SearchResult
}

func newDedupSet() *dedupSet {
	return &dedupSet{keys: make(map[string]struct{}), results: []SearchResult{}}
}

func (d *dedupSet) Len() int {
	return len(d.results)
}

// Add merges raw provider hits and reports how many were new.
func (d *dedupSet) Add(items []engine.RawItem) int {
	added := 0
	for _, it := range items {
		if it == nil {
			continue
		}
		title := coerceString(it["title"])
		link := coerceString(it["link"])
		snippet := coerceString(it["snippet"])
		if title == "" || link == "" {
			continue
		}

		key := DedupKey(title, link)
		if _, dup := d.keys[key]; dup {
			continue
		}
		d.keys[key] = struct{}{}
		d.results = append(d.results, SearchResult{
			Title:   title,
			URL:     link,
			Snippet: snippet,
			Reason:  BuildReason(snippet),
		})
		added++
	}
	return added
}

// Results returns at most limit results in insertion order.
func (d *dedupSet) Results(limit int) []SearchResult {
	if len(d.results) > limit {
		return d.results[:limit]
	}
	return d.results
}

// DedupKey is normalized domain + "|" + normalized title.
func DedupKey(title, link string) string {
	return NormalizeDomain(link) + "|" + NormalizeTitleKey(title)
}

// NormalizeTitleKey lowercases and trims title and strips a trailing
// separator-introduced suffix such as " - Wikipedia".
func NormalizeTitleKey(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	return titleSuffixPattern.ReplaceAllString(t, "")
}

// BuildReason annotates a snippet, truncating it to 180 characters.
func BuildReason(snippet string) string {
	s := strings.TrimSpace(snippet)
	if utf8.RuneCountInString(s) > reasonMaxRunes {
		s = string([]rune(s)[:reasonMaxRunes-3]) + "..."
	}
	if s == "" {
		return reasonSuffix
	}
	return s + " — " + reasonSuffix
}

// coerceString renders scalar JSON values as strings. Objects and arrays
// yield "".
func coerceString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	default:
		return ""
	}
}
