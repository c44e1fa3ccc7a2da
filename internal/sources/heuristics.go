package sources

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const firstSentenceMaxRunes = 400

var (
	yearPattern    = regexp.MustCompile(`\b(18\d{2}|19\d{2}|20\d{2})\b`)
	capWordPattern = regexp.MustCompile(`\b([A-Z][a-zA-Z]+)\b`)
)

// coreKeywords are checked in priority order.
var coreKeywords = []string{"born", "captain", "cricketer"}

var regionHints = map[string][]string{
	"IN": {"india", "delhi", "punjabi"},
}

const maxPlaceTokens = 5

// ClaimTokens holds the shallow signals mined from claim text.
type ClaimTokens struct {
	Core  string
	When  string
	Where string
}

// parseAbsolute accepts only URLs with a scheme; anything else is treated as
// unparsable.
func parseAbsolute(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	return u, true
}

// NormalizeDomain returns the lowercased host of raw without a leading
// "www.", or "" when raw cannot be parsed.
func NormalizeDomain(raw string) string {
	u, ok := parseAbsolute(raw)
	if !ok {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// ExtractSubject derives a title-cased label from the last path segment of
// raw. Wikipedia-style /wiki/ paths only need underscores replaced; other
// paths also have hyphens replaced.
func ExtractSubject(raw string) string {
	u, ok := parseAbsolute(raw)
	if !ok {
		return ""
	}

	path := u.EscapedPath()
	last := path[strings.LastIndex(path, "/")+1:]
	if last == "" {
		return ""
	}
	decoded, err := url.PathUnescape(last)
	if err != nil {
		return ""
	}

	if strings.Contains(path, "/wiki/") {
		slug := strings.TrimSpace(strings.ReplaceAll(decoded, "_", " "))
		if utf8.RuneCountInString(slug) >= 3 {
			return titleCase(slug)
		}
	}
	return titleCase(strings.NewReplacer("-", " ", "_", " ").Replace(decoded))
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// FirstSentence returns text up to and including the first period when it
// falls within the first 400 characters, otherwise at most 400 characters.
func FirstSentence(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}

	runes := []rune(s)
	for i, r := range runes {
		if i >= firstSentenceMaxRunes {
			break
		}
		if r == '.' {
			return string(runes[:i+1])
		}
	}
	if len(runes) > firstSentenceMaxRunes {
		return string(runes[:firstSentenceMaxRunes])
	}
	return s
}

// ExtractClaimTokens mines years, capitalized words not already part of the
// subject, and a core keyword from text.
func ExtractClaimTokens(text, subject string) ClaimTokens {
	var ct ClaimTokens
	if text == "" {
		return ct
	}

	ct.When = strings.Join(yearPattern.FindAllString(text, -1), " ")

	subjectLower := strings.ToLower(subject)
	var places []string
	seen := make(map[string]bool)
	for _, w := range capWordPattern.FindAllString(text, -1) {
		if !seen[w] && !strings.Contains(subjectLower, strings.ToLower(w)) {
			seen[w] = true
			places = append(places, w)
		}
		if len(places) >= maxPlaceTokens {
			break
		}
	}
	ct.Where = strings.Join(places, " ")

	lower := strings.ToLower(text)
	for _, kw := range coreKeywords {
		if strings.Contains(lower, kw) {
			ct.Core = kw
			break
		}
	}
	return ct
}

// GuessLang always reports English.
// TODO: detect the claim language once a detector is wired in; the Google
// lr parameter already accepts other codes.
func GuessLang(string) string {
	return "en"
}

// GuessRegion returns a country code when the text mentions a known place.
func GuessRegion(text string) string {
	lower := strings.ToLower(text)
	for region, hints := range regionHints {
		for _, h := range hints {
			if strings.Contains(lower, h) {
				return region
			}
		}
	}
	return ""
}
