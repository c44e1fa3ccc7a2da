package sources

import "strings"

// QueryPlan is the ordered list of queries to try, most specific first.
type QueryPlan struct {
	Attempts []string
	Lang     string
	Region   string
}

// BuildQueryPlan turns claim text and the subject/host of its origin URL into
// a query plan. Site-excluded variants come before unrestricted ones so the
// origin page itself is not returned as a source.
func BuildQueryPlan(text, subject, host string) QueryPlan {
	first := FirstSentence(text)
	t := ExtractClaimTokens(text, subject)
	exclude := excludeSite(host)

	return QueryPlan{
		Attempts: uniqueQueries(
			joinParts(subject, t.Core, t.When, t.Where, exclude),
			joinParts(subject, t.Core, t.When, t.Where),
			joinParts(subject, "biography", exclude),
			joinParts(subject, "biography"),
			joinParts(subject, first, exclude),
			joinParts(subject, first),
		),
		Lang:   GuessLang(text),
		Region: GuessRegion(text),
	}
}

// fallbackQueries are issued, without language or region hints, only when
// the whole plan produced nothing.
func fallbackQueries(text, subject, host string) []string {
	first := FirstSentence(text)
	return uniqueQueries(
		joinParts(subject, first, excludeSite(host)),
		joinParts(subject, first),
	)
}

func excludeSite(host string) string {
	if host == "" {
		return ""
	}
	return "-site:" + host
}

func joinParts(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// uniqueQueries drops empty and repeated queries, keeping first occurrences.
func uniqueQueries(queries ...string) []string {
	out := make([]string, 0, len(queries))
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}
