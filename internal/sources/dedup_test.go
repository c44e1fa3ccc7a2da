package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliffyan/go-source-finder/internal/engine"
)

func item(title, link, snippet any) engine.RawItem {
	return engine.RawItem{"title": title, "link": link, "snippet": snippet}
}

func TestDedupSetIsIdempotent(t *testing.T) {
	d := newDedupSet()
	it := item("Albert Einstein", "https://example.com/einstein", "Physicist")

	assert.Equal(t, 1, d.Add([]engine.RawItem{it}))
	assert.Equal(t, 0, d.Add([]engine.RawItem{it}))
	assert.Equal(t, 1, d.Len())
}

func TestDedupSetNormalizesKey(t *testing.T) {
	d := newDedupSet()
	added := d.Add([]engine.RawItem{
		item("Albert Einstein - Wikipedia", "https://www.wiki.org/a", "first"),
		item("albert einstein | Wiki", "https://wiki.org/b", "second, richer snippet"),
		item("Albert Einstein", "https://other.org/a", "third"),
	})

	assert.Equal(t, 2, added)
	results := d.Results(10)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Snippet)
	assert.Equal(t, "https://other.org/a", results[1].URL)
}

func TestDedupSetSkipsIncompleteItems(t *testing.T) {
	d := newDedupSet()
	added := d.Add([]engine.RawItem{
		nil,
		item("", "https://example.com", "x"),
		item("Title", "", "x"),
		item(map[string]any{"a": 1}, "https://example.com/obj", "x"),
		{"title": "No link"},
		item(float64(42), "https://example.com/42", nil),
	})

	assert.Equal(t, 1, added)
	res := d.Results(10)
	require.Len(t, res, 1)
	assert.Equal(t, "42", res[0].Title)
	assert.Equal(t, "", res[0].Snippet)
	assert.Equal(t, "found by search", res[0].Reason)
}

func TestDedupSetResultsRespectsLimit(t *testing.T) {
	d := newDedupSet()
	for _, s := range []string{"a", "b", "c"} {
		d.Add([]engine.RawItem{item("T "+s, "https://"+s+".com", "")})
	}
	assert.Len(t, d.Results(2), 2)
	assert.Equal(t, "T a", d.Results(2)[0].Title)
	assert.Len(t, d.Results(5), 3)
}

func TestBuildReason(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("A very long snippet. ", 20))
	want := long[:177] + "..." + " — found by search"
	assert.Equal(t, want, BuildReason(long))

	exact := strings.Repeat("x", 180)
	assert.Equal(t, exact+" — found by search", BuildReason(exact))

	assert.Equal(t, "hi — found by search", BuildReason("  hi "))
	assert.Equal(t, "found by search", BuildReason(""))
	assert.Equal(t, "found by search", BuildReason("   "))
}

func TestNormalizeTitleKey(t *testing.T) {
	assert.Equal(t, "kapil dev", NormalizeTitleKey("  Kapil Dev - Wikipedia "))
	assert.Equal(t, "kapil dev", NormalizeTitleKey("Kapil Dev — ESPNcricinfo"))
	assert.Equal(t, "kapil dev", NormalizeTitleKey("Kapil Dev • Profile"))
	assert.Equal(t, "kapil-dev", NormalizeTitleKey("Kapil-Dev"))
	assert.Equal(t, "example.com|kapil dev", DedupKey("Kapil Dev | Bio", "https://www.example.com/x"))
}
