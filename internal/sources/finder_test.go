package sources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cliffyan/go-source-finder/internal/engine"
)

const (
	kapilText = "Kapil Dev was born in 1959 in Nehra, India."
	kapilURL  = "https://en.wikipedia.org/wiki/Kapil_Dev"
)

type fakeProvider struct {
	configured bool
	search     func(ctx context.Context, q engine.Query) (engine.Response, error)

	mu      sync.Mutex
	queries []engine.Query
}

func (p *fakeProvider) Name() string     { return "fake" }
func (p *fakeProvider) Configured() bool { return p.configured }

func (p *fakeProvider) Search(ctx context.Context, q engine.Query) (engine.Response, error) {
	p.mu.Lock()
	p.queries = append(p.queries, q)
	p.mu.Unlock()
	return p.search(ctx, q)
}

func (p *fakeProvider) issued() []engine.Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.Query(nil), p.queries...)
}

// perQueryItems returns n hits whose titles are unique to the query text.
func perQueryItems(n int) func(context.Context, engine.Query) (engine.Response, error) {
	return func(_ context.Context, q engine.Query) (engine.Response, error) {
		items := make([]engine.RawItem, 0, n)
		for i := 0; i < n; i++ {
			items = append(items, engine.RawItem{
				"title":   fmt.Sprintf("%s #%d", q.Text, i),
				"link":    fmt.Sprintf("https://site%d.example/%d", i, len(q.Text)),
				"snippet": "snippet",
			})
		}
		return engine.Response{Kind: engine.KindItems, Items: items}, nil
	}
}

func failing(context.Context, engine.Query) (engine.Response, error) {
	return engine.Response{}, &engine.StatusError{Code: 500, Body: "boom"}
}

func newTestFinder(p engine.Provider) *Finder {
	return New(p, Options{}, zap.NewNop())
}

func TestFindNotConfigured(t *testing.T) {
	p := &fakeProvider{configured: false, search: perQueryItems(3)}

	out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, out)
	assert.Contains(t, err.Error(), "not configured")
	assert.Empty(t, p.issued())

	_, err = newTestFinder(nil).Find(context.Background(), Request{Text: kapilText})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFindAllAttemptsFail(t *testing.T) {
	p := &fakeProvider{configured: true, search: failing}

	out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText, SourceURL: kapilURL})
	require.NoError(t, err)
	assert.Empty(t, out.Results)

	issued := p.issued()
	// six planned queries plus two fallback queries
	require.Len(t, issued, 8)
	assert.Equal(t, 8, out.Attempts)
	assert.Equal(t, 8, out.Failures)

	assert.Equal(t, "Kapil Dev born 1959 Nehra India -site:en.wikipedia.org", issued[0].Text)
	assert.Equal(t, "en", issued[0].Lang)
	assert.Equal(t, "IN", issued[0].Region)

	for _, q := range issued[6:] {
		assert.Empty(t, q.Lang, "fallback tier sends no language hint")
		assert.Empty(t, q.Region, "fallback tier sends no region hint")
	}
	assert.Equal(t, "Kapil Dev "+kapilText+" -site:en.wikipedia.org", issued[6].Text)
	assert.Equal(t, "Kapil Dev "+kapilText, issued[7].Text)
}

func TestFindStopsOnceLimitReached(t *testing.T) {
	p := &fakeProvider{configured: true, search: perQueryItems(3)}

	out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText, SourceURL: kapilURL, Size: 3})
	require.NoError(t, err)
	assert.Len(t, out.Results, 3)
	assert.Len(t, p.issued(), 1)
	assert.Equal(t, 3, p.issued()[0].Count)
}

func TestFindAccumulatesAcrossAttempts(t *testing.T) {
	p := &fakeProvider{configured: true, search: perQueryItems(2)}

	out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText, SourceURL: kapilURL, Size: 5})
	require.NoError(t, err)
	assert.Len(t, out.Results, 5)
	assert.Equal(t, 3, out.Attempts)
	assert.Zero(t, out.Failures)

	// insertion order: first attempt's hits come first
	assert.Equal(t, "Kapil Dev born 1959 Nehra India -site:en.wikipedia.org #0", out.Results[0].Title)
}

func TestFindClampsSize(t *testing.T) {
	tests := []struct {
		size      int
		wantCount int
	}{
		{0, 5},
		{-3, 1},
		{1, 1},
		{20, 10},
		{50, 10},
	}
	for _, tt := range tests {
		p := &fakeProvider{configured: true, search: perQueryItems(12)}
		out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText, Size: tt.size})
		require.NoError(t, err)
		assert.Equal(t, tt.wantCount, p.issued()[0].Count, "size %d", tt.size)
		assert.Len(t, out.Results, tt.wantCount, "size %d", tt.size)
	}
}

func TestFindDeduplicatesAcrossAttempts(t *testing.T) {
	same := func(context.Context, engine.Query) (engine.Response, error) {
		return engine.Response{Kind: engine.KindItems, Items: []engine.RawItem{
			{"title": "Kapil Dev - Wikipedia", "link": "https://www.cricket.example/kapil", "snippet": "s"},
			{"title": "Kapil Dev | Cricket", "link": "https://cricket.example/other", "snippet": "richer"},
		}}, nil
	}
	p := &fakeProvider{configured: true, search: same}

	out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText, SourceURL: kapilURL})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "s", out.Results[0].Snippet)
	// never reaches the limit, so every planned query runs but no fallback
	assert.Equal(t, 6, out.Attempts)
}

func TestFindUnrecognizedResponseTriggersFallback(t *testing.T) {
	calls := 0
	search := func(_ context.Context, q engine.Query) (engine.Response, error) {
		calls++
		if q.Lang == "" {
			return engine.Response{Kind: engine.KindItems, Items: []engine.RawItem{
				{"title": "Found late", "link": "https://late.example/", "snippet": ""},
			}}, nil
		}
		return engine.Response{Kind: engine.KindUnrecognized}, nil
	}
	p := &fakeProvider{configured: true, search: search}

	out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText, SourceURL: kapilURL})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Found late", out.Results[0].Title)
	assert.Equal(t, "found by search", out.Results[0].Reason)
	assert.Equal(t, 8, calls)
}

func TestFindSwallowsSingleFailure(t *testing.T) {
	first := true
	search := func(ctx context.Context, q engine.Query) (engine.Response, error) {
		if first {
			first = false
			return engine.Response{}, errors.New("timeout")
		}
		return perQueryItems(5)(ctx, q)
	}
	p := &fakeProvider{configured: true, search: search}

	out, err := newTestFinder(p).Find(context.Background(), Request{Text: kapilText, SourceURL: kapilURL})
	require.NoError(t, err)
	assert.Len(t, out.Results, 5)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 1, out.Failures)
}

func TestFindAttemptTimeout(t *testing.T) {
	block := func(ctx context.Context, _ engine.Query) (engine.Response, error) {
		<-ctx.Done()
		return engine.Response{}, ctx.Err()
	}
	p := &fakeProvider{configured: true, search: block}
	f := New(p, Options{AttemptTimeout: 5 * time.Millisecond}, zap.NewNop())

	out, err := f.Find(context.Background(), Request{Text: kapilText, SourceURL: kapilURL})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.Equal(t, out.Attempts, out.Failures)
}

func TestFindCanceledContext(t *testing.T) {
	p := &fakeProvider{configured: true, search: perQueryItems(3)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newTestFinder(p).Find(ctx, Request{Text: kapilText})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, out)
	assert.Empty(t, out.Results)
	assert.Empty(t, p.issued())
}

func TestFindCanceledDuringAttempt(t *testing.T) {
	tests := []struct {
		name         string
		cancelOnCall int
		wantAttempts int
	}{
		{"last planned query", 6, 6},
		{"last fallback query", 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			calls := 0
			search := func(attemptCtx context.Context, _ engine.Query) (engine.Response, error) {
				calls++
				if calls == tt.cancelOnCall {
					cancel()
					<-attemptCtx.Done()
					return engine.Response{}, attemptCtx.Err()
				}
				return engine.Response{}, errors.New("upstream 500")
			}
			p := &fakeProvider{configured: true, search: search}

			out, err := newTestFinder(p).Find(ctx, Request{Text: kapilText, SourceURL: kapilURL})
			require.ErrorIs(t, err, context.Canceled)
			require.NotNil(t, out)
			assert.Empty(t, out.Results)
			assert.Equal(t, tt.wantAttempts, out.Attempts)
			assert.Equal(t, tt.wantAttempts, out.Failures)
		})
	}
}

func TestFinderLimit(t *testing.T) {
	f := New(nil, Options{DefaultSize: 3, MaxSize: 4}, nil)
	assert.Equal(t, 3, f.Limit(0))
	assert.Equal(t, 4, f.Limit(9))
	assert.Equal(t, 1, f.Limit(-1))
}
