// Package sources finds web pages that support a piece of claim text.
//
// A Finder mines the claim and its origin URL for a subject and a few
// positional signals, turns them into an ordered list of search queries, and
// issues those queries one at a time against a single search provider until
// enough distinct results have been collected.
package sources

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cliffyan/go-source-finder/internal/engine"
	"github.com/cliffyan/go-source-finder/internal/metrics"
)

// ErrNotConfigured is returned before any network call when the provider
// lacks credentials.
var ErrNotConfigured = errors.New("search not configured")

const (
	DefaultSize           = 5
	MaxSize               = 10
	DefaultAttemptTimeout = 8 * time.Second
)

const (
	tierPrimary  = "primary"
	tierFallback = "fallback"
)

// Options tune a Finder.
type Options struct {
	AttemptTimeout time.Duration
	DefaultSize    int
	MaxSize        int
}

func (o Options) withDefaults() Options {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = DefaultAttemptTimeout
	}
	if o.MaxSize < 1 || o.MaxSize > MaxSize {
		o.MaxSize = MaxSize
	}
	if o.DefaultSize < 1 {
		o.DefaultSize = DefaultSize
	}
	return o
}

// Request is one find-sources call.
type Request struct {
	Text      string
	SourceURL string
	Persona   string
	// Size is the requested result count; 0 means the default.
	Size int
}

// Outcome is the result of a call. Attempts counts queries issued and
// Failures those that errored, so an empty Results with Failures == 0 means
// the provider simply had no matches.
type Outcome struct {
	Results  []SearchResult `json:"results"`
	Attempts int            `json:"attempts"`
	Failures int            `json:"failures"`
}

// Finder runs query plans against one provider.
type Finder struct {
	provider engine.Provider
	opts     Options
	logger   *zap.Logger
}

// New creates a Finder. provider may be nil, in which case every call fails
// with ErrNotConfigured.
func New(provider engine.Provider, opts Options, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{
		provider: provider,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Configured reports whether Find can reach a provider.
func (f *Finder) Configured() bool {
	return f.provider != nil && f.provider.Configured()
}

// Limit clamps a requested size to [1, MaxSize], substituting the default
// for 0.
func (f *Finder) Limit(size int) int {
	if size == 0 {
		size = f.opts.DefaultSize
	}
	return max(1, min(size, f.opts.MaxSize))
}

// Find collects up to Limit(req.Size) distinct sources for req.Text.
//
// Provider failures are absorbed per attempt; the only errors returned are
// ErrNotConfigured and the context error when ctx ends mid-run, in which case
// the partial Outcome is still returned.
func (f *Finder) Find(ctx context.Context, req Request) (*Outcome, error) {
	if !f.Configured() {
		metrics.FindRequests.WithLabelValues("not_configured").Inc()
		return nil, ErrNotConfigured
	}

	limit := f.Limit(req.Size)
	host := NormalizeDomain(req.SourceURL)
	subject := ExtractSubject(req.SourceURL)
	plan := BuildQueryPlan(req.Text, subject, host)

	f.logger.Debug("query plan built",
		zap.String("subject", subject),
		zap.String("host", host),
		zap.String("persona", req.Persona),
		zap.Strings("attempts", plan.Attempts),
		zap.String("region", plan.Region),
		zap.Int("limit", limit))

	acc := newDedupSet()
	out := &Outcome{}

	err := f.run(ctx, tierPrimary, plan.Attempts, plan.Lang, plan.Region, limit, acc, out)
	if err == nil && acc.Len() == 0 {
		err = f.run(ctx, tierFallback, fallbackQueries(req.Text, subject, host), "", "", limit, acc, out)
	}

	out.Results = acc.Results(limit)
	metrics.FindResults.Observe(float64(len(out.Results)))

	switch {
	case err != nil:
		metrics.FindRequests.WithLabelValues("canceled").Inc()
		return out, err
	case len(out.Results) == 0:
		metrics.FindRequests.WithLabelValues("empty").Inc()
	default:
		metrics.FindRequests.WithLabelValues("ok").Inc()
	}

	f.logger.Info("sources found",
		zap.Int("results", len(out.Results)),
		zap.Int("attempts", out.Attempts),
		zap.Int("failures", out.Failures))
	return out, nil
}

// run issues queries in order and stops once acc holds limit results. A
// failed attempt is logged and skipped; the same query is never retried.
// The returned error is non-nil only when ctx has ended.
func (f *Finder) run(ctx context.Context, tier string, queries []string, lang, region string, limit int, acc *dedupSet, out *Outcome) error {
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return err
		}

		out.Attempts++
		resp, err := f.attempt(ctx, engine.Query{Text: q, Count: limit, Lang: lang, Region: region})
		if err != nil {
			out.Failures++
			metrics.QueryAttempts.WithLabelValues(tier, metrics.StatusError).Inc()
			f.logger.Warn("search attempt failed",
				zap.String("tier", tier),
				zap.String("query", q),
				zap.Error(err))
			continue
		}
		metrics.QueryAttempts.WithLabelValues(tier, metrics.StatusOK).Inc()

		added := acc.Add(resp.Hits())
		f.logger.Debug("search attempt merged",
			zap.String("tier", tier),
			zap.String("query", q),
			zap.Stringer("kind", resp.Kind),
			zap.Int("added", added),
			zap.Int("unique", acc.Len()))

		if acc.Len() >= limit {
			break
		}
	}
	// an attempt aborted by ctx only counts as a failure above
	return ctx.Err()
}

func (f *Finder) attempt(ctx context.Context, q engine.Query) (engine.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.AttemptTimeout)
	defer cancel()
	return f.provider.Search(ctx, q)
}
