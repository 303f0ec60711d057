package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shroroh/teacherflow/pkg/flowgraph/cache"
	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/observability"
)

// CachingGenerator implements Generator on top of a Client.
//
// A cache hit is only served when the caller allows it; a fresh response is
// always written back so a retried prompt refreshes the stored entry.
// Every call is journaled regardless of the cache outcome.
type CachingGenerator struct {
	client  Client
	store   cache.Store
	journal Journal
	metrics observability.MetricsRecorder
	logger  *slog.Logger
}

// GeneratorOption configures a CachingGenerator.
type GeneratorOption func(*CachingGenerator)

// WithCache sets the response store. Without one nothing is cached.
func WithCache(store cache.Store) GeneratorOption {
	return func(g *CachingGenerator) { g.store = store }
}

// WithJournal sets the call journal.
func WithJournal(j Journal) GeneratorOption {
	return func(g *CachingGenerator) { g.journal = j }
}

// WithGeneratorMetrics records cache lookups.
func WithGeneratorMetrics(m observability.MetricsRecorder) GeneratorOption {
	return func(g *CachingGenerator) { g.metrics = m }
}

// WithGeneratorLogger sets the logger for cache warnings.
func WithGeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *CachingGenerator) { g.logger = l }
}

// NewGenerator wraps client.
func NewGenerator(client Client, opts ...GeneratorOption) *CachingGenerator {
	g := &CachingGenerator{
		client:  client,
		journal: NopJournal{},
		metrics: observability.NoopMetrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements Generator.
func (g *CachingGenerator) Generate(ctx context.Context, prompt string, allowCache bool) (string, error) {
	done := observability.TimedOperation()
	info := CallInfoFrom(ctx)
	key := cache.Key(prompt)

	if allowCache && g.store != nil {
		cached, err := g.store.Get(key)
		switch {
		case err == nil:
			g.metrics.RecordCacheLookup(ctx, true)
			g.journal.Record(ctx, Call{Prompt: prompt, Response: cached, CacheHit: true, Info: info})
			observability.LogGeneration(g.logger, len(prompt), true, done())
			return cached, nil
		case !errors.Is(err, cache.ErrNotFound):
			g.logger.Warn("prompt cache read failed", slog.String("error", err.Error()))
		}
		g.metrics.RecordCacheLookup(ctx, false)
	}

	start := time.Now()
	resp, err := g.client.Complete(ctx, Prompt(prompt))
	if err != nil {
		var genErr *fgerrors.GenerationError
		if !errors.As(err, &genErr) {
			err = &fgerrors.GenerationError{Err: err}
		}
		g.journal.Record(ctx, Call{Prompt: prompt, Err: err, Duration: time.Since(start), Info: info})
		return "", err
	}

	g.journal.Record(ctx, Call{Prompt: prompt, Response: resp.Content, Duration: time.Since(start), Info: info})
	if g.store != nil {
		if err := g.store.Put(key, resp.Content); err != nil {
			g.logger.Warn("prompt cache write failed", slog.String("error", err.Error()))
		}
	}
	observability.LogGeneration(g.logger, len(prompt), false, done())
	return resp.Content, nil
}
