// Package dumper drives a dump run: it pages through entity ids, resolves each id
// to its current revision, maps the revision to RDF and streams it to a sink.
package dumper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/application/rdfbuilder"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	wberrors "github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("wikibase-rdf-dumper/dumper")

// Generator runs a single dump. It owns the serializer, and through it the sink,
// for the duration of Run.
type Generator struct {
	pager      wikibase.EntityIDPager
	lookup     wikibase.EntityRevisionLookup
	prefetcher wikibase.EntityPrefetcher
	builder    *rdfbuilder.Builder
	opts       options

	mu      sync.RWMutex
	summary Summary

	taken        int
	exhausted    bool
	progressMark time.Time
}

// New creates a generator. The prefetcher may be nil, in which case lookups go
// straight to the lookup.
func New(pager wikibase.EntityIDPager, lookup wikibase.EntityRevisionLookup, prefetcher wikibase.EntityPrefetcher, builder *rdfbuilder.Builder, opts ...Option) *Generator {
	o := newOptions(opts...)

	if o.metrics == nil {
		o.metrics = NewMetrics()
	}

	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	if prefetcher == nil {
		prefetcher = noPrefetch{}
	}

	return &Generator{
		pager:      pager,
		lookup:     lookup,
		prefetcher: prefetcher,
		builder:    builder,
		opts:       o,
		summary: Summary{
			RunID:      o.runID,
			State:      Init,
			Skipped:    map[string]int{},
			SkippedIDs: map[string][]string{},
		},
	}
}

// Run performs the dump and reports how it went. The sink is closed exactly once
// before Run returns, whatever the outcome. Cancelling ctx stops the dump before
// the next batch; the running batch is finished first.
func (g *Generator) Run(ctx context.Context, sink io.WriteCloser) Summary {
	ctx = logging.NewContextWithLogger(ctx, logging.GetFromContext(ctx), "run_id", g.opts.runID)

	started := g.opts.now()
	g.progressMark = started
	g.update(func(s *Summary) {
		s.Started = started
	})

	out, flavor, err := g.open(sink)
	if err != nil {
		return g.finish(ctx, err)
	}

	err = g.dump(ctx, context.WithoutCancel(ctx), out, flavor)

	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return g.finish(ctx, err)
}

// Progress returns a snapshot of the summary and is safe to call while Run executes.
func (g *Generator) Progress() Summary {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.summary.clone()
}

func (g *Generator) Metrics() *Metrics {
	return g.opts.metrics
}

func (g *Generator) open(sink io.WriteCloser) (rdf.Serializer, rdfbuilder.Flavor, error) {
	fail := func(err error) (rdf.Serializer, rdfbuilder.Flavor, error) {
		sink.Close()
		return nil, rdfbuilder.FullDump, err
	}

	if err := g.opts.validate(); err != nil {
		return fail(err)
	}

	flavor, err := rdfbuilder.ParseFlavor(g.opts.flavor)
	if err != nil {
		return fail(err)
	}

	format, err := rdf.ParseFormat(g.opts.format)
	if err != nil {
		return fail(err)
	}

	out, err := rdf.Open(sink, format, g.builder.Vocabulary().Prefixes())
	if err != nil {
		if out == nil {
			return fail(err)
		}
		out.Close()
		return nil, flavor, err
	}

	return out, flavor, nil
}

// dump checks stop only between batches. Work within a batch runs on ctx, which
// carries the values of stop but is never cancelled.
func (g *Generator) dump(stop, ctx context.Context, out rdf.Serializer, flavor rdfbuilder.Flavor) error {
	if err := out.WriteStatements(g.builder.DumpHeader(g.opts.now())); err != nil {
		return fmt.Errorf("failed to write dump header: %w", err)
	}

	batch, err := g.nextBatch(ctx)
	if err != nil {
		return err
	}

	for len(batch) > 0 {
		if err := stop.Err(); err != nil {
			return fmt.Errorf("dump stopped before %s: %w", batch[0], err)
		}

		// the next batch is paged and prefetched before this one is built
		next, pageErr := g.nextBatch(ctx)

		if err := g.processBatch(ctx, out, flavor, batch); err != nil {
			return err
		}

		if pageErr != nil {
			return pageErr
		}

		batch = next
	}

	return nil
}

// nextBatch returns the next non-empty batch of ids in this shard, or an empty
// batch when the pager is exhausted or the limit is reached. Every returned batch
// has been handed to the prefetcher.
func (g *Generator) nextBatch(ctx context.Context) ([]wikibase.EntityID, error) {
	g.setState(Paging)

	for !g.exhausted {
		remaining := -1
		if g.opts.limit > 0 {
			remaining = g.opts.limit - g.taken
			if remaining <= 0 {
				return nil, nil
			}
		}

		page, err := g.pager.NextBatch(ctx, g.opts.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch the next batch of entity ids: %w", err)
		}

		if len(page) == 0 {
			g.exhausted = true
			break
		}

		batch := make([]wikibase.EntityID, 0, len(page))
		for _, id := range page {
			if g.opts.inShard(id) {
				batch = append(batch, id)
			}
		}

		if remaining > 0 && len(batch) > remaining {
			batch = batch[:remaining]
		}

		if len(batch) == 0 {
			continue
		}

		g.taken += len(batch)

		g.setState(Prefetching)
		g.prefetcher.Prefetch(ctx, batch)

		return batch, nil
	}

	return nil, nil
}

func (g *Generator) processBatch(ctx context.Context, out rdf.Serializer, flavor rdfbuilder.Flavor, batch []wikibase.EntityID) (err error) {
	ctx, span := tracer.Start(ctx, "dump-batch", trace.WithAttributes(
		attribute.Int("size", len(batch)),
		attribute.String("first", batch[0].String()),
	))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	for _, id := range batch {
		g.setState(Resolving)

		rev, lookupErr := g.resolve(ctx, id)
		if lookupErr != nil {
			if errors.Is(lookupErr, wberrors.ErrEntityNotFound) {
				log.Warn("entity not found, skipping", "entity_id", id.String())
				g.skip(SkippedNotFound, id)
				continue
			}

			if errors.Is(lookupErr, wberrors.ErrInvalidEntity) {
				log.Warn("entity content is not valid, skipping", "entity_id", id.String(), "err", lookupErr.Error())
				g.skip(SkippedInvalid, id)
				continue
			}

			err = lookupErr
			return
		}

		if !rev.IsRedirect() && rev.Entity == nil {
			log.Warn("revision has no content, skipping", "entity_id", id.String(), "revision", rev.RevisionID)
			g.skip(SkippedInvalid, id)
			continue
		}

		if !g.wanted(rev) {
			log.Debug("entity does not match redirect mode, skipping", "entity_id", id.String(), "mode", g.opts.redirectMode.String())
			g.skip(SkippedRedirectFilter, id)
			continue
		}

		g.setState(Building)

		triples, problems := g.builder.Build(rev, flavor)
		for _, p := range problems {
			log.Warn("entity written with problems", "entity_id", id.String(), "err", p.Error())
		}

		g.setState(Writing)

		if writeErr := out.WriteStatements(triples); writeErr != nil {
			err = fmt.Errorf("failed to write statements of %s: %w", id, writeErr)
			return
		}

		if flushErr := out.Flush(); flushErr != nil {
			err = fmt.Errorf("failed to write statements of %s: %w", id, flushErr)
			return
		}

		g.confirm(ctx, id, len(problems))
	}

	g.opts.metrics.batches.Inc()
	g.update(func(s *Summary) {
		s.Batches++
	})

	return nil
}

// resolve looks up the current revision of id. Lookup failures other than a
// missing entity are retried once.
func (g *Generator) resolve(ctx context.Context, id wikibase.EntityID) (*wikibase.EntityRevision, error) {
	lookup := func() (*wikibase.EntityRevision, error) {
		rev, err := g.lookup.GetEntityRevision(ctx, id, wikibase.AllowStale)
		if err != nil {
			if errors.Is(err, wberrors.ErrEntityNotFound) || errors.Is(err, wberrors.ErrInvalidEntity) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		if rev == nil {
			return nil, backoff.Permanent(wberrors.NewEntityNotFoundError(id.String()))
		}

		return rev, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.retryInterval

	rev, err := backoff.Retry(ctx, lookup,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(2),
		backoff.WithNotify(func(err error, d time.Duration) {
			g.opts.metrics.retries.Inc()
			logging.GetFromContext(ctx).Warn("retrying revision lookup", "entity_id", id.String(), "delay", d.String(), "err", err.Error())
		}),
	)
	if err != nil {
		if errors.Is(err, wberrors.ErrEntityNotFound) || errors.Is(err, wberrors.ErrInvalidEntity) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up %s: %w", id, err)
	}

	return rev, nil
}

func (g *Generator) wanted(rev *wikibase.EntityRevision) bool {
	switch g.opts.redirectMode {
	case wikibase.OnlyRedirects:
		return rev.IsRedirect()
	case wikibase.ExcludeRedirects:
		return !rev.IsRedirect()
	default:
		return true
	}
}

func (g *Generator) confirm(ctx context.Context, id wikibase.EntityID, fallbacks int) {
	g.opts.metrics.written.Inc()
	g.opts.metrics.fallbacks.Add(float64(fallbacks))

	var written int

	g.update(func(s *Summary) {
		s.Written++
		s.Fallback += fallbacks
		s.LastConfirmed = id.String()
		written = s.Written
	})

	if g.opts.quiet || g.opts.progressInterval <= 0 || written%g.opts.progressInterval != 0 {
		return
	}

	now := g.opts.now()
	rate := float64(g.opts.progressInterval) / now.Sub(g.progressMark).Seconds()
	g.progressMark = now

	logging.GetFromContext(ctx).Info("dump progress",
		"written", humanize.Comma(int64(written)),
		"rate", fmt.Sprintf("%.2f/s", rate),
		"entity_id", id.String(),
	)
}

func (g *Generator) skip(reason string, id wikibase.EntityID) {
	g.opts.metrics.skipped.WithLabelValues(reason).Inc()

	g.update(func(s *Summary) {
		s.skip(reason, id.String())
	})
}

func (g *Generator) setState(state State) {
	g.update(func(s *Summary) {
		s.State = state
	})
}

func (g *Generator) update(change func(s *Summary)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	change(&g.summary)
}

func (g *Generator) finish(ctx context.Context, err error) Summary {
	log := logging.GetFromContext(ctx)

	var last State

	g.update(func(s *Summary) {
		last = s.State
		s.Finished = g.opts.now()

		if err != nil {
			s.State = Aborted
			s.Err = err
			s.Error = err.Error()
		} else {
			s.State = Done
		}
	})

	summary := g.Progress()

	if err != nil {
		log.Error("dump aborted", "state", last.String(), "last_confirmed", summary.LastConfirmed, "err", err.Error())
		return summary
	}

	if !g.opts.quiet {
		log.Info("dump done",
			"written", humanize.Comma(int64(summary.Written)),
			"batches", summary.Batches,
			"skipped", summary.Skipped,
			"duration", summary.Finished.Sub(summary.Started).String(),
		)
	}

	return summary
}

type noPrefetch struct{}

func (noPrefetch) Prefetch(context.Context, []wikibase.EntityID) {}
