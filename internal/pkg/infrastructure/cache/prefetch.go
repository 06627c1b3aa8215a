// Package cache holds a read-through revision cache that is filled ahead of use.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("wikibase-rdf-dumper/prefetch")

type action func()

// PrefetchingLookup wraps a revision lookup. Prefetch requests are queued and
// loaded by a background worker, and every cached revision is handed out once.
type PrefetchingLookup struct {
	store wikibase.EntityRevisionLookup
	batch wikibase.BatchRevisionLookup

	// sending is held while actions are put on the queue, so that Stop never
	// closes the queue under a sender
	sending    sync.RWMutex
	mu         sync.Mutex
	started    bool
	entries    map[wikibase.EntityID]*wikibase.EntityRevision
	inflight   map[wikibase.EntityID]chan struct{}
	maxEntries int

	group singleflight.Group
	queue chan action

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache holding at most maxEntries revisions. When store also
// implements wikibase.BatchRevisionLookup, prefetches are loaded in batches.
func New(store wikibase.EntityRevisionLookup, maxEntries int) *PrefetchingLookup {
	c := &PrefetchingLookup{
		store:      store,
		entries:    map[wikibase.EntityID]*wikibase.EntityRevision{},
		inflight:   map[wikibase.EntityID]chan struct{}{},
		maxEntries: maxEntries,
		queue:      make(chan action, 32),
	}

	if batch, ok := store.(wikibase.BatchRevisionLookup); ok {
		c.batch = batch
	}

	return c
}

func (c *PrefetchingLookup) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("already started")
	}

	c.started = true

	go c.run()

	return nil
}

// Stop waits for queued prefetches to finish.
func (c *PrefetchingLookup) Stop() error {
	c.sending.Lock()
	c.mu.Lock()
	wasStarted := c.started
	c.started = false
	c.mu.Unlock()
	c.sending.Unlock()

	if !wasStarted {
		return nil
	}

	resultChan := make(chan bool)

	c.queue <- func() {
		close(c.queue)
		resultChan <- true
	}

	<-resultChan

	return nil
}

// Prefetch queues a load of the ids that are neither cached nor already being
// loaded. Failures are logged and otherwise ignored.
func (c *PrefetchingLookup) Prefetch(ctx context.Context, ids []wikibase.EntityID) {
	c.sending.RLock()
	defer c.sending.RUnlock()

	c.mu.Lock()

	if !c.started {
		c.mu.Unlock()
		return
	}

	done := make(chan struct{})
	missing := make([]wikibase.EntityID, 0, len(ids))

	for _, id := range ids {
		if _, ok := c.entries[id]; ok {
			continue
		}
		if _, ok := c.inflight[id]; ok {
			continue
		}
		if len(c.entries)+len(missing) >= c.maxEntries {
			break
		}

		c.inflight[id] = done
		missing = append(missing, id)
	}

	c.mu.Unlock()

	if len(missing) == 0 {
		close(done)
		return
	}

	a := func() {
		var err error

		ctx, span := tracer.Start(ctx, "prefetch", trace.WithAttributes(attribute.Int("count", len(missing))))
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		var revisions map[wikibase.EntityID]*wikibase.EntityRevision
		revisions, err = c.load(ctx, missing)
		if err != nil {
			logging.GetFromContext(ctx).Warn("prefetch failed", "count", len(missing), "err", err.Error())
		}

		c.mu.Lock()
		for _, id := range missing {
			delete(c.inflight, id)
			if rev, ok := revisions[id]; ok {
				c.entries[id] = rev
			}
		}
		c.mu.Unlock()

		close(done)
	}

	select {
	case c.queue <- a:
	case <-ctx.Done():
		c.abandon(missing)
		close(done)
	}
}

func (c *PrefetchingLookup) abandon(ids []wikibase.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		delete(c.inflight, id)
	}
}

func (c *PrefetchingLookup) load(ctx context.Context, ids []wikibase.EntityID) (map[wikibase.EntityID]*wikibase.EntityRevision, error) {
	if c.batch != nil {
		return c.batch.GetEntityRevisions(ctx, ids)
	}

	revisions := make(map[wikibase.EntityID]*wikibase.EntityRevision, len(ids))
	var firstErr error

	for _, id := range ids {
		rev, err := c.fetch(ctx, id, wikibase.AllowStale)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		revisions[id] = rev
	}

	return revisions, firstErr
}

// GetEntityRevision hands out a prefetched revision if there is one, waiting for an
// ongoing prefetch of the same id, and falls back to the underlying store.
func (c *PrefetchingLookup) GetEntityRevision(ctx context.Context, id wikibase.EntityID, mode wikibase.CacheMode) (*wikibase.EntityRevision, error) {
	switch mode {
	case wikibase.BypassCache:
		return c.store.GetEntityRevision(ctx, id, mode)
	case wikibase.RequireFresh:
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return c.store.GetEntityRevision(ctx, id, mode)
	}

	if rev, wait := c.take(id); rev != nil {
		c.hits.Add(1)
		return rev, nil
	} else if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		if rev, _ := c.take(id); rev != nil {
			c.hits.Add(1)
			return rev, nil
		}
	}

	c.misses.Add(1)

	return c.fetch(ctx, id, mode)
}

// take removes and returns a cached revision. If the id is being prefetched the
// returned channel is closed once that prefetch completes.
func (c *PrefetchingLookup) take(id wikibase.EntityID) (*wikibase.EntityRevision, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rev, ok := c.entries[id]; ok {
		delete(c.entries, id)
		return rev, nil
	}

	return nil, c.inflight[id]
}

func (c *PrefetchingLookup) fetch(ctx context.Context, id wikibase.EntityID, mode wikibase.CacheMode) (*wikibase.EntityRevision, error) {
	v, err, _ := c.group.Do(id.String(), func() (any, error) {
		return c.store.GetEntityRevision(ctx, id, mode)
	})
	if err != nil {
		return nil, err
	}

	rev, _ := v.(*wikibase.EntityRevision)
	return rev, nil
}

// Len is the number of revisions currently held.
func (c *PrefetchingLookup) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *PrefetchingLookup) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *PrefetchingLookup) run() {
	for action := range c.queue {
		if action == nil {
			return
		}

		action()
	}
}
