package dumper

import (
	"fmt"
	"time"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/application/rdfbuilder"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

const (
	DefaultBatchSize        int = 100
	DefaultProgressInterval int = 1000
)

type options struct {
	format           string
	flavor           string
	redirectMode     wikibase.RedirectMode
	batchSize        int
	limit            int
	shardingFactor   int
	shard            int
	quiet            bool
	progressInterval int
	retryInterval    time.Duration
	metrics          *Metrics
	runID            string
	now              func() time.Time
}

type Option func(*options)

func newOptions(opts ...Option) options {
	o := options{
		format:           string(rdf.FormatTurtle),
		flavor:           rdfbuilder.FullDump.String(),
		batchSize:        DefaultBatchSize,
		shardingFactor:   1,
		progressInterval: DefaultProgressInterval,
		retryInterval:    500 * time.Millisecond,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Validate reports the first option that would make Run fail with a configuration
// error, without touching any collaborator.
func Validate(opts ...Option) error {
	o := newOptions(opts...)

	if err := o.validate(); err != nil {
		return err
	}

	if _, err := rdfbuilder.ParseFlavor(o.flavor); err != nil {
		return err
	}

	if _, err := rdf.ParseFormat(o.format); err != nil {
		return err
	}

	return nil
}

func Format(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

func Flavor(flavor string) Option {
	return func(o *options) {
		o.flavor = flavor
	}
}

// Redirects tells the generator which redirect mode the pager was created with.
// Revisions that do not match it are skipped, which matters for pagers that
// cannot filter on their own.
func Redirects(mode wikibase.RedirectMode) Option {
	return func(o *options) {
		o.redirectMode = mode
	}
}

func BatchSize(size int) Option {
	return func(o *options) {
		o.batchSize = size
	}
}

// Limit stops the dump after this many entities. Zero means no limit.
func Limit(limit int) Option {
	return func(o *options) {
		o.limit = limit
	}
}

// Sharding keeps only the ids whose numeric part modulo factor equals shard.
func Sharding(factor, shard int) Option {
	return func(o *options) {
		o.shardingFactor = factor
		o.shard = shard
	}
}

func Quiet() Option {
	return func(o *options) {
		o.quiet = true
	}
}

func ProgressInterval(entities int) Option {
	return func(o *options) {
		o.progressInterval = entities
	}
}

func RetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.retryInterval = d
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func RunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

func Clock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func (o *options) validate() error {
	if o.batchSize < 1 {
		return errors.NewConfigError(fmt.Sprintf("batch size must be positive, was %d", o.batchSize))
	}

	if o.limit < 0 {
		return errors.NewConfigError(fmt.Sprintf("limit must not be negative, was %d", o.limit))
	}

	if o.shardingFactor < 1 || o.shard < 0 || o.shard >= o.shardingFactor {
		return errors.NewConfigError(fmt.Sprintf("shard %d is not valid for sharding factor %d", o.shard, o.shardingFactor))
	}

	return nil
}

func (o *options) inShard(id wikibase.EntityID) bool {
	return o.shardingFactor == 1 || id.Number()%uint64(o.shardingFactor) == uint64(o.shard)
}
