package main

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/application/dumper"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/application/rdfbuilder"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/cache"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/database"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/idlist"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/router"
	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/presentation/api/status"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/client"
	wberrors "github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
	"github.com/google/uuid"
)

const (
	appName string = "dump-rdf"
)

func main() {
	flags, err := parseExternalConfig(DefaultFlags(), os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, flags, os.Stdout)

	stop()
	os.Exit(code)
}

// run performs a dump and returns the exit code of the process.
func run(ctx context.Context, flags FlagMap, stdout io.Writer) int {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(ctx, appName, appVersion, flags[logFormat])
	defer cleanup()

	runID := uuid.NewString()

	summary, err := dump(ctx, flags, runID, stdout)
	if err != nil {
		log.Error("failed to start dump", "run_id", runID, "err", err.Error())
		return 1
	}

	if !summary.Succeeded() {
		return 1
	}

	return 0
}

type store struct {
	pager     wikibase.EntityIDPager
	lookup    wikibase.EntityRevisionLookup
	datatypes wikibase.DatatypeLookup
	sites     func(context.Context) ([]wikibase.Site, error)
	close     func()
}

func dump(ctx context.Context, flags FlagMap, runID string, stdout io.Writer) (dumper.Summary, error) {
	log := logging.GetFromContext(ctx)

	opts, err := generatorOptions(flags)
	if err != nil {
		return dumper.Summary{}, err
	}

	cfg, err := loadConfig(flags[configPath])
	if err != nil {
		return dumper.Summary{}, err
	}

	st, err := openStore(ctx, flags)
	if err != nil {
		return dumper.Summary{}, err
	}
	defer st.close()

	datatypes, err := st.datatypes.GetPropertyDatatypes(ctx)
	if err != nil {
		return dumper.Summary{}, fmt.Errorf("failed to load property datatypes: %w", err)
	}

	var sites []wikibase.Site
	if len(cfg.Sites) == 0 && st.sites != nil {
		sites, err = st.sites(ctx)
		if err != nil {
			return dumper.Summary{}, fmt.Errorf("failed to load sites: %w", err)
		}
	}

	vocab, err := cfg.Vocabulary(sites)
	if err != nil {
		return dumper.Summary{}, err
	}

	size, _ := flags.Int(batchSize, "batch-size")

	lookup := cache.New(st.lookup, 3*size)
	if err := lookup.Start(); err != nil {
		return dumper.Summary{}, err
	}
	defer lookup.Stop()

	sink, err := openOutput(flags[outputPath], stdout)
	if err != nil {
		return dumper.Summary{}, err
	}

	metrics := dumper.NewMetrics()
	opts = append(opts, dumper.WithMetrics(metrics), dumper.RunID(runID))

	g := dumper.New(st.pager, lookup, lookup, rdfbuilder.NewBuilder(vocab, datatypes), opts...)

	if addr := flags[statusAddress]; addr != "" {
		r := router.New(appName)
		status.RegisterHandlers(ctx, r, g, metrics.Gatherer())

		srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status endpoint failed", "err", err.Error())
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	summary := g.Run(ctx, sink)

	hits, misses := lookup.Stats()
	log.Debug("prefetch cache", "hits", hits, "misses", misses)

	if path := flags[metricsPath]; path != "" {
		if err := metrics.WriteToTextfile(path); err != nil {
			log.Error("failed to write metrics", "path", path, "err", err.Error())
		}
	}

	return summary, nil
}

// generatorOptions validates the command line before anything is read from a store.
func generatorOptions(flags FlagMap) ([]dumper.Option, error) {
	opts := []dumper.Option{
		dumper.Format(flags[outputFormat]),
		dumper.Flavor(flags[flavor]),
		dumper.Redirects(redirectMode(flags)),
	}

	size, err := flags.Int(batchSize, "batch-size")
	if err != nil {
		return nil, err
	}

	maxEntities, err := flags.Int(limit, "limit")
	if err != nil {
		return nil, err
	}

	factor, err := flags.Int(shardingFactor, "sharding-factor")
	if err != nil {
		return nil, err
	}

	n, err := flags.Int(shard, "shard")
	if err != nil {
		return nil, err
	}

	opts = append(opts, dumper.BatchSize(size), dumper.Limit(maxEntities), dumper.Sharding(factor, n))

	if flags.Bool(quiet) {
		opts = append(opts, dumper.Quiet())
	}

	if err := dumper.Validate(opts...); err != nil {
		return nil, err
	}

	return opts, nil
}

func redirectMode(flags FlagMap) wikibase.RedirectMode {
	if flags.Bool(redirectOnly) {
		return wikibase.OnlyRedirects
	}
	return wikibase.IncludeRedirects
}

func loadConfig(path string) (*dumper.Config, error) {
	if path == "" {
		return dumper.DefaultConfig(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, wberrors.NewConfigError(fmt.Sprintf("failed to open config: %s", err.Error()))
	}
	defer f.Close()

	cfg, err := dumper.LoadConfiguration(f)
	if err != nil {
		return nil, wberrors.NewConfigError(fmt.Sprintf("failed to load config: %s", err.Error()))
	}

	return cfg, nil
}

func openStore(ctx context.Context, flags FlagMap) (*store, error) {
	var from wikibase.EntityID
	if flags[startAfter] != "" {
		id, err := wikibase.ParseEntityID(flags[startAfter])
		if err != nil {
			return nil, wberrors.NewConfigError(fmt.Sprintf("invalid --from: %s", err.Error()))
		}
		from = id
	}

	kinds, err := parseKinds(flags[entityTypes])
	if err != nil {
		return nil, err
	}

	var pager wikibase.EntityIDPager

	if flags[listPath] != "" {
		f, err := os.Open(flags[listPath])
		if err != nil {
			return nil, wberrors.NewConfigError(fmt.Sprintf("failed to open list file: %s", err.Error()))
		}
		defer f.Close()

		pager, err = idlist.NewPager(f, from)
		if err != nil {
			return nil, err
		}

		if len(kinds) > 0 {
			logging.GetFromContext(ctx).Warn("entity types are not applied to list files")
		}
	}

	switch flags[source] {
	case "db":
		pool, err := database.Connect(ctx, database.LoadConfiguration(ctx))
		if err != nil {
			return nil, wberrors.NewStoreUnavailableError("failed to connect to database", err)
		}

		if pager == nil {
			pager = database.NewEntityIDPager(pool, redirectMode(flags), database.StartAfter(from), database.OnlyKinds(kinds...))
		}

		info := database.NewPropertyInfo(pool)

		return &store{
			pager:     pager,
			lookup:    database.NewRevisionLookup(pool),
			datatypes: info,
			sites:     info.GetSites,
			close:     pool.Close,
		}, nil

	case "api":
		if pager == nil {
			return nil, wberrors.NewConfigError("source api needs a --list-file")
		}

		c := client.NewWikibaseClient(flags[apiURL],
			client.UserAgent(appName+"/"+buildinfo.SourceVersion()),
		)

		return &store{
			pager:     pager,
			lookup:    c,
			datatypes: c,
			close:     func() {},
		}, nil

	default:
		return nil, wberrors.NewConfigError(fmt.Sprintf("unknown source \"%s\"", flags[source]))
	}
}

func parseKinds(value string) ([]wikibase.Kind, error) {
	kinds := []wikibase.Kind{}

	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		kind, err := wikibase.ParseKind(name)
		if err != nil {
			return nil, wberrors.NewConfigError(err.Error())
		}

		kinds = append(kinds, kind)
	}

	return kinds, nil
}

// openOutput returns stdout when path is empty or "-". Files ending in .gz are compressed.
func openOutput(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, wberrors.NewConfigError(fmt.Sprintf("failed to create output: %s", err.Error()))
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	return &gzipFile{Writer: gzip.NewWriter(f), file: f}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

type gzipFile struct {
	*gzip.Writer
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Writer.Close()
	if closeErr := g.file.Close(); err == nil {
		err = closeErr
	}
	return err
}
