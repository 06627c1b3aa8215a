package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/application/dumper"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	outputFormat FlagType = iota
	flavor
	redirectOnly

	outputPath
	configPath
	metricsPath
	listPath

	batchSize
	limit
	shardingFactor
	shard
	entityTypes
	startAfter

	source
	apiURL

	statusAddress
	quiet
	logFormat
)

func DefaultFlags() FlagMap {
	return FlagMap{
		outputFormat:   "ttl",
		flavor:         "full-dump",
		redirectOnly:   "false",
		batchSize:      strconv.Itoa(dumper.DefaultBatchSize),
		limit:          "0",
		shardingFactor: "1",
		shard:          "0",
		source:         "db",
		apiURL:         "https://www.wikidata.org",
		quiet:          "false",
		logFormat:      "json",
	}
}

// parseExternalConfig reads command line arguments on top of the defaults in flags.
func parseExternalConfig(flags FlagMap, args []string, output io.Writer) (FlagMap, error) {
	fs := flag.NewFlagSet("dump-rdf", flag.ContinueOnError)
	fs.SetOutput(output)

	str := func(key FlagType, name, usage string) *string {
		return fs.String(name, flags[key], usage)
	}
	boolean := func(key FlagType, name, usage string) *bool {
		return fs.Bool(name, flags[key] == "true", usage)
	}

	values := map[FlagType]*string{
		outputFormat:   str(outputFormat, "format", "output format, ttl or nt"),
		flavor:         str(flavor, "flavor", "dump flavor, full-dump or truthy-dump"),
		outputPath:     str(outputPath, "output", "file to write to, compressed when ending in .gz (default stdout)"),
		configPath:     str(configPath, "config", "yaml file with uri bases, license and sites"),
		metricsPath:    str(metricsPath, "metrics-file", "write prometheus metrics to this file when done"),
		listPath:       str(listPath, "list-file", "file with the entity ids to dump, one per line"),
		batchSize:      str(batchSize, "batch-size", "number of ids per page"),
		limit:          str(limit, "limit", "stop after this many entities, 0 for no limit"),
		shardingFactor: str(shardingFactor, "sharding-factor", "number of shards the dump is split into"),
		shard:          str(shard, "shard", "the shard to dump, from 0 to sharding-factor-1"),
		entityTypes:    str(entityTypes, "entity-type", "comma separated list of entity types to dump (default all)"),
		startAfter:     str(startAfter, "from", "continue a dump after this entity id"),
		source:         str(source, "source", "entity store, db or api"),
		apiURL:         str(apiURL, "api-url", "root url of the wiki when source is api"),
		statusAddress:  str(statusAddress, "status-addr", "serve health, progress and metrics on this address"),
		logFormat:      str(logFormat, "log-format", "log format, json or text"),
	}

	bools := map[FlagType]*bool{
		redirectOnly: boolean(redirectOnly, "redirect-only", "dump only redirects"),
		quiet:        boolean(quiet, "quiet", "do not report progress"),
	}

	if err := fs.Parse(args); err != nil {
		return nil, errors.NewConfigError(err.Error())
	}

	if fs.NArg() > 0 {
		return nil, errors.NewConfigError(fmt.Sprintf("unexpected argument \"%s\"", fs.Arg(0)))
	}

	result := FlagMap{}
	for key, value := range values {
		result[key] = *value
	}
	for key, value := range bools {
		result[key] = strconv.FormatBool(*value)
	}

	return result, nil
}

func (flags FlagMap) Int(key FlagType, name string) (int, error) {
	value, err := strconv.Atoi(flags[key])
	if err != nil {
		return 0, errors.NewConfigError(fmt.Sprintf("%s must be a number, was \"%s\"", name, flags[key]))
	}
	return value, nil
}

func (flags FlagMap) Bool(key FlagType) bool {
	return flags[key] == "true"
}
