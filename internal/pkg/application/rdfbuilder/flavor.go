package rdfbuilder

import (
	"fmt"

	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

type Flavor int

const (
	FullDump Flavor = iota
	TruthyDump
)

func (f Flavor) String() string {
	if f == TruthyDump {
		return "truthy-dump"
	}
	return "full-dump"
}

func ParseFlavor(value string) (Flavor, error) {
	switch value {
	case "full-dump":
		return FullDump, nil
	case "truthy-dump":
		return TruthyDump, nil
	default:
		return FullDump, errors.NewConfigError(fmt.Sprintf("unknown flavor \"%s\"", value))
	}
}
