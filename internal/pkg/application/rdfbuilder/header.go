package rdfbuilder

import (
	"time"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
)

// FormatVersion is the version of the RDF mapping produced by this package.
const FormatVersion = "1.0.0"

// DumpHeader describes the dump as a whole and is written once, before the first entity.
func (b *Builder) DumpHeader(modified time.Time) []rdf.Triple {
	return []rdf.Triple{
		rdf.NewTriple(wbDump, rdfType, schemaDataset),
		rdf.NewTriple(wbDump, rdfType, owlOntology),
		rdf.NewTriple(wbDump, ccLicense, b.vocab.License()),
		rdf.NewTriple(wbDump, schemaSoftware, rdf.NewString(FormatVersion)),
		rdf.NewTriple(wbDump, schemaModified, dateTime(modified)),
		rdf.NewTriple(wbDump, owlImports, rdf.NewIRI(OntologyURL)),
	}
}
