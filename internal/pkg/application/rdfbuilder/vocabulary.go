package rdfbuilder

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

// Fixed namespaces that do not depend on the repository being dumped.
const (
	NamespaceRDF      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceRDFS     = "http://www.w3.org/2000/01/rdf-schema#"
	NamespaceOWL      = "http://www.w3.org/2002/07/owl#"
	NamespaceXSD      = "http://www.w3.org/2001/XMLSchema#"
	NamespaceOntology = "http://wikiba.se/ontology#"
	NamespaceSchema   = "http://schema.org/"
	NamespaceSKOS     = "http://www.w3.org/2004/02/skos/core#"
	NamespaceProv     = "http://www.w3.org/ns/prov#"
	NamespaceCC       = "http://creativecommons.org/ns#"
	NamespaceGeo      = "http://www.opengis.net/ont/geosparql#"

	OntologyURL    = "http://wikiba.se/ontology-1.0.owl"
	DefaultLicense = "http://creativecommons.org/publicdomain/zero/1.0/"
	MathMLDatatype = "http://www.w3.org/1998/Math/MathML"

	CommonsFilePath = "http://commons.wikimedia.org/wiki/Special:FilePath/"
	CommonsDataPage = "http://commons.wikimedia.org/data/main/"
)

var (
	rdfType          = iri(NamespaceRDF, "type")
	rdfsLabel        = iri(NamespaceRDFS, "label")
	owlSameAs        = iri(NamespaceOWL, "sameAs")
	owlObjectProp    = iri(NamespaceOWL, "ObjectProperty")
	owlDatatypeProp  = iri(NamespaceOWL, "DatatypeProperty")
	owlClass         = iri(NamespaceOWL, "Class")
	owlOntology      = iri(NamespaceOWL, "Ontology")
	owlImports       = iri(NamespaceOWL, "imports")
	xsdInteger       = iri(NamespaceXSD, "integer")
	xsdDecimal       = iri(NamespaceXSD, "decimal")
	xsdDouble        = iri(NamespaceXSD, "double")
	xsdDateTime      = iri(NamespaceXSD, "dateTime")
	schemaDataset    = iri(NamespaceSchema, "Dataset")
	schemaArticle    = iri(NamespaceSchema, "Article")
	schemaAbout      = iri(NamespaceSchema, "about")
	schemaVersion    = iri(NamespaceSchema, "version")
	schemaModified   = iri(NamespaceSchema, "dateModified")
	schemaName       = iri(NamespaceSchema, "name")
	schemaDesc       = iri(NamespaceSchema, "description")
	schemaInLanguage = iri(NamespaceSchema, "inLanguage")
	schemaIsPartOf   = iri(NamespaceSchema, "isPartOf")
	schemaSoftware   = iri(NamespaceSchema, "softwareVersion")
	skosPrefLabel    = iri(NamespaceSKOS, "prefLabel")
	skosAltLabel     = iri(NamespaceSKOS, "altLabel")
	provDerivedFrom  = iri(NamespaceProv, "wasDerivedFrom")
	ccLicense        = iri(NamespaceCC, "license")
	geoWKTLiteral    = iri(NamespaceGeo, "wktLiteral")
)

// Ontology terms.
var (
	wbItem           = iri(NamespaceOntology, "Item")
	wbProperty       = iri(NamespaceOntology, "Property")
	wbLexeme         = iri(NamespaceOntology, "Lexeme")
	wbStatement      = iri(NamespaceOntology, "Statement")
	wbReference      = iri(NamespaceOntology, "Reference")
	wbBestRank       = iri(NamespaceOntology, "BestRank")
	wbRank           = iri(NamespaceOntology, "rank")
	wbBadge          = iri(NamespaceOntology, "badge")
	wbDump           = iri(NamespaceOntology, "Dump")
	wbStatements     = iri(NamespaceOntology, "statements")
	wbSitelinks      = iri(NamespaceOntology, "sitelinks")
	wbPropertyType   = iri(NamespaceOntology, "propertyType")
	wbDirectClaim    = iri(NamespaceOntology, "directClaim")
	wbClaim          = iri(NamespaceOntology, "claim")
	wbStatementProp  = iri(NamespaceOntology, "statementProperty")
	wbStatementValue = iri(NamespaceOntology, "statementValue")
	wbQualifier      = iri(NamespaceOntology, "qualifier")
	wbQualifierValue = iri(NamespaceOntology, "qualifierValue")
	wbReferenceProp  = iri(NamespaceOntology, "reference")
	wbReferenceValue = iri(NamespaceOntology, "referenceValue")
	wbNovalue        = iri(NamespaceOntology, "novalue")
	wbTimeValue      = iri(NamespaceOntology, "TimeValue")
	wbTimeValueProp  = iri(NamespaceOntology, "timeValue")
	wbTimePrecision  = iri(NamespaceOntology, "timePrecision")
	wbTimeTimezone   = iri(NamespaceOntology, "timeTimezone")
	wbTimeCalendar   = iri(NamespaceOntology, "timeCalendarModel")
	wbQuantityValue  = iri(NamespaceOntology, "QuantityValue")
	wbQuantityAmount = iri(NamespaceOntology, "quantityAmount")
	wbQuantityUpper  = iri(NamespaceOntology, "quantityUpperBound")
	wbQuantityLower  = iri(NamespaceOntology, "quantityLowerBound")
	wbQuantityUnit   = iri(NamespaceOntology, "quantityUnit")
	wbGlobeValue     = iri(NamespaceOntology, "GlobecoordinateValue")
	wbGeoLatitude    = iri(NamespaceOntology, "geoLatitude")
	wbGeoLongitude   = iri(NamespaceOntology, "geoLongitude")
	wbGeoPrecision   = iri(NamespaceOntology, "geoPrecision")
	wbGeoGlobe       = iri(NamespaceOntology, "geoGlobe")
	wbRankDeprecated = iri(NamespaceOntology, "DeprecatedRank")
	wbRankNormal     = iri(NamespaceOntology, "NormalRank")
	wbRankPreferred  = iri(NamespaceOntology, "PreferredRank")
)

const (
	earthGlobe   = "http://www.wikidata.org/entity/Q2"
	unitlessUnit = "1"
)

func iri(ns, local string) rdf.IRI {
	return rdf.NewIRI(ns + local)
}

// Vocabulary maps entity, statement and property roles onto IRIs. It is built once per
// run and is read-only afterwards, so it is safe for concurrent use.
type Vocabulary struct {
	conceptBase string
	dataBase    string

	statementNS      string
	referenceNS      string
	valueNS          string
	directClaimNS    string
	claimNS          string
	statementPropNS  string
	statementValueNS string
	qualifierNS      string
	qualifierValueNS string
	referencePropNS  string
	referenceValueNS string
	novalueNS        string
	skolemNS         string

	license string
	sites   map[string]wikibase.Site
}

// NewVocabulary derives all repository namespaces from the concept base URI
// (e.g. http://www.wikidata.org/) and the data URI used for Special:EntityData.
func NewVocabulary(conceptBase, dataBase, license string, sites []wikibase.Site) (*Vocabulary, error) {
	for _, u := range []string{conceptBase, dataBase} {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, errors.NewConfigError(fmt.Sprintf("invalid base uri \"%s\"", u))
		}
	}

	if !strings.HasSuffix(conceptBase, "/") {
		conceptBase += "/"
	}

	if !strings.HasSuffix(dataBase, "/") {
		dataBase += "/"
	}

	if license == "" {
		license = DefaultLicense
	}

	v := &Vocabulary{
		conceptBase:      conceptBase + "entity/",
		dataBase:         dataBase,
		statementNS:      conceptBase + "entity/statement/",
		referenceNS:      conceptBase + "reference/",
		valueNS:          conceptBase + "value/",
		directClaimNS:    conceptBase + "prop/direct/",
		claimNS:          conceptBase + "prop/",
		statementPropNS:  conceptBase + "prop/statement/",
		statementValueNS: conceptBase + "prop/statement/value/",
		qualifierNS:      conceptBase + "prop/qualifier/",
		qualifierValueNS: conceptBase + "prop/qualifier/value/",
		referencePropNS:  conceptBase + "prop/reference/",
		referenceValueNS: conceptBase + "prop/reference/value/",
		novalueNS:        conceptBase + "prop/novalue/",
		skolemNS:         conceptBase + ".well-known/genid/",
		license:          license,
		sites:            map[string]wikibase.Site{},
	}

	for _, s := range sites {
		if s.GlobalID == "" {
			return nil, errors.NewConfigError("site without global id")
		}
		v.sites[s.GlobalID] = s
	}

	return v, nil
}

// Prefixes lists the namespace bindings used by the Turtle serializer, in a fixed order.
func (v *Vocabulary) Prefixes() []rdf.Prefix {
	return []rdf.Prefix{
		{Name: "rdf", Namespace: NamespaceRDF},
		{Name: "xsd", Namespace: NamespaceXSD},
		{Name: "ontolex", Namespace: "http://www.w3.org/ns/lemon/ontolex#"},
		{Name: "dct", Namespace: "http://purl.org/dc/terms/"},
		{Name: "rdfs", Namespace: NamespaceRDFS},
		{Name: "owl", Namespace: NamespaceOWL},
		{Name: "wikibase", Namespace: NamespaceOntology},
		{Name: "skos", Namespace: NamespaceSKOS},
		{Name: "schema", Namespace: NamespaceSchema},
		{Name: "cc", Namespace: NamespaceCC},
		{Name: "geo", Namespace: NamespaceGeo},
		{Name: "prov", Namespace: NamespaceProv},
		{Name: "wdata", Namespace: v.dataBase},
		{Name: "s", Namespace: v.statementNS},
		{Name: "ref", Namespace: v.referenceNS},
		{Name: "v", Namespace: v.valueNS},
		{Name: "wd", Namespace: v.conceptBase},
		{Name: "wdt", Namespace: v.directClaimNS},
		{Name: "p", Namespace: v.claimNS},
		{Name: "ps", Namespace: v.statementPropNS},
		{Name: "psv", Namespace: v.statementValueNS},
		{Name: "pq", Namespace: v.qualifierNS},
		{Name: "pqv", Namespace: v.qualifierValueNS},
		{Name: "pr", Namespace: v.referencePropNS},
		{Name: "prv", Namespace: v.referenceValueNS},
		{Name: "wdno", Namespace: v.novalueNS},
	}
}

func (v *Vocabulary) EntityIRI(id wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.conceptBase + id.String())
}

func (v *Vocabulary) DataIRI(id wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.dataBase + id.String())
}

// StatementIRI turns a statement guid such as Q42$F078E5B3-... into a local name.
func (v *Vocabulary) StatementIRI(guid string) rdf.IRI {
	return rdf.NewIRI(v.statementNS + strings.Replace(guid, "$", "-", 1))
}

func (v *Vocabulary) ReferenceIRI(hash string) rdf.IRI {
	return rdf.NewIRI(v.referenceNS + hash)
}

func (v *Vocabulary) ValueIRI(hash string) rdf.IRI {
	return rdf.NewIRI(v.valueNS + hash)
}

func (v *Vocabulary) SkolemIRI(hash string) rdf.IRI {
	return rdf.NewIRI(v.skolemNS + hash)
}

func (v *Vocabulary) DirectClaim(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.directClaimNS + p.String())
}

func (v *Vocabulary) Claim(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.claimNS + p.String())
}

func (v *Vocabulary) StatementProperty(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.statementPropNS + p.String())
}

func (v *Vocabulary) StatementValue(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.statementValueNS + p.String())
}

func (v *Vocabulary) Qualifier(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.qualifierNS + p.String())
}

func (v *Vocabulary) QualifierValue(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.qualifierValueNS + p.String())
}

func (v *Vocabulary) ReferenceProperty(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.referencePropNS + p.String())
}

func (v *Vocabulary) ReferenceValue(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.referenceValueNS + p.String())
}

func (v *Vocabulary) NoValue(p wikibase.EntityID) rdf.IRI {
	return rdf.NewIRI(v.novalueNS + p.String())
}

func (v *Vocabulary) License() rdf.IRI {
	return rdf.NewIRI(v.license)
}

func (v *Vocabulary) Site(globalID string) (wikibase.Site, bool) {
	s, ok := v.sites[globalID]
	return s, ok
}

func rankIRI(r wikibase.Rank) rdf.IRI {
	switch r {
	case wikibase.RankDeprecated:
		return wbRankDeprecated
	case wikibase.RankPreferred:
		return wbRankPreferred
	default:
		return wbRankNormal
	}
}

func entityTypeIRI(k wikibase.Kind) rdf.IRI {
	switch k {
	case wikibase.KindProperty:
		return wbProperty
	case wikibase.KindLexeme:
		return wbLexeme
	default:
		return wbItem
	}
}
