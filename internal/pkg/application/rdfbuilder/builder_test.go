package rdfbuilder

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	wberrors "github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
	"github.com/matryer/is"
)

func TestEveryTruthyTripleIsAlsoInTheFullFlavor(t *testing.T) {
	is, b := testSetup(t)
	rev := berlin()

	full, _ := b.Build(rev, FullDump)
	truthy, _ := b.Build(rev, TruthyDump)

	is.True(len(truthy) > 0)
	is.True(len(full) > len(truthy))

	for _, triple := range truthy {
		if !slices.Contains(full, triple) {
			t.Errorf("truthy triple missing from full flavor: %s", triple)
		}
	}
}

func TestEveryTruthyPropertyTripleIsAlsoInTheFullFlavor(t *testing.T) {
	is, b := testSetup(t)
	rev := wikibase.NewEntityRevision(
		wikibase.New(wikibase.MustParseEntityID("P1082"), wikibase.Datatype("quantity"), wikibase.Label("en", "population")),
		10, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	)

	full, _ := b.Build(rev, FullDump)
	truthy, _ := b.Build(rev, TruthyDump)

	for _, triple := range truthy {
		is.True(slices.Contains(full, triple)) // truthy triple missing from full flavor
	}

	p := wd("P1082")
	is.True(slices.Contains(truthy, rdf.NewTriple(p, wbPropertyType, iri(NamespaceOntology, "Quantity"))))
	is.True(slices.Contains(truthy, rdf.NewTriple(p, wbDirectClaim, rdf.NewIRI("http://www.wikidata.org/prop/direct/P1082"))))
	is.True(slices.Contains(truthy, rdf.NewTriple(rdf.NewIRI("http://www.wikidata.org/prop/direct/P1082"), rdfType, owlDatatypeProp)))
	is.True(!slices.Contains(truthy, rdf.NewTriple(p, wbClaim, rdf.NewIRI("http://www.wikidata.org/prop/P1082"))))
	is.True(slices.Contains(full, rdf.NewTriple(p, wbClaim, rdf.NewIRI("http://www.wikidata.org/prop/P1082"))))
}

func TestTruthyKeepsOnlyBestRankedStatements(t *testing.T) {
	is, b := testSetup(t)

	truthy, _ := b.Build(berlin(), TruthyDump)
	population := rdf.NewIRI("http://www.wikidata.org/prop/direct/P1082")

	is.True(slices.Contains(truthy, rdf.NewTriple(wd("Q64"), population, decimal("+3644826"))))
	is.True(!slices.Contains(truthy, rdf.NewTriple(wd("Q64"), population, decimal("+3520031")))) // normal rank loses to preferred
	is.True(!slices.Contains(truthy, rdf.NewTriple(wd("Q64"), population, decimal("+100"))))     // deprecated is never truthy

	for _, triple := range truthy {
		is.True(triple.P != wbRank)
		is.True(triple.O != wbStatement)
	}
}

func TestFullFlavorMarksRanks(t *testing.T) {
	is, b := testSetup(t)

	full, _ := b.Build(berlin(), FullDump)

	is.True(slices.Contains(full, rdf.NewTriple(statement("Q64-pop-deprecated"), wbRank, wbRankDeprecated)))
	is.True(!slices.Contains(full, rdf.NewTriple(statement("Q64-pop-deprecated"), rdfType, wbBestRank)))
	is.True(!slices.Contains(full, rdf.NewTriple(statement("Q64-pop-normal"), rdfType, wbBestRank)))
	is.True(slices.Contains(full, rdf.NewTriple(statement("Q64-pop-preferred"), rdfType, wbBestRank)))
	is.True(slices.Contains(full, rdf.NewTriple(statement("Q64-country"), rdfType, wbBestRank)))
}

func TestBuildIsDeterministic(t *testing.T) {
	is, b := testSetup(t)

	for _, flavor := range []Flavor{FullDump, TruthyDump} {
		first, _ := b.Build(berlin(), flavor)
		second, _ := b.Build(berlin(), flavor)
		is.Equal(first, second)
	}
}

func TestRedirectIsASingleSameAsTriple(t *testing.T) {
	is, b := testSetup(t)

	rev := wikibase.NewRedirectRevision(wikibase.MustParseEntityID("Q2"), wikibase.MustParseEntityID("Q1"), 5, time.Now())

	for _, flavor := range []Flavor{FullDump, TruthyDump} {
		triples, problems := b.Build(rev, flavor)
		is.Equal(len(problems), 0)
		is.Equal(triples, []rdf.Triple{rdf.NewTriple(wd("Q2"), owlSameAs, wd("Q1"))})
	}
}

func TestUnsupportedValueTypeFallsBackToRawLiteral(t *testing.T) {
	is, b := testSetup(t)

	raw := wikibase.DataValue{Type: "mystery", Value: []byte(`{"x": 1}`)}
	e := wikibase.New(wikibase.MustParseEntityID("Q7"),
		wikibase.WithStatement(wikibase.NewStatement("Q7$a", wikibase.ValueSnak(wikibase.MustParseEntityID("P999"), "", raw))),
		wikibase.WithStatement(wikibase.NewStatement("Q7$b", wikibase.ValueSnak(wikibase.MustParseEntityID("P17"), "wikibase-item", wikibase.NewEntityIDValue(wikibase.MustParseEntityID("Q183"))))),
	)

	triples, problems := b.Build(wikibase.NewEntityRevision(e, 1, time.Now()), FullDump)

	is.Equal(len(problems), 1)
	is.True(errors.Is(problems[0], wberrors.ErrUnsupportedValueType))

	is.True(slices.Contains(triples, rdf.NewTriple(wd("Q7"), rdf.NewIRI("http://www.wikidata.org/prop/direct/P999"), rdf.NewString(`{"x":1}`))))
	is.True(slices.Contains(triples, rdf.NewTriple(wd("Q7"), rdf.NewIRI("http://www.wikidata.org/prop/direct/P17"), wd("Q183"))))
}

func TestValueSnakWithoutValueFallsBackAndKeepsTheEntity(t *testing.T) {
	is, b := testSetup(t)

	e, err := wikibase.NewFromJSON([]byte(`{"id":"Q1","type":"item","claims":{
		"P1":[{"id":"Q1$1","rank":"normal","mainsnak":{"snaktype":"value","property":"P1","datatype":"wikibase-item",
			"datavalue":{"type":"wikibase-entityid","value":{"entity-type":"item","numeric-id":5,"id":"Q5"}}}}],
		"P2":[{"id":"Q1$2","rank":"normal","mainsnak":{"snaktype":"value","property":"P2","datatype":"string"}}]}}`))
	is.NoErr(err)

	for _, flavor := range []Flavor{FullDump, TruthyDump} {
		triples, problems := b.Build(wikibase.NewEntityRevision(e, 1, time.Now()), flavor)

		is.Equal(len(problems), 1)
		is.True(errors.Is(problems[0], wberrors.ErrUnsupportedValueType))

		is.True(slices.Contains(triples, rdf.NewTriple(wd("Q1"), rdf.NewIRI("http://www.wikidata.org/prop/direct/P1"), wd("Q5"))))
		is.True(slices.Contains(triples, rdf.NewTriple(wd("Q1"), rdf.NewIRI("http://www.wikidata.org/prop/direct/P2"), rdf.NewString(""))))
	}
}

func TestDroppedPartsOfTheSourceAreReported(t *testing.T) {
	is, b := testSetup(t)

	e, err := wikibase.NewFromJSON([]byte(`{"id":"Q1","type":"item","claims":{
		"P1":[{"id":"Q1$1","rank":"normal","mainsnak":{"snaktype":"novalue","property":"P1"}}],
		"P2":[{"id":"Q1$2","rank":"normal","mainsnak":{"snaktype":"novalue","property":"bad"}}]}}`))
	is.NoErr(err)

	triples, problems := b.Build(wikibase.NewEntityRevision(e, 1, time.Now()), FullDump)

	is.Equal(len(problems), 1)
	is.True(len(triples) > 0)
}

func TestRevisionWithoutContentIsAProblem(t *testing.T) {
	is, b := testSetup(t)

	rev := &wikibase.EntityRevision{ID: wikibase.MustParseEntityID("Q1"), RevisionID: 3}

	triples, problems := b.Build(rev, FullDump)

	is.Equal(len(triples), 0)
	is.Equal(len(problems), 1)
}

func TestDatatypeLookupTakesPrecedenceOverValueType(t *testing.T) {
	is := is.New(t)
	vocab := testVocabulary(is)

	b := NewBuilder(vocab, map[wikibase.EntityID]string{
		wikibase.MustParseEntityID("P856"): "url",
	})

	e := wikibase.New(wikibase.MustParseEntityID("Q7"),
		wikibase.WithStatement(wikibase.NewStatement("Q7$a", wikibase.ValueSnak(wikibase.MustParseEntityID("P856"), "", wikibase.NewStringValue("https://example.org/")))),
	)

	triples, problems := b.Build(wikibase.NewEntityRevision(e, 1, time.Now()), TruthyDump)
	is.Equal(len(problems), 0)
	is.True(slices.Contains(triples, rdf.NewTriple(wd("Q7"), rdf.NewIRI("http://www.wikidata.org/prop/direct/P856"), rdf.NewIRI("https://example.org/"))))
}

func TestStatementsAreOrderedByPropertyThenSourceOrder(t *testing.T) {
	is, b := testSetup(t)

	full, _ := b.Build(berlin(), FullDump)

	country := indexOf(full, statement("Q64-country"), rdfType, wbStatement)
	preferred := indexOf(full, statement("Q64-pop-preferred"), rdfType, wbStatement)
	normal := indexOf(full, statement("Q64-pop-normal"), rdfType, wbStatement)
	deprecated := indexOf(full, statement("Q64-pop-deprecated"), rdfType, wbStatement)

	is.True(country >= 0)
	is.True(country < preferred)
	is.True(preferred < normal)
	is.True(normal < deprecated)

	// rank, main value and qualifiers come in that order within a statement
	rank := indexOf(full, statement("Q64-pop-normal"), wbRank, wbRankNormal)
	value := indexOf(full, statement("Q64-pop-normal"), rdf.NewIRI("http://www.wikidata.org/prop/statement/P1082"), decimal("+3520031"))
	is.True(normal < rank)
	is.True(rank < value)
}

func TestValueAndReferenceNodesAreEmittedOnce(t *testing.T) {
	is, b := testSetup(t)

	full, _ := b.Build(berlin(), FullDump)

	refs := 0
	derived := 0
	timeNodes := 0

	for _, triple := range full {
		if triple.P == rdfType && triple.O == wbReference {
			refs++
		}
		if triple.P == provDerivedFrom {
			derived++
		}
		if triple.P == rdfType && triple.O == wbTimeValue {
			timeNodes++
		}
	}

	is.Equal(refs, 1)      // one shared reference
	is.Equal(derived, 2)   // referenced from two statements
	is.Equal(timeNodes, 1) // the same point in time qualifies two statements
}

func TestSomeValueUsesTheSameNameInBothFlavors(t *testing.T) {
	is, b := testSetup(t)

	full, _ := b.Build(berlin(), FullDump)
	truthy, _ := b.Build(berlin(), TruthyDump)

	var direct, main rdf.Term
	for _, triple := range truthy {
		if triple.P.Value == "http://www.wikidata.org/prop/direct/P36" {
			direct = triple.O
		}
	}
	for _, triple := range full {
		if triple.P.Value == "http://www.wikidata.org/prop/statement/P36" {
			main = triple.O
		}
	}

	is.True(direct != nil)
	is.Equal(direct, main)
}

func TestNoValueIsAClassMembership(t *testing.T) {
	is, b := testSetup(t)

	truthy, _ := b.Build(berlin(), TruthyDump)
	is.True(slices.Contains(truthy, rdf.NewTriple(wd("Q64"), rdfType, rdf.NewIRI("http://www.wikidata.org/prop/novalue/P1549"))))
}

func TestSitelinksOfUnknownSitesAreSkipped(t *testing.T) {
	is, b := testSetup(t)

	truthy, _ := b.Build(berlin(), TruthyDump)
	article := rdf.NewIRI("https://en.wikipedia.org/wiki/Berlin")

	is.True(slices.Contains(truthy, rdf.NewTriple(article, rdfType, schemaArticle)))
	is.True(slices.Contains(truthy, rdf.NewTriple(article, schemaIsPartOf, rdf.NewIRI("https://en.wikipedia.org/"))))
	is.True(slices.Contains(truthy, rdf.NewTriple(article, schemaName, rdf.NewLangString("Berlin", "en"))))

	articles := 0
	for _, triple := range truthy {
		if triple.O == schemaArticle {
			articles++
		}
	}
	is.Equal(articles, 1)
}

func TestCoordinateAndQuantityValues(t *testing.T) {
	is, b := testSetup(t)

	full, _ := b.Build(berlin(), FullDump)

	is.True(slices.Contains(full, rdf.NewTriple(wd("Q64"), rdf.NewIRI("http://www.wikidata.org/prop/direct/P625"), rdf.NewTypedLiteral("Point(13.383333 52.516667)", geoWKTLiteral))))

	var unit rdf.Term
	for _, triple := range full {
		if triple.P == wbQuantityUnit {
			unit = triple.O
		}
	}
	is.Equal(unit, wd("Q199"))
}

func TestDumpHeader(t *testing.T) {
	is, b := testSetup(t)

	header := b.DumpHeader(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	is.True(slices.Contains(header, rdf.NewTriple(wbDump, ccLicense, rdf.NewIRI(DefaultLicense))))
	is.True(slices.Contains(header, rdf.NewTriple(wbDump, schemaModified, rdf.NewTypedLiteral("2024-05-01T12:00:00Z", xsdDateTime))))
}

func TestDateTimeLexical(t *testing.T) {
	is := is.New(t)

	for input, expected := range map[string]string{
		"+1952-03-00T00:00:00Z":        "1952-03-01T00:00:00Z",
		"+2001-00-00T00:00:00Z":        "2001-01-01T00:00:00Z",
		"-0500-01-01T00:00:00Z":        "-0500-01-01T00:00:00Z",
		"+00000002013-07-16T00:00:00Z": "2013-07-16T00:00:00Z",
	} {
		actual, err := dateTimeLexical(input)
		is.NoErr(err)
		is.Equal(actual, expected)
	}

	_, err := dateTimeLexical("yesterday")
	is.True(err != nil)
}

func TestParseFlavor(t *testing.T) {
	is := is.New(t)

	f, err := ParseFlavor("truthy-dump")
	is.NoErr(err)
	is.Equal(f, TruthyDump)

	_, err = ParseFlavor("partial-dump")
	is.True(errors.Is(err, wberrors.ErrConfig))
}

func TestBestStatements(t *testing.T) {
	is := is.New(t)

	p1 := wikibase.MustParseEntityID("P1")
	p2 := wikibase.MustParseEntityID("P2")
	v := wikibase.NewStringValue("x")

	best := BestStatements([]wikibase.Statement{
		wikibase.NewStatement("a", wikibase.ValueSnak(p1, "string", v), wikibase.WithRank(wikibase.RankDeprecated)),
		wikibase.NewStatement("b", wikibase.ValueSnak(p1, "string", v)),
		wikibase.NewStatement("c", wikibase.ValueSnak(p2, "string", v), wikibase.WithRank(wikibase.RankDeprecated)),
	})

	is.Equal(len(best), 1)
	is.Equal(best[0].GUID, "b")
}

func testSetup(t *testing.T) (*is.I, *Builder) {
	is := is.New(t)
	vocab := testVocabulary(is)

	return is, NewBuilder(vocab, map[wikibase.EntityID]string{
		wikibase.MustParseEntityID("P17"):   "wikibase-item",
		wikibase.MustParseEntityID("P1082"): "quantity",
		wikibase.MustParseEntityID("P585"):  "time",
		wikibase.MustParseEntityID("P625"):  "globe-coordinate",
	})
}

func testVocabulary(is *is.I) *Vocabulary {
	vocab, err := NewVocabulary(
		"http://www.wikidata.org/",
		"https://www.wikidata.org/wiki/Special:EntityData/",
		"",
		[]wikibase.Site{{GlobalID: "enwiki", LanguageCode: "en", PagePath: "https://en.wikipedia.org/wiki/$1"}},
	)
	is.NoErr(err)
	return vocab
}

func berlin() *wikibase.EntityRevision {
	id := wikibase.MustParseEntityID

	pointInTime := wikibase.NewTimeValue(wikibase.TimeValue{
		Time: "+2019-12-31T00:00:00Z", Precision: 11, CalendarModel: "http://www.wikidata.org/entity/Q1985727",
	})
	quantity := func(amount string) wikibase.DataValue {
		return wikibase.NewQuantityValue(wikibase.QuantityValue{Amount: amount, Unit: "1"})
	}
	precision := 0.000277778

	e := wikibase.New(id("Q64"),
		wikibase.Label("en", "Berlin"),
		wikibase.Label("de", "Berlin"),
		wikibase.Description("en", "capital and largest city of Germany"),
		wikibase.Alias("en", "Berlin, Germany"),
		wikibase.Link("enwiki", "Berlin"),
		wikibase.Link("xxwiki", "Berlin"),
		wikibase.WithStatement(wikibase.NewStatement("Q64$pop-preferred",
			wikibase.ValueSnak(id("P1082"), "quantity", quantity("+3644826")),
			wikibase.WithRank(wikibase.RankPreferred),
		)),
		wikibase.WithStatement(wikibase.NewStatement("Q64$pop-normal",
			wikibase.ValueSnak(id("P1082"), "quantity", quantity("+3520031")),
			wikibase.Qualifier(wikibase.ValueSnak(id("P585"), "time", pointInTime)),
			wikibase.WithReference("ref1", wikibase.ValueSnak(id("P143"), "wikibase-item", wikibase.NewEntityIDValue(id("Q328")))),
		)),
		wikibase.WithStatement(wikibase.NewStatement("Q64$pop-deprecated",
			wikibase.ValueSnak(id("P1082"), "quantity", quantity("+100")),
			wikibase.WithRank(wikibase.RankDeprecated),
		)),
		wikibase.WithStatement(wikibase.NewStatement("Q64$country",
			wikibase.ValueSnak(id("P17"), "wikibase-item", wikibase.NewEntityIDValue(id("Q183"))),
			wikibase.Qualifier(wikibase.ValueSnak(id("P585"), "time", pointInTime)),
			wikibase.WithReference("ref1", wikibase.ValueSnak(id("P143"), "wikibase-item", wikibase.NewEntityIDValue(id("Q328")))),
		)),
		wikibase.WithStatement(wikibase.NewStatement("Q64$capital-of",
			wikibase.SomeValueSnak(id("P36")),
		)),
		wikibase.WithStatement(wikibase.NewStatement("Q64$twins",
			wikibase.NoValueSnak(id("P1549")),
		)),
		wikibase.WithStatement(wikibase.NewStatement("Q64$coord",
			wikibase.ValueSnak(id("P625"), "globe-coordinate", wikibase.NewGlobeCoordinateValue(wikibase.GlobeCoordinateValue{
				Latitude: 52.516667, Longitude: 13.383333, Precision: &precision, Globe: "http://www.wikidata.org/entity/Q2",
			})),
		)),
	)

	return wikibase.NewEntityRevision(e, 123456, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
}

func wd(id string) rdf.IRI {
	return rdf.NewIRI("http://www.wikidata.org/entity/" + id)
}

func statement(local string) rdf.IRI {
	return rdf.NewIRI("http://www.wikidata.org/entity/statement/" + local)
}

func decimal(amount string) rdf.Literal {
	return rdf.NewTypedLiteral(amount, xsdDecimal)
}

func indexOf(triples []rdf.Triple, s rdf.Term, p rdf.IRI, o rdf.Term) int {
	return slices.Index(triples, rdf.NewTriple(s, p, o))
}
