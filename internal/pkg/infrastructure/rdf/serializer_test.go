package rdf

import (
	"bytes"
	"errors"
	"testing"

	wberrors "github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
	"github.com/matryer/is"
)

func TestNTriples(t *testing.T) {
	is := is.New(t)
	sink := &testSink{}

	s, err := Open(sink, FormatNTriples, testPrefixes)
	is.NoErr(err)

	is.NoErr(s.WriteStatements(testTriples()))
	is.NoErr(s.Close())

	is.Equal(sink.String(), ""+
		"<http://example.org/entity/Q1> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://wikiba.se/ontology#Item> .\n"+
		"<http://example.org/entity/Q1> <http://www.w3.org/2000/01/rdf-schema#label> \"Universe\"@en .\n"+
		"<http://example.org/entity/Q1> <http://www.w3.org/2000/01/rdf-schema#label> \"Universum\"@de .\n"+
		"<http://example.org/entity/Q1> <http://example.org/prop/direct/P1082> \"+12\"^^<http://www.w3.org/2001/XMLSchema#decimal> .\n"+
		"<http://example.org/entity/statement/Q1-abc> <http://wikiba.se/ontology#rank> <http://wikiba.se/ontology#NormalRank> .\n")
}

func TestTurtleGroupsBySubjectAndPredicate(t *testing.T) {
	is := is.New(t)
	sink := &testSink{}

	s, err := Open(sink, FormatTurtle, testPrefixes)
	is.NoErr(err)

	is.NoErr(s.WriteStatements(testTriples()))
	is.NoErr(s.Close())

	is.Equal(sink.String(), ""+
		"@prefix rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#> .\n"+
		"@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .\n"+
		"@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .\n"+
		"@prefix wikibase: <http://wikiba.se/ontology#> .\n"+
		"@prefix wd: <http://example.org/entity/> .\n"+
		"@prefix s: <http://example.org/entity/statement/> .\n"+
		"@prefix wdt: <http://example.org/prop/direct/> .\n"+
		"\n"+
		"wd:Q1 a wikibase:Item ;\n"+
		"\trdfs:label \"Universe\"@en ,\n"+
		"\t\t\"Universum\"@de ;\n"+
		"\twdt:P1082 \"+12\"^^xsd:decimal .\n"+
		"\n"+
		"s:Q1-abc wikibase:rank wikibase:NormalRank .\n"+
		"\n")
}

func TestTurtleFallsBackToFullIRIs(t *testing.T) {
	is := is.New(t)
	sink := &testSink{}

	s, _ := Open(sink, FormatTurtle, testPrefixes)
	is.NoErr(s.WriteStatements([]Triple{
		NewTriple(NewIRI("http://example.org/entity/Q1.x"), NewIRI("http://other.org/p"), NewIRI("https://en.wikipedia.org/wiki/A b")),
	}))
	is.NoErr(s.Close())

	is.True(bytes.HasSuffix(sink.Bytes(), []byte("<http://example.org/entity/Q1.x> <http://other.org/p> <https://en.wikipedia.org/wiki/A%20b> .\n\n")))
}

func TestLiteralEscaping(t *testing.T) {
	is := is.New(t)

	l := NewString("say \"hi\"\n\\\x01")
	is.Equal(renderTerm(l), `"say \"hi\"\n\\\u0001"`)
}

func TestCloseIsIdempotentAndClosesTheSinkOnce(t *testing.T) {
	is := is.New(t)
	sink := &testSink{}

	s, err := Open(sink, FormatNTriples, nil)
	is.NoErr(err)

	is.NoErr(s.Close())
	is.NoErr(s.Close())
	is.Equal(sink.closed, 1)
}

func TestWriteFailureIsASinkWriteError(t *testing.T) {
	is := is.New(t)
	sink := &testSink{failWrites: true}

	s, err := Open(sink, FormatNTriples, nil)
	is.NoErr(err)

	// the writer is buffered, so the failure surfaces once the buffer is flushed
	big := make([]Triple, 0, 2000)
	for i := 0; i < 2000; i++ {
		big = append(big, testTriples()...)
	}

	err = s.WriteStatements(big)
	is.True(errors.Is(err, wberrors.ErrSinkWrite))

	err = s.WriteStatements(testTriples())
	is.True(errors.Is(err, wberrors.ErrSinkWrite)) // should stay failed

	s.Close()
	is.Equal(sink.closed, 1)
}

func TestFlushHandsWrittenStatementsToTheSink(t *testing.T) {
	is := is.New(t)
	sink := &testSink{}

	s, err := Open(sink, FormatNTriples, nil)
	is.NoErr(err)

	is.NoErr(s.WriteStatements(testTriples()))
	is.Equal(sink.Len(), 0)

	is.NoErr(s.Flush())
	is.Equal(bytes.Count(sink.Bytes(), []byte("\n")), len(testTriples()))

	is.NoErr(s.Close())
}

func TestFlushFailureIsASinkWriteError(t *testing.T) {
	is := is.New(t)
	sink := &testSink{failWrites: true}

	s, err := Open(sink, FormatNTriples, nil)
	is.NoErr(err)

	is.NoErr(s.WriteStatements(testTriples()))

	err = s.Flush()
	is.True(errors.Is(err, wberrors.ErrSinkWrite))

	err = s.WriteStatements(testTriples())
	is.True(errors.Is(err, wberrors.ErrSinkWrite))

	s.Close()
	is.Equal(sink.closed, 1)
}

func TestParseFormat(t *testing.T) {
	is := is.New(t)

	f, err := ParseFormat("turtle")
	is.NoErr(err)
	is.Equal(f, FormatTurtle)

	f, err = ParseFormat("NT")
	is.NoErr(err)
	is.Equal(f, FormatNTriples)

	_, err = ParseFormat("rdfxml")
	is.True(errors.Is(err, wberrors.ErrConfig))
}

var testPrefixes = []Prefix{
	{Name: "rdf", Namespace: "http://www.w3.org/1999/02/22-rdf-syntax-ns#"},
	{Name: "rdfs", Namespace: "http://www.w3.org/2000/01/rdf-schema#"},
	{Name: "xsd", Namespace: "http://www.w3.org/2001/XMLSchema#"},
	{Name: "wikibase", Namespace: "http://wikiba.se/ontology#"},
	{Name: "wd", Namespace: "http://example.org/entity/"},
	{Name: "s", Namespace: "http://example.org/entity/statement/"},
	{Name: "wdt", Namespace: "http://example.org/prop/direct/"},
}

func testTriples() []Triple {
	q1 := NewIRI("http://example.org/entity/Q1")
	label := NewIRI("http://www.w3.org/2000/01/rdf-schema#label")

	return []Triple{
		NewTriple(q1, NewIRI(rdfType), NewIRI("http://wikiba.se/ontology#Item")),
		NewTriple(q1, label, NewLangString("Universe", "en")),
		NewTriple(q1, label, NewLangString("Universum", "de")),
		NewTriple(q1, NewIRI("http://example.org/prop/direct/P1082"), NewTypedLiteral("+12", NewIRI("http://www.w3.org/2001/XMLSchema#decimal"))),
		NewTriple(NewIRI("http://example.org/entity/statement/Q1-abc"), NewIRI("http://wikiba.se/ontology#rank"), NewIRI("http://wikiba.se/ontology#NormalRank")),
	}
}

type testSink struct {
	bytes.Buffer
	closed     int
	failWrites bool
}

func (s *testSink) Write(p []byte) (int, error) {
	if s.failWrites {
		return 0, errors.New("disk full")
	}
	return s.Buffer.Write(p)
}

func (s *testSink) Close() error {
	s.closed++
	return nil
}
