package rdf

import (
	"bytes"
	"slices"
	"strings"
)

const rdfType string = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

type turtleRenderer struct {
	prefixes []Prefix
	byLength []Prefix
}

func newTurtleRenderer(prefixes []Prefix) *turtleRenderer {
	byLength := slices.Clone(prefixes)
	slices.SortStableFunc(byLength, func(a, b Prefix) int {
		return len(b.Namespace) - len(a.Namespace)
	})

	return &turtleRenderer{prefixes: prefixes, byLength: byLength}
}

func (r *turtleRenderer) header() []byte {
	if len(r.prefixes) == 0 {
		return nil
	}

	var b bytes.Buffer
	for _, p := range r.prefixes {
		b.WriteString("@prefix " + p.Name + ": <" + escapeIRI(p.Namespace) + "> .\n")
	}
	b.WriteByte('\n')

	return b.Bytes()
}

// render groups consecutive triples sharing a subject with ";" and consecutive
// triples sharing subject and predicate with ",". Every call ends with a complete
// statement so that a truncated stream is still a parseable prefix.
func (r *turtleRenderer) render(buf *bytes.Buffer, triples []Triple) {
	var prevS, prevP string

	for i, t := range triples {
		s := r.term(t.S)
		p := r.predicate(t.P)
		o := r.term(t.O)

		switch {
		case i == 0:
			buf.WriteString(s + " " + p + " " + o)
		case s == prevS && p == prevP:
			buf.WriteString(" ,\n\t\t" + o)
		case s == prevS:
			buf.WriteString(" ;\n\t" + p + " " + o)
		default:
			buf.WriteString(" .\n\n" + s + " " + p + " " + o)
		}

		prevS, prevP = s, p
	}

	buf.WriteString(" .\n\n")
}

func (r *turtleRenderer) predicate(iri IRI) string {
	if iri.Value == rdfType {
		return "a"
	}
	return r.iri(iri)
}

func (r *turtleRenderer) iri(iri IRI) string {
	if qname, ok := r.abbreviate(iri.Value); ok {
		return qname
	}
	return renderIRI(iri)
}

func (r *turtleRenderer) term(term Term) string {
	switch value := term.(type) {
	case IRI:
		return r.iri(value)
	case Literal:
		if value.Lang != "" {
			return quoteLiteral(value.Lexical) + "@" + value.Lang
		}
		if value.Datatype.Value != "" {
			return quoteLiteral(value.Lexical) + "^^" + r.iri(value.Datatype)
		}
		return quoteLiteral(value.Lexical)
	default:
		return renderTerm(term)
	}
}

// abbreviate picks the longest matching namespace whose remainder is a valid local name.
func (r *turtleRenderer) abbreviate(iri string) (string, bool) {
	for _, p := range r.byLength {
		if !strings.HasPrefix(iri, p.Namespace) {
			continue
		}

		local := iri[len(p.Namespace):]
		if !isLocalName(local) {
			continue
		}

		return p.Name + ":" + local, true
	}

	return "", false
}

func isLocalName(local string) bool {
	if local == "" {
		return false
	}

	for i := 0; i < len(local); i++ {
		c := local[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		case c == '-' && i > 0:
		default:
			return false
		}
	}

	return true
}
