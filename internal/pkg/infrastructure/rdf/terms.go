// Package rdf holds a compact RDF term model and streaming serializers for the
// N-Triples and Turtle formats.
package rdf

import (
	"fmt"
	"strings"
)

type TermKind uint8

const (
	TermIRI TermKind = iota
	TermBlankNode
	TermLiteral
)

// Term is a value that can appear in a triple.
type Term interface {
	Kind() TermKind
	String() string
}

type IRI struct {
	Value string
}

func (i IRI) Kind() TermKind { return TermIRI }
func (i IRI) String() string { return i.Value }

type BlankNode struct {
	ID string
}

func (b BlankNode) Kind() TermKind { return TermBlankNode }
func (b BlankNode) String() string { return "_:" + b.ID }

// Literal is a plain, language tagged or typed literal. Lang and Datatype are
// mutually exclusive.
type Literal struct {
	Lexical  string
	Datatype IRI
	Lang     string
}

func (l Literal) Kind() TermKind { return TermLiteral }

func (l Literal) String() string {
	if l.Lang != "" {
		return fmt.Sprintf("%q@%s", l.Lexical, l.Lang)
	}
	if l.Datatype.Value != "" {
		return fmt.Sprintf("%q^^<%s>", l.Lexical, l.Datatype.Value)
	}
	return fmt.Sprintf("%q", l.Lexical)
}

type Triple struct {
	S Term
	P IRI
	O Term
}

func (t Triple) String() string {
	return renderTerm(t.S) + " " + renderIRI(t.P) + " " + renderTerm(t.O) + " ."
}

func NewIRI(value string) IRI {
	return IRI{Value: value}
}

func NewString(s string) Literal {
	return Literal{Lexical: s}
}

func NewLangString(s, lang string) Literal {
	return Literal{Lexical: s, Lang: lang}
}

func NewTypedLiteral(s string, datatype IRI) Literal {
	return Literal{Lexical: s, Datatype: datatype}
}

func NewTriple(s Term, p IRI, o Term) Triple {
	return Triple{S: s, P: p, O: o}
}

func renderIRI(iri IRI) string {
	return "<" + escapeIRI(iri.Value) + ">"
}

func renderTerm(term Term) string {
	switch value := term.(type) {
	case IRI:
		return renderIRI(value)
	case BlankNode:
		return value.String()
	case Literal:
		if value.Lang != "" {
			return quoteLiteral(value.Lexical) + "@" + value.Lang
		}
		if value.Datatype.Value != "" {
			return quoteLiteral(value.Lexical) + "^^" + renderIRI(value.Datatype)
		}
		return quoteLiteral(value.Lexical)
	default:
		return ""
	}
}

// quoteLiteral escapes a lexical form using only the escapes shared by
// N-Triples and Turtle.
func quoteLiteral(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')

	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u%04X`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}

	sb.WriteByte('"')
	return sb.String()
}

// escapeIRI percent encodes the characters that may not appear in an IRIREF.
func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"{}|^`\\ ") && !hasControl(s) {
		return s
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c == 0x7f || strings.IndexByte("<>\"{}|^`\\", c) >= 0 {
			fmt.Fprintf(&sb, "%%%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func hasControl(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return true
		}
	}
	return false
}
