package rdf

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

type Format string

const (
	FormatNTriples Format = "nt"
	FormatTurtle   Format = "ttl"
)

// ParseFormat normalizes a format name as given on the command line.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ttl", "turtle":
		return FormatTurtle, nil
	case "nt", "ntriples", "n-triples":
		return FormatNTriples, nil
	default:
		return "", errors.NewConfigError(fmt.Sprintf("unsupported format \"%s\"", value))
	}
}

// Prefix binds a short name to a namespace for the Turtle format.
type Prefix struct {
	Name      string
	Namespace string
}

// Serializer writes groups of triples to an output sink. Each call to WriteStatements
// renders the complete group before anything is written to the sink. Written groups
// are buffered until Flush or Close.
type Serializer interface {
	WriteStatements(triples []Triple) error
	Flush() error
	Close() error
}

type renderer interface {
	header() []byte
	render(buf *bytes.Buffer, triples []Triple)
}

type serializer struct {
	sink   io.WriteCloser
	writer *bufio.Writer
	r      renderer
	buf    bytes.Buffer

	err       error
	closeOnce sync.Once
	closeErr  error
}

// Open takes ownership of sink. The sink is closed by Close, which is safe to call
// more than once and must be called on every exit path.
func Open(sink io.WriteCloser, format Format, prefixes []Prefix) (Serializer, error) {
	var r renderer

	switch format {
	case FormatNTriples:
		r = &ntriplesRenderer{}
	case FormatTurtle:
		r = newTurtleRenderer(prefixes)
	default:
		return nil, errors.NewConfigError(fmt.Sprintf("unsupported format \"%s\"", format))
	}

	s := &serializer{
		sink:   sink,
		writer: bufio.NewWriterSize(sink, 64*1024),
		r:      r,
	}

	if h := r.header(); len(h) > 0 {
		if _, err := s.writer.Write(h); err != nil {
			s.err = errors.NewSinkWriteError(err)
			return s, s.err
		}
	}

	return s, nil
}

func (s *serializer) WriteStatements(triples []Triple) error {
	if s.err != nil {
		return s.err
	}

	if len(triples) == 0 {
		return nil
	}

	for _, t := range triples {
		if t.S == nil || t.P.Value == "" || t.O == nil {
			return fmt.Errorf("incomplete triple %v", t)
		}
	}

	s.buf.Reset()
	s.r.render(&s.buf, triples)

	if _, err := s.writer.Write(s.buf.Bytes()); err != nil {
		s.err = errors.NewSinkWriteError(err)
		return s.err
	}

	return nil
}

// Flush hands everything written so far to the sink.
func (s *serializer) Flush() error {
	if s.err != nil {
		return s.err
	}

	if err := s.writer.Flush(); err != nil {
		s.err = errors.NewSinkWriteError(err)
		return s.err
	}

	return nil
}

func (s *serializer) Close() error {
	s.closeOnce.Do(func() {
		var flushErr error
		if s.err == nil {
			flushErr = s.writer.Flush()
		}

		closeErr := s.sink.Close()

		if flushErr != nil {
			s.closeErr = errors.NewSinkWriteError(flushErr)
		} else if closeErr != nil {
			s.closeErr = errors.NewSinkWriteError(closeErr)
		}
	})

	return s.closeErr
}

type ntriplesRenderer struct{}

func (ntriplesRenderer) header() []byte { return nil }

func (ntriplesRenderer) render(buf *bytes.Buffer, triples []Triple) {
	for _, t := range triples {
		buf.WriteString(renderTerm(t.S))
		buf.WriteByte(' ')
		buf.WriteString(renderIRI(t.P))
		buf.WriteByte(' ')
		buf.WriteString(renderTerm(t.O))
		buf.WriteString(" .\n")
	}
}
