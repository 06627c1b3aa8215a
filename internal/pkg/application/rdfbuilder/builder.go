// Package rdfbuilder maps resolved Wikibase entities onto RDF triples using the
// Wikibase RDF mapping, in a full and a truthy flavor.
package rdfbuilder

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

// Builder is safe for concurrent use once constructed.
type Builder struct {
	vocab      *Vocabulary
	datatypes  map[wikibase.EntityID]string
	byProperty map[wikibase.EntityID]valueBuilder
}

// NewBuilder resolves the value builder of every known property up front. Properties
// that are missing from datatypes fall back to the datatype carried by the snak and
// then to the type of the data value.
func NewBuilder(vocab *Vocabulary, datatypes map[wikibase.EntityID]string) *Builder {
	b := &Builder{
		vocab:      vocab,
		datatypes:  datatypes,
		byProperty: make(map[wikibase.EntityID]valueBuilder, len(datatypes)),
	}

	for property, datatype := range datatypes {
		if vb, ok := datatypeBuilders[datatype]; ok {
			b.byProperty[property] = vb
		}
	}

	return b
}

func (b *Builder) Vocabulary() *Vocabulary {
	return b.vocab
}

// Build renders one resolved entity. Problems confined to a single value do not stop
// the entity from being rendered; they are returned next to the complete set of triples.
func (b *Builder) Build(rev *wikibase.EntityRevision, flavor Flavor) ([]rdf.Triple, []error) {
	if rev.IsRedirect() {
		return []rdf.Triple{
			rdf.NewTriple(b.vocab.EntityIRI(rev.ID), owlSameAs, b.vocab.EntityIRI(rev.RedirectTarget)),
		}, nil
	}

	if rev.Entity == nil {
		return nil, []error{fmt.Errorf("%s: revision %d has no content", rev.ID, rev.RevisionID)}
	}

	w := &entityWriter{
		b:        b,
		vocab:    b.vocab,
		flavor:   flavor,
		entity:   rev.Entity,
		subject:  b.vocab.EntityIRI(rev.Entity.ID),
		seen:     map[string]struct{}{},
		reported: map[string]struct{}{},
	}

	for _, p := range rev.Entity.Problems {
		w.problems = append(w.problems, fmt.Errorf("%s: %w", rev.Entity.ID, p))
	}

	statements := slices.Clone(rev.Entity.Statements)
	slices.SortStableFunc(statements, func(a, b wikibase.Statement) int {
		return a.Property().Compare(b.Property())
	})
	best := bestRanked(statements)

	if flavor == FullDump {
		w.metadata(rev)
	}

	w.add(w.subject, rdfType, entityTypeIRI(rev.Entity.ID.Kind()))
	w.terms()

	if rev.Entity.ID.Kind() == wikibase.KindProperty {
		w.propertyLinks()
	}

	for i, st := range statements {
		if best[i] {
			w.truthyStatement(st)
		}
	}

	if flavor == FullDump {
		for _, st := range statements {
			w.add(w.subject, b.vocab.Claim(st.Property()), b.vocab.StatementIRI(st.GUID))
		}
		for i, st := range statements {
			w.statement(st, best[i])
		}
	}

	w.sitelinks()

	if rev.Entity.ID.Kind() == wikibase.KindProperty {
		w.propertyDeclarations()
	}

	return w.triples, w.problems
}

func (b *Builder) builderFor(snak wikibase.Snak) (valueBuilder, bool) {
	if vb, ok := b.byProperty[snak.Property]; ok {
		return vb, true
	}
	if vb, ok := datatypeBuilders[snak.Datatype]; ok {
		return vb, true
	}
	if snak.Value != nil {
		if vb, ok := valueTypeBuilders[snak.Value.Type]; ok {
			return vb, true
		}
	}
	return valueBuilder{}, false
}

type entityWriter struct {
	b      *Builder
	vocab  *Vocabulary
	flavor Flavor
	entity *wikibase.Entity

	subject rdf.IRI
	triples []rdf.Triple
	// value and reference nodes already emitted for this entity
	seen     map[string]struct{}
	reported map[string]struct{}
	problems []error
}

func (w *entityWriter) add(s rdf.Term, p rdf.IRI, o rdf.Term) {
	w.triples = append(w.triples, rdf.NewTriple(s, p, o))
}

func (w *entityWriter) metadata(rev *wikibase.EntityRevision) {
	data := w.vocab.DataIRI(rev.ID)

	w.add(data, rdfType, schemaDataset)
	w.add(data, schemaAbout, w.subject)
	w.add(data, ccLicense, w.vocab.License())
	w.add(data, schemaSoftware, rdf.NewString(FormatVersion))

	if rev.RevisionID > 0 {
		w.add(data, schemaVersion, integer(rev.RevisionID))
	}

	if !rev.Timestamp.IsZero() {
		w.add(data, schemaModified, dateTime(rev.Timestamp))
	}

	w.add(data, wbStatements, integer(int64(len(w.entity.Statements))))
	w.add(data, wbSitelinks, integer(int64(len(w.entity.Sitelinks))))
}

func (w *entityWriter) terms() {
	e := w.entity

	for _, lang := range sortedKeys(e.Labels) {
		label := rdf.NewLangString(e.Labels[lang], lang)
		w.add(w.subject, rdfsLabel, label)
		w.add(w.subject, skosPrefLabel, label)
		w.add(w.subject, schemaName, label)
	}

	for _, lang := range sortedKeys(e.Descriptions) {
		w.add(w.subject, schemaDesc, rdf.NewLangString(e.Descriptions[lang], lang))
	}

	for _, lang := range sortedKeys(e.Aliases) {
		for _, alias := range e.Aliases[lang] {
			w.add(w.subject, skosAltLabel, rdf.NewLangString(alias, lang))
		}
	}
}

func (w *entityWriter) sitelinks() {
	links := slices.Clone(w.entity.Sitelinks)
	slices.SortStableFunc(links, func(a, b wikibase.Sitelink) int {
		switch {
		case a.Site < b.Site:
			return -1
		case a.Site > b.Site:
			return 1
		}
		return 0
	})

	for _, link := range links {
		site, ok := w.vocab.Site(link.Site)
		if !ok {
			continue
		}

		article := articleIRI(site, link.Title)
		w.add(article, rdfType, schemaArticle)
		w.add(article, schemaAbout, w.subject)

		if site.LanguageCode != "" {
			w.add(article, schemaInLanguage, rdf.NewString(site.LanguageCode))
		}

		w.add(article, schemaIsPartOf, siteIRI(site))

		if site.LanguageCode != "" {
			w.add(article, schemaName, rdf.NewLangString(link.Title, site.LanguageCode))
		} else {
			w.add(article, schemaName, rdf.NewString(link.Title))
		}

		for _, badge := range link.Badges {
			w.add(article, wbBadge, w.vocab.EntityIRI(badge))
		}
	}
}

// propertyLinks ties a property entity to its predicates. The truthy flavor only
// gets the type and the direct claim predicate.
func (w *entityWriter) propertyLinks() {
	p := w.entity.ID

	w.add(w.subject, wbPropertyType, ontologyType(w.propertyDatatype()))
	w.add(w.subject, wbDirectClaim, w.vocab.DirectClaim(p))

	if w.flavor != FullDump {
		return
	}

	w.add(w.subject, wbClaim, w.vocab.Claim(p))
	w.add(w.subject, wbStatementProp, w.vocab.StatementProperty(p))
	w.add(w.subject, wbStatementValue, w.vocab.StatementValue(p))
	w.add(w.subject, wbQualifier, w.vocab.Qualifier(p))
	w.add(w.subject, wbQualifierValue, w.vocab.QualifierValue(p))
	w.add(w.subject, wbReferenceProp, w.vocab.ReferenceProperty(p))
	w.add(w.subject, wbReferenceValue, w.vocab.ReferenceValue(p))
	w.add(w.subject, wbNovalue, w.vocab.NoValue(p))
}

func (w *entityWriter) propertyDeclarations() {
	p := w.entity.ID

	simpleKind := owlDatatypeProp
	if isObjectProperty(w.propertyDatatype()) {
		simpleKind = owlObjectProp
	}

	w.add(w.vocab.DirectClaim(p), rdfType, simpleKind)

	if w.flavor != FullDump {
		return
	}

	w.add(w.vocab.Claim(p), rdfType, owlObjectProp)
	w.add(w.vocab.StatementProperty(p), rdfType, simpleKind)
	w.add(w.vocab.StatementValue(p), rdfType, owlObjectProp)
	w.add(w.vocab.Qualifier(p), rdfType, simpleKind)
	w.add(w.vocab.QualifierValue(p), rdfType, owlObjectProp)
	w.add(w.vocab.ReferenceProperty(p), rdfType, simpleKind)
	w.add(w.vocab.ReferenceValue(p), rdfType, owlObjectProp)
	w.add(w.vocab.NoValue(p), rdfType, owlClass)
}

func (w *entityWriter) propertyDatatype() string {
	if w.entity.Datatype != "" {
		return w.entity.Datatype
	}
	return w.b.datatypes[w.entity.ID]
}

func (w *entityWriter) truthyStatement(st wikibase.Statement) {
	snak := st.MainSnak
	p := snak.Property

	switch snak.Type {
	case wikibase.SnakNoValue:
		w.add(w.subject, rdfType, w.vocab.NoValue(p))
	case wikibase.SnakSomeValue:
		w.add(w.subject, w.vocab.DirectClaim(p), w.skolem(st.GUID))
	default:
		term, _, _ := w.value(snak)
		w.add(w.subject, w.vocab.DirectClaim(p), term)
	}
}

// snakRole selects the predicates used for a snak depending on where it appears.
type snakRole struct {
	simple func(wikibase.EntityID) rdf.IRI
	value  func(wikibase.EntityID) rdf.IRI
}

func (w *entityWriter) statement(st wikibase.Statement, best bool) {
	node := w.vocab.StatementIRI(st.GUID)
	var pending []rdf.Triple

	w.add(node, rdfType, wbStatement)
	if best {
		w.add(node, rdfType, wbBestRank)
	}
	w.add(node, wbRank, rankIRI(st.Rank))

	main := snakRole{simple: w.vocab.StatementProperty, value: w.vocab.StatementValue}
	pending = w.snak(node, st.MainSnak, main, []string{st.GUID}, pending)

	qualifiers := sortedSnaks(st.Qualifiers)
	qualifier := snakRole{simple: w.vocab.Qualifier, value: w.vocab.QualifierValue}
	for i, q := range qualifiers {
		pending = w.snak(node, q, qualifier, []string{st.GUID, q.Property.String(), strconv.Itoa(i)}, pending)
	}

	for _, ref := range st.References {
		pending = w.reference(node, ref, pending)
	}

	w.triples = append(w.triples, pending...)
}

func (w *entityWriter) reference(statement rdf.IRI, ref wikibase.Reference, pending []rdf.Triple) []rdf.Triple {
	hash := ref.Hash
	if hash == "" {
		hash = referenceHash(ref)
	}

	node := w.vocab.ReferenceIRI(hash)
	w.add(statement, provDerivedFrom, node)

	if !w.firstTime(node.Value) {
		return pending
	}

	// the reference node is rendered on its own and queued behind the statement
	outer := w.triples
	w.triples = nil

	w.add(node, rdfType, wbReference)

	var values []rdf.Triple
	role := snakRole{simple: w.vocab.ReferenceProperty, value: w.vocab.ReferenceValue}
	for i, s := range sortedSnaks(ref.Snaks) {
		values = w.snak(node, s, role, []string{hash, s.Property.String(), strconv.Itoa(i)}, values)
	}

	pending = append(pending, w.triples...)
	pending = append(pending, values...)
	w.triples = outer

	return pending
}

// snak emits the triples of a snak on subject and appends any value node it needs
// to pending.
func (w *entityWriter) snak(subject rdf.IRI, snak wikibase.Snak, role snakRole, skolemParts []string, pending []rdf.Triple) []rdf.Triple {
	p := snak.Property

	switch snak.Type {
	case wikibase.SnakNoValue:
		w.add(subject, rdfType, w.vocab.NoValue(p))
		return pending
	case wikibase.SnakSomeValue:
		w.add(subject, role.simple(p), w.skolem(skolemParts...))
		return pending
	}

	term, vb, ok := w.value(snak)
	w.add(subject, role.simple(p), term)

	if !ok || vb.node == nil {
		return pending
	}

	node := w.vocab.ValueIRI(snak.Value.Hash())
	triples, err := vb.node(w.vocab, *snak.Value, node)
	if err != nil {
		return pending
	}

	w.add(subject, role.value(p), node)

	if w.firstTime(node.Value) {
		pending = append(pending, triples...)
	}

	return pending
}

// value renders the simple form of a value snak. Values that cannot be rendered by
// any builder become a plain literal holding the raw json.
func (w *entityWriter) value(snak wikibase.Snak) (rdf.Term, valueBuilder, bool) {
	if snak.Type != wikibase.SnakValue {
		w.problem(snak, "", fmt.Errorf("unknown snak type \"%s\"", snak.Type))
		return rdf.NewString(""), valueBuilder{}, false
	}

	if snak.Value == nil {
		w.problem(snak, "", fmt.Errorf("%s has no value", snak.Property))
		return rdf.NewString(""), valueBuilder{}, false
	}

	vb, ok := w.b.builderFor(snak)
	if !ok {
		w.problem(snak, snak.Value.Type, nil)
		return rdf.NewString(snak.Value.Compact()), vb, false
	}

	term, err := vb.simple(w.vocab, *snak.Value)
	if err != nil {
		w.problem(snak, snak.Value.Type, err)
		return rdf.NewString(snak.Value.Compact()), vb, false
	}

	return term, vb, true
}

func (w *entityWriter) problem(snak wikibase.Snak, valueType string, cause error) {
	key := snak.Property.String() + "\x00"
	if snak.Value != nil {
		key += snak.Value.Hash()
	}

	if _, ok := w.reported[key]; ok {
		return
	}
	w.reported[key] = struct{}{}

	err := errors.NewUnsupportedValueTypeError(valueType)
	if cause != nil {
		err = fmt.Errorf("%s %s: %w (%s)", w.entity.ID, snak.Property, err, cause.Error())
	} else {
		err = fmt.Errorf("%s %s: %w", w.entity.ID, snak.Property, err)
	}

	w.problems = append(w.problems, err)
}

func (w *entityWriter) firstTime(key string) bool {
	if _, ok := w.seen[key]; ok {
		return false
	}
	w.seen[key] = struct{}{}
	return true
}

// skolem names an unknown value. The name only depends on where the snak sits, so the
// same snak gets the same name in every flavor.
func (w *entityWriter) skolem(parts ...string) rdf.IRI {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return w.vocab.SkolemIRI(hex.EncodeToString(h.Sum(nil)))
}

func referenceHash(ref wikibase.Reference) string {
	h := sha1.New()
	for _, s := range ref.Snaks {
		h.Write([]byte(s.Property.String()))
		h.Write([]byte(s.Type))
		if s.Value != nil {
			h.Write([]byte(s.Value.Hash()))
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedSnaks(snaks []wikibase.Snak) []wikibase.Snak {
	sorted := slices.Clone(snaks)
	slices.SortStableFunc(sorted, func(a, b wikibase.Snak) int {
		return a.Property.Compare(b.Property)
	})
	return sorted
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dateTime(t time.Time) rdf.Literal {
	return rdf.NewTypedLiteral(t.UTC().Format("2006-01-02T15:04:05Z"), xsdDateTime)
}
