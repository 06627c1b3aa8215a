package rdfbuilder

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
)

// valueBuilder renders a data value for one property datatype. simple produces the
// object used by wdt:, ps:, pq: and pr:. node, when set, produces the triples of a
// full value node that psv:, pqv: and prv: point to.
type valueBuilder struct {
	ontologyType   string
	objectProperty bool

	simple func(v *Vocabulary, dv wikibase.DataValue) (rdf.Term, error)
	node   func(v *Vocabulary, dv wikibase.DataValue, subject rdf.IRI) ([]rdf.Triple, error)
}

var datatypeBuilders = map[string]valueBuilder{
	"wikibase-item":     {ontologyType: "WikibaseItem", objectProperty: true, simple: entityValue},
	"wikibase-property": {ontologyType: "WikibaseProperty", objectProperty: true, simple: entityValue},
	"wikibase-lexeme":   {ontologyType: "WikibaseLexeme", objectProperty: true, simple: entityValue},
	"string":            {ontologyType: "String", simple: stringValue},
	"external-id":       {ontologyType: "ExternalId", simple: stringValue},
	"musical-notation":  {ontologyType: "MusicalNotation", simple: stringValue},
	"url":               {ontologyType: "Url", objectProperty: true, simple: urlValue},
	"commonsMedia":      {ontologyType: "CommonsMedia", objectProperty: true, simple: commonsValue(CommonsFilePath)},
	"geo-shape":         {ontologyType: "GeoShape", objectProperty: true, simple: commonsValue(CommonsDataPage)},
	"tabular-data":      {ontologyType: "TabularData", objectProperty: true, simple: commonsValue(CommonsDataPage)},
	"math":              {ontologyType: "Math", simple: mathValue},
	"monolingualtext":   {ontologyType: "Monolingualtext", simple: monolingualValue},
	"time":              {ontologyType: "Time", simple: timeValue, node: timeNode},
	"quantity":          {ontologyType: "Quantity", simple: quantityValue, node: quantityNode},
	"globe-coordinate":  {ontologyType: "GlobeCoordinate", simple: coordinateValue, node: coordinateNode},
}

// valueTypeBuilders are used when the datatype of a property is not known.
var valueTypeBuilders = map[string]valueBuilder{
	wikibase.ValueTypeString:          datatypeBuilders["string"],
	wikibase.ValueTypeEntityID:        datatypeBuilders["wikibase-item"],
	wikibase.ValueTypeMonolingualText: datatypeBuilders["monolingualtext"],
	wikibase.ValueTypeTime:            datatypeBuilders["time"],
	wikibase.ValueTypeQuantity:        datatypeBuilders["quantity"],
	wikibase.ValueTypeGlobeCoordinate: datatypeBuilders["globe-coordinate"],
}

// ontologyType names the wikibase:propertyType of a datatype. Datatypes without a
// builder are still declared, using the camel cased datatype id.
func ontologyType(datatype string) rdf.IRI {
	if vb, ok := datatypeBuilders[datatype]; ok {
		return iri(NamespaceOntology, vb.ontologyType)
	}

	var sb strings.Builder
	for _, part := range strings.Split(datatype, "-") {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}

	return iri(NamespaceOntology, sb.String())
}

func isObjectProperty(datatype string) bool {
	return datatypeBuilders[datatype].objectProperty
}

func entityValue(v *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	id, err := dv.AsEntityID()
	if err != nil {
		return nil, err
	}
	return v.EntityIRI(id), nil
}

func stringValue(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	s, err := dv.AsString()
	if err != nil {
		return nil, err
	}
	return rdf.NewString(s), nil
}

func urlValue(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	s, err := dv.AsString()
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("not an absolute url \"%s\"", s)
	}

	return rdf.NewIRI(s), nil
}

func commonsValue(base string) func(*Vocabulary, wikibase.DataValue) (rdf.Term, error) {
	return func(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
		s, err := dv.AsString()
		if err != nil {
			return nil, err
		}
		return rdf.NewIRI(base + url.PathEscape(strings.ReplaceAll(s, " ", "_"))), nil
	}
}

func mathValue(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	s, err := dv.AsString()
	if err != nil {
		return nil, err
	}
	return rdf.NewTypedLiteral(s, rdf.NewIRI(MathMLDatatype)), nil
}

func monolingualValue(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	m, err := dv.AsMonolingualText()
	if err != nil {
		return nil, err
	}

	if m.Language == "" {
		return nil, fmt.Errorf("monolingual text without language")
	}

	return rdf.NewLangString(m.Text, m.Language), nil
}

func timeValue(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	t, err := dv.AsTime()
	if err != nil {
		return nil, err
	}

	lexical, err := dateTimeLexical(t.Time)
	if err != nil {
		return nil, err
	}

	return rdf.NewTypedLiteral(lexical, xsdDateTime), nil
}

func timeNode(v *Vocabulary, dv wikibase.DataValue, subject rdf.IRI) ([]rdf.Triple, error) {
	t, err := dv.AsTime()
	if err != nil {
		return nil, err
	}

	lexical, err := dateTimeLexical(t.Time)
	if err != nil {
		return nil, err
	}

	triples := []rdf.Triple{
		rdf.NewTriple(subject, rdfType, wbTimeValue),
		rdf.NewTriple(subject, wbTimeValueProp, rdf.NewTypedLiteral(lexical, xsdDateTime)),
		rdf.NewTriple(subject, wbTimePrecision, integer(int64(t.Precision))),
		rdf.NewTriple(subject, wbTimeTimezone, integer(int64(t.Timezone))),
	}

	if t.CalendarModel != "" {
		triples = append(triples, rdf.NewTriple(subject, wbTimeCalendar, rdf.NewIRI(t.CalendarModel)))
	}

	return triples, nil
}

// dateTimeLexical turns a wikibase timestamp like +1952-03-00T00:00:00Z into an
// xsd:dateTime lexical form. Unknown months and days become 01.
func dateTimeLexical(t string) (string, error) {
	sign := ""
	s := strings.TrimPrefix(t, "+")
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	date, clock, ok := strings.Cut(s, "T")
	if !ok || clock == "" {
		return "", fmt.Errorf("malformed time \"%s\"", t)
	}

	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed time \"%s\"", t)
	}

	year := strings.TrimLeft(parts[0], "0")
	for len(year) < 4 {
		year = "0" + year
	}

	for i := 1; i < 3; i++ {
		if parts[i] == "00" {
			parts[i] = "01"
		}
		if _, err := strconv.Atoi(parts[i]); err != nil || len(parts[i]) != 2 {
			return "", fmt.Errorf("malformed time \"%s\"", t)
		}
	}

	return sign + year + "-" + parts[1] + "-" + parts[2] + "T" + clock, nil
}

func quantityValue(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	q, err := dv.AsQuantity()
	if err != nil {
		return nil, err
	}
	return rdf.NewTypedLiteral(q.Amount, xsdDecimal), nil
}

func quantityNode(v *Vocabulary, dv wikibase.DataValue, subject rdf.IRI) ([]rdf.Triple, error) {
	q, err := dv.AsQuantity()
	if err != nil {
		return nil, err
	}

	triples := []rdf.Triple{
		rdf.NewTriple(subject, rdfType, wbQuantityValue),
		rdf.NewTriple(subject, wbQuantityAmount, rdf.NewTypedLiteral(q.Amount, xsdDecimal)),
	}

	if q.UpperBound != nil {
		triples = append(triples, rdf.NewTriple(subject, wbQuantityUpper, rdf.NewTypedLiteral(*q.UpperBound, xsdDecimal)))
	}

	if q.LowerBound != nil {
		triples = append(triples, rdf.NewTriple(subject, wbQuantityLower, rdf.NewTypedLiteral(*q.LowerBound, xsdDecimal)))
	}

	unit := rdf.NewIRI(q.Unit)
	if q.Unit == unitlessUnit || q.Unit == "" {
		unit = v.EntityIRI(wikibase.NewEntityID(wikibase.KindItem, 199))
	}

	return append(triples, rdf.NewTriple(subject, wbQuantityUnit, unit)), nil
}

func coordinateValue(_ *Vocabulary, dv wikibase.DataValue) (rdf.Term, error) {
	c, err := dv.AsGlobeCoordinate()
	if err != nil {
		return nil, err
	}

	point := "Point(" + float(c.Longitude) + " " + float(c.Latitude) + ")"
	if c.Globe != "" && c.Globe != earthGlobe {
		point = "<" + c.Globe + "> " + point
	}

	return rdf.NewTypedLiteral(point, geoWKTLiteral), nil
}

func coordinateNode(_ *Vocabulary, dv wikibase.DataValue, subject rdf.IRI) ([]rdf.Triple, error) {
	c, err := dv.AsGlobeCoordinate()
	if err != nil {
		return nil, err
	}

	triples := []rdf.Triple{
		rdf.NewTriple(subject, rdfType, wbGlobeValue),
		rdf.NewTriple(subject, wbGeoLatitude, rdf.NewTypedLiteral(float(c.Latitude), xsdDouble)),
		rdf.NewTriple(subject, wbGeoLongitude, rdf.NewTypedLiteral(float(c.Longitude), xsdDouble)),
	}

	if c.Precision != nil {
		triples = append(triples, rdf.NewTriple(subject, wbGeoPrecision, rdf.NewTypedLiteral(float(*c.Precision), xsdDouble)))
	}

	globe := c.Globe
	if globe == "" {
		globe = earthGlobe
	}

	return append(triples, rdf.NewTriple(subject, wbGeoGlobe, rdf.NewIRI(globe))), nil
}

func float(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func integer(i int64) rdf.Literal {
	return rdf.NewTypedLiteral(strconv.FormatInt(i, 10), xsdInteger)
}
