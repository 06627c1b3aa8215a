package wikibase

import (
	"time"
)

type Rank int

const (
	RankDeprecated Rank = iota
	RankNormal
	RankPreferred
)

func (r Rank) String() string {
	switch r {
	case RankDeprecated:
		return "deprecated"
	case RankPreferred:
		return "preferred"
	default:
		return "normal"
	}
}

func ParseRank(s string) Rank {
	switch s {
	case "deprecated":
		return RankDeprecated
	case "preferred":
		return RankPreferred
	default:
		return RankNormal
	}
}

type SnakType string

const (
	SnakValue     SnakType = "value"
	SnakSomeValue SnakType = "somevalue"
	SnakNoValue   SnakType = "novalue"
)

// Snak is a single property-value assertion. Value is only set for SnakValue.
type Snak struct {
	Type     SnakType
	Property EntityID
	Datatype string
	Value    *DataValue
	Hash     string
}

type Reference struct {
	Hash  string
	Snaks []Snak
}

type Statement struct {
	GUID       string
	Rank       Rank
	MainSnak   Snak
	Qualifiers []Snak
	References []Reference
}

func (s Statement) Property() EntityID {
	return s.MainSnak.Property
}

type Sitelink struct {
	Site   string
	Title  string
	Badges []EntityID
}

// Entity holds the content of an item or property. Statements are grouped by
// ascending property id and keep their source order within a property.
type Entity struct {
	ID       EntityID
	Datatype string

	Labels       map[string]string
	Descriptions map[string]string
	Aliases      map[string][]string
	Sitelinks    []Sitelink
	Statements   []Statement

	// Problems lists the parts of the source document that could not be decoded
	// and were left out.
	Problems []error
}

// EntityRevision is an entity resolved to one revision, or a redirect.
type EntityRevision struct {
	ID             EntityID
	Entity         *Entity
	RedirectTarget EntityID
	RevisionID     int64
	Timestamp      time.Time
}

func (r *EntityRevision) IsRedirect() bool {
	return !r.RedirectTarget.IsZero()
}

func NewRedirectRevision(id, target EntityID, revisionID int64, timestamp time.Time) *EntityRevision {
	return &EntityRevision{
		ID:             id,
		RedirectTarget: target,
		RevisionID:     revisionID,
		Timestamp:      timestamp,
	}
}

func NewEntityRevision(e *Entity, revisionID int64, timestamp time.Time) *EntityRevision {
	return &EntityRevision{
		ID:         e.ID,
		Entity:     e,
		RevisionID: revisionID,
		Timestamp:  timestamp,
	}
}

type EntityDecoratorFunc func(e *Entity)

func New(id EntityID, decorators ...EntityDecoratorFunc) *Entity {
	e := &Entity{
		ID:           id,
		Labels:       map[string]string{},
		Descriptions: map[string]string{},
		Aliases:      map[string][]string{},
	}

	for _, decorator := range decorators {
		decorator(e)
	}

	sortStatements(e.Statements)

	return e
}

func Datatype(datatype string) EntityDecoratorFunc {
	return func(e *Entity) { e.Datatype = datatype }
}

func Label(language, value string) EntityDecoratorFunc {
	return func(e *Entity) { e.Labels[language] = value }
}

func Description(language, value string) EntityDecoratorFunc {
	return func(e *Entity) { e.Descriptions[language] = value }
}

func Alias(language string, values ...string) EntityDecoratorFunc {
	return func(e *Entity) { e.Aliases[language] = append(e.Aliases[language], values...) }
}

func Link(site, title string, badges ...EntityID) EntityDecoratorFunc {
	return func(e *Entity) {
		e.Sitelinks = append(e.Sitelinks, Sitelink{Site: site, Title: title, Badges: badges})
		sortSitelinks(e.Sitelinks)
	}
}

func WithStatement(s Statement) EntityDecoratorFunc {
	return func(e *Entity) { e.Statements = append(e.Statements, s) }
}

type StatementDecoratorFunc func(s *Statement)

func NewStatement(guid string, mainSnak Snak, decorators ...StatementDecoratorFunc) Statement {
	s := Statement{
		GUID:     guid,
		Rank:     RankNormal,
		MainSnak: mainSnak,
	}

	for _, decorator := range decorators {
		decorator(&s)
	}

	sortSnaks(s.Qualifiers)

	return s
}

func WithRank(r Rank) StatementDecoratorFunc {
	return func(s *Statement) { s.Rank = r }
}

func Qualifier(snak Snak) StatementDecoratorFunc {
	return func(s *Statement) { s.Qualifiers = append(s.Qualifiers, snak) }
}

func WithReference(hash string, snaks ...Snak) StatementDecoratorFunc {
	return func(s *Statement) {
		ref := Reference{Hash: hash, Snaks: append([]Snak{}, snaks...)}
		sortSnaks(ref.Snaks)
		s.References = append(s.References, ref)
	}
}

func ValueSnak(property EntityID, datatype string, value DataValue) Snak {
	return Snak{Type: SnakValue, Property: property, Datatype: datatype, Value: &value}
}

func SomeValueSnak(property EntityID) Snak {
	return Snak{Type: SnakSomeValue, Property: property}
}

func NoValueSnak(property EntityID) Snak {
	return Snak{Type: SnakNoValue, Property: property}
}
