package wikibase

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type jsonTerm struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type jsonDataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type jsonSnak struct {
	SnakType  string         `json:"snaktype"`
	Property  string         `json:"property"`
	Datatype  string         `json:"datatype"`
	DataValue *jsonDataValue `json:"datavalue"`
	Hash      string         `json:"hash"`
}

type jsonReference struct {
	Hash  string                `json:"hash"`
	Snaks map[string][]jsonSnak `json:"snaks"`
}

type jsonStatement struct {
	ID         string                `json:"id"`
	Rank       string                `json:"rank"`
	MainSnak   jsonSnak              `json:"mainsnak"`
	Qualifiers map[string][]jsonSnak `json:"qualifiers"`
	References []jsonReference       `json:"references"`
}

type jsonSitelink struct {
	Site   string   `json:"site"`
	Title  string   `json:"title"`
	Badges []string `json:"badges"`
}

type jsonEntity struct {
	ID           string                     `json:"id"`
	Type         string                     `json:"type"`
	Datatype     string                     `json:"datatype"`
	Labels       map[string]jsonTerm        `json:"labels"`
	Descriptions map[string]jsonTerm        `json:"descriptions"`
	Aliases      map[string][]jsonTerm      `json:"aliases"`
	Claims       map[string][]jsonStatement `json:"claims"`
	Statements   map[string][]jsonStatement `json:"statements"`
	Sitelinks    map[string]jsonSitelink    `json:"sitelinks"`
	LastRevID    int64                      `json:"lastrevid"`
	Modified     string                     `json:"modified"`
}

// NewFromJSON decodes an entity from the canonical Wikibase entity json format.
func NewFromJSON(body []byte) (*Entity, error) {
	je := jsonEntity{}
	if err := json.Unmarshal(body, &je); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	return je.toEntity()
}

// NewRevisionFromJSON decodes an entity and picks the revision metadata (lastrevid,
// modified) from the same document.
func NewRevisionFromJSON(body []byte) (*EntityRevision, error) {
	je := jsonEntity{}
	if err := json.Unmarshal(body, &je); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	return je.toRevision()
}

func (je jsonEntity) toRevision() (*EntityRevision, error) {
	e, err := je.toEntity()
	if err != nil {
		return nil, err
	}

	var ts time.Time
	if je.Modified != "" {
		ts, err = time.Parse(time.RFC3339, je.Modified)
		if err != nil {
			return nil, fmt.Errorf("invalid modified timestamp for %s: %w", je.ID, err)
		}
	}

	return NewEntityRevision(e, je.LastRevID, ts.UTC()), nil
}

func (je jsonEntity) toEntity() (*Entity, error) {
	id, err := ParseEntityID(je.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entity: %w", err)
	}

	e := New(id, Datatype(je.Datatype))

	for lang, term := range je.Labels {
		e.Labels[lang] = term.Value
	}

	for lang, term := range je.Descriptions {
		e.Descriptions[lang] = term.Value
	}

	for lang, terms := range je.Aliases {
		for _, term := range terms {
			e.Aliases[lang] = append(e.Aliases[lang], term.Value)
		}
	}

	for _, sl := range je.Sitelinks {
		link := Sitelink{Site: sl.Site, Title: sl.Title}
		for _, b := range sl.Badges {
			badge, err := ParseEntityID(b)
			if err != nil {
				e.Problems = append(e.Problems, fmt.Errorf("badge %q dropped from sitelink %s: %w", b, sl.Site, err))
				continue
			}
			link.Badges = append(link.Badges, badge)
		}
		link.Badges = SortEntityIDs(link.Badges)
		e.Sitelinks = append(e.Sitelinks, link)
	}
	sortSitelinks(e.Sitelinks)

	claims := je.Claims
	if len(claims) == 0 {
		claims = je.Statements
	}

	for _, group := range claims {
		for _, js := range group {
			s, err := js.toStatement(&e.Problems)
			if err != nil {
				e.Problems = append(e.Problems, fmt.Errorf("statement %s dropped: %w", js.ID, err))
				continue
			}
			e.Statements = append(e.Statements, s)
		}
	}
	sortStatements(e.Statements)

	return e, nil
}

// toStatement fails only when the main snak has no usable property. Qualifier and
// reference snaks without one are left out and reported to problems.
func (js jsonStatement) toStatement(problems *[]error) (Statement, error) {
	main, err := js.MainSnak.toSnak()
	if err != nil {
		return Statement{}, err
	}

	s := Statement{
		GUID:       js.ID,
		Rank:       ParseRank(js.Rank),
		MainSnak:   main,
		Qualifiers: toSnaks(js.Qualifiers, problems),
	}

	for _, jr := range js.References {
		s.References = append(s.References, Reference{Hash: jr.Hash, Snaks: toSnaks(jr.Snaks, problems)})
	}

	return s, nil
}

func toSnaks(groups map[string][]jsonSnak, problems *[]error) []Snak {
	snaks := []Snak{}

	for _, group := range groups {
		for _, js := range group {
			snak, err := js.toSnak()
			if err != nil {
				*problems = append(*problems, fmt.Errorf("snak dropped: %w", err))
				continue
			}
			snaks = append(snaks, snak)
		}
	}

	sortSnaks(snaks)

	return snaks
}

// toSnak fails only when the property is not a valid id. A value snak without a
// value, or a snak of an unknown type, is kept with a nil Value so that it can be
// rendered with a fallback.
func (js jsonSnak) toSnak() (Snak, error) {
	property, err := ParseEntityID(js.Property)
	if err != nil {
		return Snak{}, fmt.Errorf("bad property %q: %w", js.Property, err)
	}

	snak := Snak{
		Type:     SnakType(js.SnakType),
		Property: property,
		Datatype: js.Datatype,
		Hash:     js.Hash,
	}

	if snak.Type == SnakValue && js.DataValue != nil {
		snak.Value = &DataValue{Type: js.DataValue.Type, Value: js.DataValue.Value}
	}

	return snak, nil
}

// sortStatements groups statements by property. Map decoding loses the order of
// property groups, but the order within a group is the source order, so the sort is stable.
func sortStatements(statements []Statement) {
	slices.SortStableFunc(statements, func(a, b Statement) int {
		return a.Property().Compare(b.Property())
	})
}

func sortSnaks(snaks []Snak) {
	slices.SortStableFunc(snaks, func(a, b Snak) int {
		return a.Property.Compare(b.Property)
	})
}

func sortSitelinks(links []Sitelink) {
	slices.SortStableFunc(links, func(a, b Sitelink) int {
		if a.Site < b.Site {
			return -1
		} else if a.Site > b.Site {
			return 1
		}
		return 0
	})
}
