package wikibase

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the entity type an EntityID refers to. The numeric value of a Kind
// defines the primary sort order of entity ids.
type Kind uint8

const (
	KindItem Kind = iota
	KindProperty
	KindLexeme
)

var kindPrefixes = map[Kind]string{
	KindItem:     "Q",
	KindProperty: "P",
	KindLexeme:   "L",
}

var kindNames = map[Kind]string{
	KindItem:     "item",
	KindProperty: "property",
	KindLexeme:   "lexeme",
}

func (k Kind) Prefix() string {
	return kindPrefixes[k]
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind accepts the entity type names used in entity JSON ("item", "property", "lexeme").
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity type \"%s\"", name)
}

// EntityID is an immutable, comparable entity identifier such as Q42 or P31.
type EntityID struct {
	kind   Kind
	number uint64
}

func NewEntityID(kind Kind, number uint64) EntityID {
	return EntityID{kind: kind, number: number}
}

func ParseEntityID(s string) (EntityID, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return EntityID{}, fmt.Errorf("invalid entity id \"%s\"", s)
	}

	prefix := strings.ToUpper(s[:1])

	for k, p := range kindPrefixes {
		if p != prefix {
			continue
		}

		n, err := strconv.ParseUint(s[1:], 10, 64)
		if err != nil || n == 0 {
			return EntityID{}, fmt.Errorf("invalid entity id \"%s\"", s)
		}

		return EntityID{kind: k, number: n}, nil
	}

	return EntityID{}, fmt.Errorf("invalid entity id \"%s\"", s)
}

// MustParseEntityID is ParseEntityID for literals known to be valid.
func MustParseEntityID(s string) EntityID {
	id, err := ParseEntityID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id EntityID) Kind() Kind {
	return id.kind
}

func (id EntityID) Number() uint64 {
	return id.number
}

func (id EntityID) IsZero() bool {
	return id.number == 0
}

func (id EntityID) String() string {
	if id.IsZero() {
		return ""
	}
	return id.kind.Prefix() + strconv.FormatUint(id.number, 10)
}

// Compare orders ids by kind first and by number second.
func (id EntityID) Compare(other EntityID) int {
	if id.kind != other.kind {
		if id.kind < other.kind {
			return -1
		}
		return 1
	}

	if id.number < other.number {
		return -1
	} else if id.number > other.number {
		return 1
	}

	return 0
}

func (id EntityID) Less(other EntityID) bool {
	return id.Compare(other) < 0
}

func (id EntityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EntityID) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SortEntityIDs sorts ids in place and drops duplicates.
func SortEntityIDs(ids []EntityID) []EntityID {
	slices.SortFunc(ids, func(a, b EntityID) int { return a.Compare(b) })
	return slices.Compact(ids)
}
