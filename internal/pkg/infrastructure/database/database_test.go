package database

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	wberrors "github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/matryer/is"
)

func TestPageQuery(t *testing.T) {
	is := is.New(t)

	sql, args := pageQuery(wikibase.MustParseEntityID("Q42"), wikibase.ExcludeRedirects, nil, 100)
	is.Equal(sql, "SELECT entity_kind, entity_number FROM wb_entity_pages WHERE (entity_kind, entity_number) > ($1, $2)"+
		" AND redirect_target IS NULL ORDER BY entity_kind, entity_number LIMIT $3")
	is.Equal(args, []any{int16(0), int64(42), 100})

	sql, args = pageQuery(wikibase.EntityID{}, wikibase.OnlyRedirects, []wikibase.Kind{wikibase.KindProperty}, 10)
	is.True(strings.Contains(sql, "redirect_target IS NOT NULL AND entity_kind = ANY($3)"))
	is.True(strings.HasSuffix(sql, "LIMIT $4"))
	is.Equal(args, []any{int16(0), int64(0), []int16{1}, 10})

	sql, _ = pageQuery(wikibase.EntityID{}, wikibase.IncludeRedirects, nil, 10)
	is.True(!strings.Contains(sql, "redirect_target"))
}

func TestPagerAdvancesFromLastID(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	db := &fakeDB{results: [][][]any{
		{{int16(0), int64(1)}, {int16(0), int64(5)}},
		{},
	}}

	p := NewEntityIDPager(db, wikibase.IncludeRedirects)

	ids, err := p.NextBatch(ctx, 2)
	is.NoErr(err)
	is.Equal(len(ids), 2)
	is.Equal(ids[1].String(), "Q5")
	is.Equal(p.Position().String(), "Q5")

	ids, err = p.NextBatch(ctx, 2)
	is.NoErr(err)
	is.Equal(len(ids), 0)
	is.Equal(p.Position().String(), "Q5") // exhausted pager keeps its position

	is.Equal(db.args[1][1], int64(5)) // second page is keyed on the last id of the first
}

func TestPagerResumesAfterStartPosition(t *testing.T) {
	is := is.New(t)

	db := &fakeDB{results: [][][]any{{}}}
	p := NewEntityIDPager(db, wikibase.IncludeRedirects, StartAfter(wikibase.MustParseEntityID("P7")), OnlyKinds(wikibase.KindProperty))

	_, err := p.NextBatch(context.Background(), 10)
	is.NoErr(err)
	is.Equal(db.args[0], []any{int16(1), int64(7), []int16{1}, 10})
}

func TestPagerFailureIsStoreUnavailable(t *testing.T) {
	is := is.New(t)

	p := NewEntityIDPager(&fakeDB{err: errors.New("connection refused")}, wikibase.IncludeRedirects)

	_, err := p.NextBatch(context.Background(), 10)
	is.True(errors.Is(err, wberrors.ErrStoreUnavailable))
}

func TestRevisionLookup(t *testing.T) {
	is := is.New(t)

	revID := int64(77)
	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	content := []byte(`{"type":"item","id":"Q1","labels":{"en":{"language":"en","value":"universe"}}}`)

	db := &fakeDB{results: [][][]any{{{int16(0), int64(1), nil, &revID, &ts, content}}}}
	l := NewRevisionLookup(db)

	rev, err := l.GetEntityRevision(context.Background(), wikibase.MustParseEntityID("Q1"), wikibase.AllowStale)
	is.NoErr(err)
	is.Equal(rev.RevisionID, int64(77))
	is.True(rev.Timestamp.Equal(ts))
	is.Equal(rev.Entity.Labels["en"], "universe")
}

func TestRevisionLookupOfMissingPageIsNotFound(t *testing.T) {
	is := is.New(t)

	l := NewRevisionLookup(&fakeDB{results: [][][]any{{}}})

	_, err := l.GetEntityRevision(context.Background(), wikibase.MustParseEntityID("Q404"), wikibase.AllowStale)
	is.True(errors.Is(err, wberrors.ErrEntityNotFound))
}

func TestRevisionLookupFailureIsRevisionLookupError(t *testing.T) {
	is := is.New(t)

	l := NewRevisionLookup(&fakeDB{err: errors.New("timeout")})

	_, err := l.GetEntityRevision(context.Background(), wikibase.MustParseEntityID("Q1"), wikibase.AllowStale)
	is.True(errors.Is(err, wberrors.ErrRevisionLookup))
}

func TestBatchLookupReturnsRedirects(t *testing.T) {
	is := is.New(t)

	target := "Q1"
	db := &fakeDB{results: [][][]any{{{int16(0), int64(2), &target, nil, nil, nil}}}}
	l := NewRevisionLookup(db)

	revisions, err := l.GetEntityRevisions(context.Background(), []wikibase.EntityID{
		wikibase.MustParseEntityID("Q2"), wikibase.MustParseEntityID("Q3"),
	})
	is.NoErr(err)
	is.Equal(len(revisions), 1)

	rev := revisions[wikibase.MustParseEntityID("Q2")]
	is.True(rev.IsRedirect())
	is.Equal(rev.RedirectTarget.String(), "Q1")

	is.Equal(db.args[0], []any{[]int16{0, 0}, []int64{2, 3}})
}

func TestContentOfAnotherEntityIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := toRevision(wikibase.MustParseEntityID("Q1"), nil, nil, nil, []byte(`{"type":"item","id":"Q2"}`))
	is.True(errors.Is(err, wberrors.ErrInvalidEntity))
}

func TestUndecodableContentIsAnInvalidEntity(t *testing.T) {
	is := is.New(t)

	content := []byte(`{"type":"item","id":"Q1","claims":`)

	l := NewRevisionLookup(&fakeDB{results: [][][]any{
		{{int16(0), int64(1), nil, nil, nil, content}},
		{{int16(0), int64(1), nil, nil, nil, content}, {int16(0), int64(2), nil, nil, nil, []byte(`{"type":"item","id":"Q2"}`)}},
	}})

	_, err := l.GetEntityRevision(context.Background(), wikibase.MustParseEntityID("Q1"), wikibase.AllowStale)
	is.True(errors.Is(err, wberrors.ErrInvalidEntity))
	is.True(!errors.Is(err, wberrors.ErrRevisionLookup))

	revisions, err := l.GetEntityRevisions(context.Background(), []wikibase.EntityID{
		wikibase.MustParseEntityID("Q1"), wikibase.MustParseEntityID("Q2"),
	})
	is.NoErr(err)
	is.Equal(len(revisions), 1)
}

func TestPropertyDatatypes(t *testing.T) {
	is := is.New(t)

	db := &fakeDB{results: [][][]any{{{int64(31), "wikibase-item"}, {int64(1082), "quantity"}}}}

	datatypes, err := NewPropertyInfo(db).GetPropertyDatatypes(context.Background())
	is.NoErr(err)
	is.Equal(datatypes[wikibase.MustParseEntityID("P1082")], "quantity")
	is.Equal(len(datatypes), 2)
}

func TestSitesWithoutPagePathAreSkipped(t *testing.T) {
	is := is.New(t)

	db := &fakeDB{results: [][][]any{{
		{"enwiki", "en", "https://en.wikipedia.org/wiki/$1"},
		{"brokenwiki", "xx", ""},
	}}}

	sites, err := NewPropertyInfo(db).GetSites(context.Background())
	is.NoErr(err)
	is.Equal(sites, []wikibase.Site{{GlobalID: "enwiki", LanguageCode: "en", PagePath: "https://en.wikipedia.org/wiki/$1"}})
}

type fakeDB struct {
	results [][][]any
	args    [][]any
	err     error
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.args = append(db.args, args)

	if db.err != nil {
		return nil, db.err
	}

	if len(db.results) == 0 {
		return &fakeRows{}, nil
	}

	rows := db.results[0]
	db.results = db.results[1:]

	return &fakeRows{rows: rows, index: -1}, nil
}

type fakeRows struct {
	rows  [][]any
	index int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.index++
	return r.index < len(r.rows)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.index], nil
}

// Scan copies the values of the current row into dest, leaving destinations of nil
// values at their zero value.
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.index]

	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()

		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}

		target.Set(reflect.ValueOf(row[i]))
	}

	return nil
}
