package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

// EntityIDPager pages through wb_entity_pages in (entity_kind, entity_number) order,
// using the last id of the previous page as the key of the next.
type EntityIDPager struct {
	db       Querier
	mode     wikibase.RedirectMode
	kinds    []wikibase.Kind
	position wikibase.EntityID
}

type PagerOption func(*EntityIDPager)

// StartAfter makes the pager resume after the given id.
func StartAfter(id wikibase.EntityID) PagerOption {
	return func(p *EntityIDPager) { p.position = id }
}

// OnlyKinds restricts the pager to entities of the given kinds.
func OnlyKinds(kinds ...wikibase.Kind) PagerOption {
	return func(p *EntityIDPager) { p.kinds = append(p.kinds, kinds...) }
}

func NewEntityIDPager(db Querier, mode wikibase.RedirectMode, options ...PagerOption) *EntityIDPager {
	p := &EntityIDPager{db: db, mode: mode}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *EntityIDPager) NextBatch(ctx context.Context, limit int) ([]wikibase.EntityID, error) {
	if limit <= 0 {
		return []wikibase.EntityID{}, nil
	}

	query, args := pageQuery(p.position, p.mode, p.kinds, limit)

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("failed to query entity pages", err)
	}
	defer rows.Close()

	ids := make([]wikibase.EntityID, 0, limit)

	for rows.Next() {
		var kind int16
		var number int64

		if err := rows.Scan(&kind, &number); err != nil {
			return nil, errors.NewStoreUnavailableError("failed to read entity page", err)
		}

		ids = append(ids, wikibase.NewEntityID(wikibase.Kind(kind), uint64(number)))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreUnavailableError("failed to read entity pages", err)
	}

	if len(ids) > 0 {
		p.position = ids[len(ids)-1]
	}

	return ids, nil
}

func (p *EntityIDPager) Position() wikibase.EntityID {
	return p.position
}

func pageQuery(after wikibase.EntityID, mode wikibase.RedirectMode, kinds []wikibase.Kind, limit int) (string, []any) {
	var sb strings.Builder

	sb.WriteString("SELECT entity_kind, entity_number FROM wb_entity_pages WHERE (entity_kind, entity_number) > ($1, $2)")
	args := []any{int16(after.Kind()), int64(after.Number())}

	switch mode {
	case wikibase.ExcludeRedirects:
		sb.WriteString(" AND redirect_target IS NULL")
	case wikibase.OnlyRedirects:
		sb.WriteString(" AND redirect_target IS NOT NULL")
	}

	if len(kinds) > 0 {
		values := make([]int16, 0, len(kinds))
		for _, k := range kinds {
			values = append(values, int16(k))
		}
		args = append(args, values)
		sb.WriteString(fmt.Sprintf(" AND entity_kind = ANY($%d)", len(args)))
	}

	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY entity_kind, entity_number LIMIT $%d", len(args)))

	return sb.String(), args
}
