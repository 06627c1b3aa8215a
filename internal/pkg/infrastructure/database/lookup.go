package database

import (
	"context"
	"fmt"
	"time"

	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

const revisionColumns string = `SELECT p.entity_kind, p.entity_number, p.redirect_target, r.revision_id, r.rev_timestamp, r.content
	FROM wb_entity_pages p LEFT JOIN wb_revisions r ON r.revision_id = p.latest_revision`

// RevisionLookup resolves entity ids to the latest revision of their page. The store
// is always current, so every cache mode reads the same data.
type RevisionLookup struct {
	db Querier
}

func NewRevisionLookup(db Querier) *RevisionLookup {
	return &RevisionLookup{db: db}
}

func (l *RevisionLookup) GetEntityRevision(ctx context.Context, id wikibase.EntityID, _ wikibase.CacheMode) (*wikibase.EntityRevision, error) {
	revisions, invalid, err := l.query(ctx,
		revisionColumns+" WHERE p.entity_kind = $1 AND p.entity_number = $2",
		int16(id.Kind()), int64(id.Number()),
	)
	if err != nil {
		return nil, err
	}

	if err, ok := invalid[id]; ok {
		return nil, err
	}

	rev, ok := revisions[id]
	if !ok {
		return nil, errors.NewEntityNotFoundError(id.String())
	}

	return rev, nil
}

// GetEntityRevisions loads many revisions with one query. Ids without a page, and
// ids whose content does not decode, are left out of the result.
func (l *RevisionLookup) GetEntityRevisions(ctx context.Context, ids []wikibase.EntityID) (map[wikibase.EntityID]*wikibase.EntityRevision, error) {
	if len(ids) == 0 {
		return map[wikibase.EntityID]*wikibase.EntityRevision{}, nil
	}

	kinds := make([]int16, 0, len(ids))
	numbers := make([]int64, 0, len(ids))

	for _, id := range ids {
		kinds = append(kinds, int16(id.Kind()))
		numbers = append(numbers, int64(id.Number()))
	}

	revisions, _, err := l.query(ctx,
		revisionColumns+" WHERE (p.entity_kind, p.entity_number) IN (SELECT * FROM unnest($1::smallint[], $2::bigint[]))",
		kinds, numbers,
	)

	return revisions, err
}

// query returns the revisions found, and the decode failure of every row that did
// not become a revision.
func (l *RevisionLookup) query(ctx context.Context, sql string, args ...any) (map[wikibase.EntityID]*wikibase.EntityRevision, map[wikibase.EntityID]error, error) {
	rows, err := l.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, nil, errors.NewRevisionLookupError("failed to query revisions", err)
	}
	defer rows.Close()

	revisions := map[wikibase.EntityID]*wikibase.EntityRevision{}
	invalid := map[wikibase.EntityID]error{}

	for rows.Next() {
		var kind int16
		var number int64
		var redirect *string
		var revisionID *int64
		var timestamp *time.Time
		var content []byte

		if err := rows.Scan(&kind, &number, &redirect, &revisionID, &timestamp, &content); err != nil {
			return nil, nil, errors.NewRevisionLookupError("failed to read revision", err)
		}

		id := wikibase.NewEntityID(wikibase.Kind(kind), uint64(number))

		rev, err := toRevision(id, redirect, revisionID, timestamp, content)
		if err != nil {
			invalid[id] = err
			continue
		}

		revisions[id] = rev
	}

	if err := rows.Err(); err != nil {
		return nil, nil, errors.NewRevisionLookupError("failed to read revisions", err)
	}

	return revisions, invalid, nil
}

func toRevision(id wikibase.EntityID, redirect *string, revisionID *int64, timestamp *time.Time, content []byte) (*wikibase.EntityRevision, error) {
	var revID int64
	if revisionID != nil {
		revID = *revisionID
	}

	var ts time.Time
	if timestamp != nil {
		ts = timestamp.UTC()
	}

	if redirect != nil && *redirect != "" {
		target, err := wikibase.ParseEntityID(*redirect)
		if err != nil {
			return nil, errors.NewInvalidEntityError(id.String(), fmt.Errorf("bad redirect target: %w", err))
		}
		return wikibase.NewRedirectRevision(id, target, revID, ts), nil
	}

	if len(content) == 0 {
		return nil, errors.NewInvalidEntityError(id.String(), fmt.Errorf("no revision content"))
	}

	entity, err := wikibase.NewFromJSON(content)
	if err != nil {
		return nil, errors.NewInvalidEntityError(id.String(), err)
	}

	if entity.ID != id {
		return nil, errors.NewInvalidEntityError(id.String(), fmt.Errorf("page holds content of %s", entity.ID))
	}

	return wikibase.NewEntityRevision(entity, revID, ts), nil
}
