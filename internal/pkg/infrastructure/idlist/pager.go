// Package idlist pages through an explicit list of entity ids.
package idlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

// Pager yields the ids of a list in ascending order. Duplicates are dropped.
type Pager struct {
	ids      []wikibase.EntityID
	next     int
	position wikibase.EntityID
}

// NewPager reads one id per line. Blank lines and lines starting with # are skipped.
// Ids up to and including from are left out, so that an interrupted run can resume.
func NewPager(r io.Reader, from wikibase.EntityID) (*Pager, error) {
	ids := make([]wikibase.EntityID, 0, 1024)

	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, err := wikibase.ParseEntityID(line)
		if err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("line %d of id list: %s", lineNumber, err.Error()))
		}

		if !from.IsZero() && id.Compare(from) <= 0 {
			continue
		}

		ids = append(ids, id)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.NewStoreUnavailableError("failed to read id list", err)
	}

	return &Pager{ids: wikibase.SortEntityIDs(ids), position: from}, nil
}

func (p *Pager) NextBatch(ctx context.Context, limit int) ([]wikibase.EntityID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if limit <= 0 || p.next >= len(p.ids) {
		return []wikibase.EntityID{}, nil
	}

	end := min(p.next+limit, len(p.ids))

	batch := make([]wikibase.EntityID, end-p.next)
	copy(batch, p.ids[p.next:end])

	p.next = end
	p.position = batch[len(batch)-1]

	return batch, nil
}

func (p *Pager) Position() wikibase.EntityID {
	return p.position
}

// Len is the number of ids that have not been yielded yet.
func (p *Pager) Len() int {
	return len(p.ids) - p.next
}
