package database

import (
	"context"

	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase/errors"
)

// PropertyInfo reads property datatypes and the site table.
type PropertyInfo struct {
	db Querier
}

func NewPropertyInfo(db Querier) *PropertyInfo {
	return &PropertyInfo{db: db}
}

func (pi *PropertyInfo) GetPropertyDatatypes(ctx context.Context) (map[wikibase.EntityID]string, error) {
	rows, err := pi.db.Query(ctx, `SELECT pi_property_id, pi_type FROM wb_property_info`)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("failed to query property info", err)
	}
	defer rows.Close()

	datatypes := map[wikibase.EntityID]string{}

	for rows.Next() {
		var number int64
		var datatype string

		if err := rows.Scan(&number, &datatype); err != nil {
			return nil, errors.NewStoreUnavailableError("failed to read property info", err)
		}

		datatypes[wikibase.NewEntityID(wikibase.KindProperty, uint64(number))] = datatype
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreUnavailableError("failed to read property info", err)
	}

	return datatypes, nil
}

func (pi *PropertyInfo) GetSites(ctx context.Context) ([]wikibase.Site, error) {
	sql := `SELECT site_global_key, coalesce(site_language, ''), coalesce(site_data->'paths'->>'page_path', '')
		FROM sites ORDER BY site_global_key`

	rows, err := pi.db.Query(ctx, sql)
	if err != nil {
		return nil, errors.NewStoreUnavailableError("failed to query sites", err)
	}
	defer rows.Close()

	sites := make([]wikibase.Site, 0)

	for rows.Next() {
		var s wikibase.Site
		if err := rows.Scan(&s.GlobalID, &s.LanguageCode, &s.PagePath); err != nil {
			return nil, errors.NewStoreUnavailableError("failed to read site", err)
		}

		if s.PagePath == "" {
			continue
		}

		sites = append(sites, s)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreUnavailableError("failed to read sites", err)
	}

	return sites, nil
}
