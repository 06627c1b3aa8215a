package rdfbuilder

import (
	"net/url"
	"strings"

	"github.com/diwise/wikibase-rdf-dumper/internal/pkg/infrastructure/rdf"
	"github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"
)

func articleIRI(site wikibase.Site, title string) rdf.IRI {
	escaped := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	// keep the path readable for titles with subpages and namespaces
	escaped = strings.NewReplacer("%2F", "/", "%3A", ":").Replace(escaped)
	return rdf.NewIRI(strings.Replace(site.PagePath, "$1", escaped, 1))
}

// siteIRI is the root of a site, used as the schema:isPartOf target.
func siteIRI(site wikibase.Site) rdf.IRI {
	u, err := url.Parse(site.PagePath)
	if err != nil || u.Host == "" {
		return rdf.NewIRI(site.PagePath)
	}
	return rdf.NewIRI(u.Scheme + "://" + u.Host + "/")
}
