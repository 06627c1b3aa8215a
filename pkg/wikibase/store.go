package wikibase

import (
	"context"
	"fmt"
	"strings"
)

// CacheMode tells a revision lookup how far it may rely on cached content.
type CacheMode int

const (
	// AllowStale accepts cached content, possibly slightly out of date. Dumps use this.
	AllowStale CacheMode = iota
	// BypassCache reads from the store and leaves caches untouched.
	BypassCache
	// RequireFresh reads from the store and refreshes caches on the way back.
	RequireFresh
)

func (m CacheMode) String() string {
	switch m {
	case BypassCache:
		return "bypass"
	case RequireFresh:
		return "fresh"
	default:
		return "stale"
	}
}

// RedirectMode selects whether redirects are part of a page of entity ids.
type RedirectMode int

const (
	IncludeRedirects RedirectMode = iota
	ExcludeRedirects
	OnlyRedirects
)

func (m RedirectMode) String() string {
	switch m {
	case ExcludeRedirects:
		return "exclude"
	case OnlyRedirects:
		return "only"
	default:
		return "include"
	}
}

func ParseRedirectMode(value string) (RedirectMode, error) {
	switch strings.ToLower(value) {
	case "", "include":
		return IncludeRedirects, nil
	case "exclude":
		return ExcludeRedirects, nil
	case "only":
		return OnlyRedirects, nil
	default:
		return IncludeRedirects, fmt.Errorf("unknown redirect mode \"%s\"", value)
	}
}

// EntityIDPager walks an ordered set of entity ids. An empty page means the pager
// is exhausted. Ids are never yielded twice.
type EntityIDPager interface {
	NextBatch(ctx context.Context, limit int) ([]EntityID, error)
	// Position is the last id yielded, or the zero id before the first page.
	Position() EntityID
}

type EntityRevisionLookup interface {
	GetEntityRevision(ctx context.Context, id EntityID, mode CacheMode) (*EntityRevision, error)
}

// BatchRevisionLookup loads many revisions in one round trip. Ids that do not
// resolve to an entity are left out of the result.
type BatchRevisionLookup interface {
	GetEntityRevisions(ctx context.Context, ids []EntityID) (map[EntityID]*EntityRevision, error)
}

// EntityPrefetcher is told about ids that are about to be looked up. Prefetching is
// a hint only and never fails the caller.
type EntityPrefetcher interface {
	Prefetch(ctx context.Context, ids []EntityID)
}

// DatatypeLookup loads the datatype of every property in a repository.
type DatatypeLookup interface {
	GetPropertyDatatypes(ctx context.Context) (map[EntityID]string, error)
}
