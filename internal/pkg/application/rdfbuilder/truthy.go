package rdfbuilder

import "github.com/diwise/wikibase-rdf-dumper/pkg/wikibase"

// bestRanked marks the statements that make up the truthy view of an entity: per
// property the preferred statements if there are any, otherwise the normal ones.
// Deprecated statements are never best ranked. statements must be grouped by property.
func bestRanked(statements []wikibase.Statement) []bool {
	best := make([]bool, len(statements))

	for start := 0; start < len(statements); {
		property := statements[start].Property()
		top := wikibase.RankNormal

		end := start
		for end < len(statements) && statements[end].Property() == property {
			if statements[end].Rank == wikibase.RankPreferred {
				top = wikibase.RankPreferred
			}
			end++
		}

		for i := start; i < end; i++ {
			best[i] = statements[i].Rank == top
		}

		start = end
	}

	return best
}

// BestStatements returns the statements that the truthy flavor renders, in the order
// given.
func BestStatements(statements []wikibase.Statement) []wikibase.Statement {
	best := bestRanked(statements)
	result := make([]wikibase.Statement, 0, len(statements))

	for i, st := range statements {
		if best[i] {
			result = append(result, st)
		}
	}

	return result
}
