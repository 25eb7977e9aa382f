package engine

import (
	"strings"

	"github.com/studyhub-gh/backoffice/internal/resource"
)

// Visible reports whether a record survives the current free-text query and
// filter set. Pure: the result depends only on the arguments.
//
// The query is a case-insensitive substring match against the schema's
// searchable fields; an empty query matches everything. Filters are an AND
// conjunction of exact matches, with "" meaning unconstrained.
func Visible(r resource.Record, query string, filters map[resource.Field]string, s resource.Schema) bool {
	if !matchesQuery(r, query, s) {
		return false
	}
	for f, want := range filters {
		if want == "" {
			continue
		}
		if resource.FieldValue(r, f) != want {
			return false
		}
	}
	return true
}

func matchesQuery(r resource.Record, query string, s resource.Schema) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range s.Searchable {
		if strings.Contains(strings.ToLower(resource.FieldValue(r, f)), q) {
			return true
		}
	}
	return false
}
