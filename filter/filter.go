// Package filter evaluates declarative predicates over the documents of a
// database.
//
// A Filter is an AND-chain of comparisons. Applying it to a database with
// FilterCollection yields a Result, a lazily evaluated view with its own
// cursor: iterating a Result never moves the cursor of the database.
package filter

import (
	"github.com/xdbsoft/docstore/api"
)

type Filter struct {
	comparisons []Comparison
}

func New(comparisons ...Comparison) *Filter {
	return &Filter{comparisons: comparisons}
}

// AddComparison appends c to the chain. Duplicates are kept.
func (f *Filter) AddComparison(c Comparison) {
	f.comparisons = append(f.comparisons, c)
}

// Comparisons returns the chain.
func (f *Filter) Comparisons() []Comparison {
	return f.comparisons
}

// Matches reports whether d satisfies every comparison. An empty filter
// matches everything.
func (f *Filter) Matches(d *api.Document) bool {
	for _, c := range f.comparisons {
		if !c.Matches(d) {
			return false
		}
	}
	return true
}

// FilterCollection returns the documents of db matching the filter. Nothing
// is evaluated until the result is first read.
func (f *Filter) FilterCollection(db *api.Database) *Result {
	return &Result{filter: f, database: db}
}
