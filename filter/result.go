package filter

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/xdbsoft/docstore/api"
)

// Result is the set of documents of a database matching a filter. The
// matches are computed once, on first access, and hold the stored document
// instances. A Result is not safe for concurrent use.
type Result struct {
	filter   *Filter
	database *api.Database

	evaluated bool
	documents []*api.Document
	position  int
}

func (r *Result) evaluate() {
	if r.evaluated {
		return
	}
	for _, d := range r.database.Documents() {
		if r.filter.Matches(d) {
			r.documents = append(r.documents, d)
		}
	}
	r.evaluated = true
}

// Count returns the number of matches. The cursor is not moved.
func (r *Result) Count() int {
	r.evaluate()
	return len(r.documents)
}

// Current returns the document at the cursor.
func (r *Result) Current() (*api.Document, error) {
	r.evaluate()
	if !r.Valid() {
		return nil, errors.Wrapf(api.ErrIndexOutOfRange, "position %d, count %d", r.position, len(r.documents))
	}
	return r.documents[r.position], nil
}

// Next advances the cursor and returns the new current document.
func (r *Result) Next() (*api.Document, error) {
	r.evaluate()
	if r.position < len(r.documents) {
		r.position++
	}
	return r.Current()
}

// Rewind moves the cursor to the first match.
func (r *Result) Rewind() {
	r.position = 0
}

// Valid reports whether the cursor points at a match.
func (r *Result) Valid() bool {
	r.evaluate()
	return r.position >= 0 && r.position < len(r.documents)
}

// Key returns the cursor position.
func (r *Result) Key() int {
	return r.position
}

// Documents returns the matches in database order.
func (r *Result) Documents() []*api.Document {
	r.evaluate()
	docs := make([]*api.Document, len(r.documents))
	copy(docs, r.documents)
	return docs
}

// Database returns the filtered database.
func (r *Result) Database() *api.Database {
	return r.database
}

// GetLastModified implements api.Cacheable.
func (r *Result) GetLastModified() time.Time {
	return r.database.GetLastModified()
}

// MarshalJSON encodes the matches as an array of documents.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Documents())
}
