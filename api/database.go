package api

import (
	"encoding/json"
	"regexp"
	"time"

	"github.com/pkg/errors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidIdentifier reports whether s can be used as a database or document
// identifier, that is as a single path segment. Identifiers starting with an
// underscore are reserved for server routes.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Database is an ordered collection of documents indexed by identifier, with
// a single shared cursor.
//
// A Database is not safe for concurrent use; the coordinator serializes
// access per identifier.
type Database struct {
	identifier   string
	documents    []*Document
	index        map[string]*Document
	position     int
	dirty        bool
	lastModified time.Time
}

// NewDatabase creates a database holding the given documents. Documents with
// duplicated or empty identifiers are rejected.
func NewDatabase(identifier string, documents ...*Document) (*Database, error) {
	db := &Database{
		identifier:   identifier,
		documents:    make([]*Document, 0, len(documents)),
		index:        make(map[string]*Document, len(documents)),
		lastModified: time.Now(),
	}
	for _, d := range documents {
		if err := db.add(d); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Identifier returns the identifier of the database.
func (db *Database) Identifier() string {
	return db.identifier
}

// Add appends a document. The database is left untouched when the
// identifier is empty or already present.
func (db *Database) Add(d *Document) error {
	if err := db.add(d); err != nil {
		return err
	}
	db.touch()
	return nil
}

func (db *Database) add(d *Document) error {
	if d.ID() == "" {
		return ErrMissingIdentifier
	}
	if db.Contains(d) {
		return errors.Wrapf(ErrDuplicate, "%s in %s", d.ID(), db.identifier)
	}
	d.database = db.identifier
	db.documents = append(db.documents, d)
	db.index[d.ID()] = d
	return nil
}

// FindByIdentifier returns the document with the given identifier, or nil.
func (db *Database) FindByIdentifier(id string) *Document {
	return db.index[id]
}

// Contains reports whether a document with the same identifier is present.
func (db *Database) Contains(d *Document) bool {
	return db.ContainsIdentifier(d.ID())
}

// ContainsIdentifier reports whether id is present.
func (db *Database) ContainsIdentifier(id string) bool {
	_, ok := db.index[id]
	return ok
}

// Update replaces the properties of the stored document having the same
// identifier as d. The stored instance is kept, so every handle observes the
// change. The stored document is returned.
func (db *Database) Update(d *Document) (*Document, error) {
	existing := db.index[d.ID()]
	if existing == nil {
		return nil, errors.Wrapf(ErrDocumentNotFound, "%s in %s", d.ID(), db.identifier)
	}
	if existing != d {
		existing.Replace(d.properties)
	}
	db.touch()
	return existing, nil
}

// Patch merges the properties of d into the stored document with the same
// identifier.
func (db *Database) Patch(d *Document) (*Document, error) {
	existing := db.index[d.ID()]
	if existing == nil {
		return nil, errors.Wrapf(ErrDocumentNotFound, "%s in %s", d.ID(), db.identifier)
	}
	if existing != d {
		existing.Merge(d.properties)
	}
	db.touch()
	return existing, nil
}

// Remove deletes the document with the identifier of d.
//
// The cursor keeps pointing at the same document when another one is
// removed. When the current document is removed, the cursor moves to its
// successor, which may be out of range.
func (db *Database) Remove(d *Document) error {
	if !db.ContainsIdentifier(d.ID()) {
		return errors.Wrapf(ErrDocumentNotFound, "%s in %s", d.ID(), db.identifier)
	}
	for i, item := range db.documents {
		if item.ID() != d.ID() {
			continue
		}
		db.documents = append(db.documents[:i], db.documents[i+1:]...)
		if i < db.position {
			db.position--
		}
		break
	}
	delete(db.index, d.ID())
	db.touch()
	return nil
}

// Count returns the number of documents. The cursor is not moved.
func (db *Database) Count() int {
	return len(db.documents)
}

// Current returns the document at the cursor.
func (db *Database) Current() (*Document, error) {
	if !db.Valid() {
		return nil, outOfRange(db.position, len(db.documents))
	}
	return db.documents[db.position], nil
}

// Next advances the cursor and returns the new current document. Advancing
// past the last document leaves the cursor exhausted and fails.
func (db *Database) Next() (*Document, error) {
	if db.position < len(db.documents) {
		db.position++
	}
	return db.Current()
}

// Rewind moves the cursor to the first document.
func (db *Database) Rewind() {
	db.position = 0
}

// Valid reports whether the cursor points at a document.
func (db *Database) Valid() bool {
	return db.position >= 0 && db.position < len(db.documents)
}

// Key returns the cursor position.
func (db *Database) Key() int {
	return db.position
}

// Documents returns the documents in order. The slice is a copy but the
// documents are the stored instances. The cursor is not moved.
func (db *Database) Documents() []*Document {
	docs := make([]*Document, len(db.documents))
	copy(docs, db.documents)
	return docs
}

// IsDirty reports whether the database changed since it was last persisted.
func (db *Database) IsDirty() bool {
	return db.dirty
}

// MarkClean flags the database as persisted.
func (db *Database) MarkClean() {
	db.dirty = false
}

// MarkDirty flags the database as needing persistence, for mutations done
// directly on documents.
func (db *Database) MarkDirty() {
	db.touch()
}

// GetLastModified implements Cacheable.
func (db *Database) GetLastModified() time.Time {
	return db.lastModified
}

func (db *Database) touch() {
	db.dirty = true
	db.lastModified = time.Now()
}

// MarshalJSON encodes the database as an array of documents.
func (db *Database) MarshalJSON() ([]byte, error) {
	return json.Marshal(db.documents)
}
