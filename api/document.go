package api

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/xid"
)

// IDKey is the property holding the identifier of a document.
const IDKey = "_id"

//Document is a single identifier-addressed record of a database.
//
// Documents are shared by reference: every lookup path returns the same
// *Document, so a mutation through one handle is visible through all others.
// A Document is not safe for concurrent use.
type Document struct {
	id         string
	database   string
	properties map[string]interface{}
}

//DocumentProperties represents the properties of the document
type DocumentProperties map[string]interface{}

// NewDocument creates a document from decoded properties. The identifier is
// taken from the _id property when present.
func NewDocument(properties map[string]interface{}) (*Document, error) {
	d := &Document{properties: make(map[string]interface{}, len(properties))}
	for k, v := range properties {
		if k == IDKey {
			id, err := identifierFromValue(v)
			if err != nil {
				return nil, err
			}
			d.id = id
			continue
		}
		d.properties[k] = v
	}
	return d, nil
}

func identifierFromValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case json.Number:
		return t.String(), nil
	case nil:
		return "", nil
	}
	return "", errors.Wrapf(ErrInvalidIdentifier, "unsupported _id type %T", v)
}

// ID returns the identifier of the document.
func (d *Document) ID() string {
	return d.id
}

// SetID assigns the identifier of a document that has none yet.
func (d *Document) SetID(id string) error {
	if d.id != "" && d.id != id {
		return ErrCannotModifyID
	}
	d.id = id
	return nil
}

// Database returns the identifier of the owning database, if any.
func (d *Document) Database() string {
	return d.database
}

// ValueForKey returns the top level property named key.
func (d *Document) ValueForKey(key string) interface{} {
	if key == IDKey {
		return d.id
	}
	return d.properties[key]
}

// ValueForKeyPath resolves a dotted key path such as "address.city" or
// "tags.0". The boolean is false when a segment of the path is missing.
func (d *Document) ValueForKeyPath(keyPath string) (interface{}, bool) {
	if keyPath == IDKey {
		return d.id, d.id != ""
	}
	return ResolveKeyPath(d.properties, keyPath)
}

// SetValueForKey sets a top level property.
func (d *Document) SetValueForKey(key string, value interface{}) error {
	if key == IDKey {
		return ErrCannotModifyID
	}
	d.properties[key] = value
	return nil
}

// RemoveValueForKey removes a top level property.
func (d *Document) RemoveValueForKey(key string) {
	delete(d.properties, key)
}

// Replace swaps all properties of the document for the given ones, keeping
// the identifier. It is the update-in-place primitive used by Database.Update.
func (d *Document) Replace(properties map[string]interface{}) {
	for k := range d.properties {
		delete(d.properties, k)
	}
	for k, v := range properties {
		if k != IDKey {
			d.properties[k] = v
		}
	}
}

// Merge sets the given properties on the document. A nil value removes the
// property.
func (d *Document) Merge(properties map[string]interface{}) {
	for k, v := range properties {
		if k == IDKey {
			continue
		}
		if v == nil {
			delete(d.properties, k)
			continue
		}
		d.properties[k] = v
	}
}

// Keys returns the number of properties, _id excluded.
func (d *Document) Keys() int {
	return len(d.properties)
}

// Map returns a deep copy of the properties, including _id.
func (d *Document) Map() map[string]interface{} {
	m := copyValue(d.properties).(map[string]interface{})
	if d.id != "" {
		m[IDKey] = d.id
	}
	return m
}

// Equal reports whether both documents hold the same identifier and values.
func (d *Document) Equal(other *Document) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil {
		return false
	}
	return d.id == other.id && Equal(d.properties, other.properties)
}

// MarshalJSON encodes the document as a flat object including _id.
func (d *Document) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(d.properties)+1)
	for k, v := range d.properties {
		m[k] = v
	}
	if d.id != "" {
		m[IDKey] = d.id
	}
	return json.Marshal(m)
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, item := range t {
			m[k] = copyValue(item)
		}
		return m
	case []interface{}:
		l := make([]interface{}, len(t))
		for i, item := range t {
			l[i] = copyValue(item)
		}
		return l
	}
	return v
}

// IDGenerator creates identifiers for documents posted without one.
type IDGenerator func() string

//NextID generates a pseudo-random ID that could be used when creating a document
func NextID() string {
	return xid.New().String()
}

// NextUUID generates a random UUID.
func NextUUID() string {
	return uuid.NewString()
}

// Generator returns the IDGenerator registered under name. Unknown names
// fall back to xid.
func Generator(name string) IDGenerator {
	if name == "uuid" {
		return NextUUID
	}
	return NextID
}
