package api

import (
	"strings"
)

// ObjectRef is the path of a request target: a database identifier,
// optionally followed by a document identifier.
type ObjectRef []string

func (o ObjectRef) String() string {
	return strings.Join(o, "/")
}

// IsRoot reports whether the reference targets the server itself.
func (o ObjectRef) IsRoot() bool {
	return len(o) == 0
}

// IsDocument reports whether the reference targets a document.
func (o ObjectRef) IsDocument() bool {
	return len(o) == 2
}

// IsSpecial reports whether the reference targets a server route such as
// _stats.
func (o ObjectRef) IsSpecial() bool {
	return len(o) > 0 && strings.HasPrefix(o[0], "_")
}

// Database returns the database identifier, if any.
func (o ObjectRef) Database() string {
	if len(o) == 0 {
		return ""
	}
	return o[0]
}

// ID returns the document identifier, if any.
func (o ObjectRef) ID() string {
	if len(o) < 2 {
		return ""
	}
	return o[1]
}
