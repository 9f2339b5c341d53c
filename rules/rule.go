package rules

// Rule grants access to the targets matching Path.
//
// Path segments are literals, variables such as {id} bound to the matching
// segment, or * matching any segment. A database level request is checked
// as if it targeted the document "*" of the database, so "shop/{id}" governs
// both the database and its documents.
type Rule struct {
	Path  string  `json:"path"`
	Allow []Allow `json:"allow"`
}

// Allow lists the methods a rule grants, optionally under the gript
// condition If. The condition sees the variables path, user and method.
type Allow struct {
	Methods []Method `json:"methods"`
	If      string   `json:"if"`
}

type Method string

const (
	READ   Method = "READ"
	WRITE  Method = "WRITE"
	DELETE Method = "DELETE"
)

// MethodForHTTP maps an HTTP verb to the access it requires.
func MethodForHTTP(verb string) Method {
	switch verb {
	case "GET", "HEAD":
		return READ
	case "DELETE":
		return DELETE
	}
	return WRITE
}
