// Package codec converts between HTTP payloads and document values.
//
// Formatters encode responses and are chosen from the Accept header. Body
// parsers decode request bodies and are chosen from the Content-Type header.
package codec

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	MediaTypeJSON = "application/json"
	MediaTypeBSON = "application/bson"
	MediaTypeForm = "application/x-www-form-urlencoded"
)

// Formatter encodes response payloads.
type Formatter interface {
	ContentType() string
	Format(v interface{}) ([]byte, error)
}

// JSONFormatter is the default formatter.
type JSONFormatter struct {
	Pretty bool
}

func (f JSONFormatter) ContentType() string {
	return MediaTypeJSON + "; charset=utf-8"
}

func (f JSONFormatter) Format(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	if f.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "unable to encode JSON")
	}
	return buf.Bytes(), nil
}

// BSONFormatter encodes payloads as a BSON document. Payloads that are not
// objects, such as lists of documents, are wrapped as {"data": payload}.
type BSONFormatter struct{}

func (f BSONFormatter) ContentType() string {
	return MediaTypeBSON
}

func (f BSONFormatter) Format(v interface{}) ([]byte, error) {
	// go through JSON so that custom marshalers of documents apply
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode value")
	}
	var plain interface{}
	if err := json.Unmarshal(b, &plain); err != nil {
		return nil, errors.Wrap(err, "unable to decode value")
	}
	doc, ok := plain.(map[string]interface{})
	if !ok {
		doc = map[string]interface{}{"data": plain}
	}
	out, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode BSON")
	}
	return out, nil
}

// FormatterForAccept returns the formatter for the first supported media type
// listed in accept. JSON is the default.
func FormatterForAccept(accept string, pretty bool) Formatter {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case MediaTypeBSON:
			return BSONFormatter{}
		case MediaTypeJSON:
			return JSONFormatter{Pretty: pretty}
		}
	}
	return JSONFormatter{Pretty: pretty}
}
