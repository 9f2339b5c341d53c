package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedContentType is returned for request bodies no parser
	// understands, including multipart bodies.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrEmptyBody is returned when a body is required but none was sent.
	ErrEmptyBody = errors.New("empty body")
)

// BodyParser decodes a request body into document properties.
type BodyParser interface {
	Parse(body []byte) (map[string]interface{}, error)
}

// JSONBodyParser expects a single JSON object.
type JSONBodyParser struct{}

func (JSONBodyParser) Parse(body []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "unable to decode JSON body")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON body")
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.New("JSON body must be an object")
	}
	return m, nil
}

// FormBodyParser decodes url-encoded forms. Repeated keys become lists,
// all values are strings.
type FormBodyParser struct{}

func (FormBodyParser) Parse(body []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode form body")
	}
	m := make(map[string]interface{}, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			m[k] = vs[0]
			continue
		}
		l := make([]interface{}, len(vs))
		for i, v := range vs {
			l[i] = v
		}
		m[k] = l
	}
	return m, nil
}

// BodyParserForContentType returns the parser for the media type of
// contentType. Bodies without a content type are read as JSON.
func BodyParserForContentType(contentType string) (BodyParser, error) {
	if strings.TrimSpace(contentType) == "" {
		return JSONBodyParser{}, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedContentType, "%q", contentType)
	}
	switch {
	case mediaType == MediaTypeForm:
		return FormBodyParser{}, nil
	case mediaType == MediaTypeJSON, strings.HasSuffix(mediaType, "+json"), mediaType == "text/plain":
		return JSONBodyParser{}, nil
	case strings.HasPrefix(mediaType, "multipart/"):
		return nil, errors.Wrapf(ErrUnsupportedContentType, "no body parser for %q", mediaType)
	}
	return nil, errors.Wrapf(ErrUnsupportedContentType, "%q", mediaType)
}
