package docstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/codec"
	"github.com/xdbsoft/docstore/coordinator"
	"github.com/xdbsoft/docstore/filter"
)

// result is the outcome of a handler: a status code and a payload encoded
// by the formatter of the request. A zero status means the response has
// already been written.
type result struct {
	status int
	data   interface{}
}

type message struct {
	Message string `json:"message"`
}

type errorMessage struct {
	Error string `json:"error"`
}

func messagef(status int, format string, args ...interface{}) result {
	return result{status: status, data: message{Message: fmt.Sprintf(format, args...)}}
}

func (s *Server) welcome() result {
	return result{status: http.StatusOK, data: map[string]string{
		"message": "Welcome to docstore",
		"version": Version,
	}}
}

// serveSpecial handles the routes starting with an underscore.
func (s *Server) serveSpecial(w http.ResponseWriter, r *http.Request, target api.ObjectRef) (result, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return result{}, invalidRequestMethodError(r.Method)
	}

	switch {
	case target.Database() == "_stats" && (!target.IsDocument() || target.ID() == "detailed"):
		stats, err := s.collectStatistics(target.ID() == "detailed")
		if err != nil {
			return result{}, errors.Wrap(err, "unable to collect statistics")
		}
		return result{status: http.StatusOK, data: stats}, nil

	case target.Database() == "_all_dbs" && !target.IsDocument():
		names, err := s.coordinator.ListDatabases(r.Context())
		if err != nil {
			return result{}, err
		}
		return result{status: http.StatusOK, data: names}, nil

	case target.Database() == "_metrics" && !target.IsDocument():
		s.stats.handler().ServeHTTP(w, r)
		// already written
		return result{}, nil
	}
	return result{}, notFoundError{target}
}

// readBody decodes the body of POST, PUT and PATCH requests. Creating a
// database needs no body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, target api.ObjectRef) (map[string]interface{}, error) {
	if r.ContentLength < 0 {
		return nil, missingLengthHeaderError{}
	}
	if r.Method == http.MethodPut && !target.IsDocument() {
		return nil, nil
	}

	parser, err := codec.BodyParserForContentType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, invalidBodyError(err.Error())
	}

	var body []byte
	if r.Body != nil {
		defer r.Body.Close()
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		if err != nil {
			return nil, invalidBodyError(errors.Wrap(err, "unable to read body").Error())
		}
	}

	props, err := parser.Parse(body)
	if err != nil {
		return nil, invalidBodyError(err.Error())
	}
	return props, nil
}

// getDatabase loads the database of the target. Load failures other than a
// missing database are logged, all of them are answered with 404.
func (s *Server) getDatabase(ctx context.Context, target api.ObjectRef) (*api.Database, error) {
	db, err := s.coordinator.GetDatabase(ctx, target.Database())
	if err != nil {
		var rerr *api.ReaderError
		if errors.As(err, &rerr) && !rerr.IsNotFound() && !errors.Is(err, api.ErrInvalidIdentifier) {
			s.logger.Errorw("unable to load database", "database", target.Database(), "error", err)
		}
		return nil, err
	}
	return db, nil
}

func (s *Server) persist(ctx context.Context, db *api.Database) error {
	return s.coordinator.Persist(ctx, db)
}

func (s *Server) createDatabase(ctx context.Context, target api.ObjectRef) (result, error) {
	if target.IsDocument() {
		return result{}, invalidRequestParameterError("Document identifier in request path is not allowed when creating a database")
	}

	identifier := target.Database()
	_, err := s.coordinator.CreateDatabase(ctx, identifier)
	switch {
	case errors.Is(err, coordinator.ErrDatabaseExists):
		return result{}, invalidRequestParameterError(fmt.Sprintf("Database %q already exists", identifier))
	case errors.Is(err, api.ErrInvalidIdentifier):
		return result{}, invalidRequestParameterError(fmt.Sprintf("Invalid database identifier %q", identifier))
	case err != nil:
		return result{}, err
	}

	s.events.emit(Event{Type: DatabaseCreated, Database: identifier})
	return messagef(http.StatusCreated, "Database %q created", identifier), nil
}

func (s *Server) createDocument(ctx context.Context, target api.ObjectRef, props map[string]interface{}) (result, error) {
	if target.IsDocument() {
		return result{}, invalidRequestParameterError("Document identifier in request path is not allowed when creating a document. Use PUT to update")
	}

	db, err := s.getDatabase(ctx, target)
	if err != nil {
		return result{}, err
	}

	doc, err := api.NewDocument(props)
	if err != nil {
		return result{}, invalidBodyError(err.Error())
	}
	if doc.ID() == "" {
		if err := doc.SetID(s.nextID()); err != nil {
			return result{}, err
		}
	}
	if !api.ValidIdentifier(doc.ID()) {
		return result{}, invalidBodyError(fmt.Sprintf("Invalid document identifier %q", doc.ID()))
	}
	if db.Contains(doc) {
		return result{}, invalidBodyError(fmt.Sprintf("Database %q already contains a document with identifier %q", db.Identifier(), doc.ID()))
	}
	if err := db.Add(doc); err != nil {
		return result{}, invalidBodyError(err.Error())
	}
	if err := s.persist(ctx, db); err != nil {
		return result{}, err
	}

	s.events.emit(Event{Type: DocumentCreated, Database: db.Identifier(), Document: doc.ID()})
	return result{status: http.StatusCreated, data: doc}, nil
}

func (s *Server) readDatabase(ctx context.Context, target api.ObjectRef, query url.Values) (result, error) {
	db, err := s.getDatabase(ctx, target)
	if err != nil {
		return result{}, err
	}

	f, err := filter.Build(query)
	if err != nil {
		return result{}, invalidRequestParameterError(err.Error())
	}
	if f == nil {
		return result{status: http.StatusOK, data: db}, nil
	}

	filtered := f.FilterCollection(db)
	status := http.StatusOK
	if filtered.Count() == 0 {
		status = http.StatusNotFound
	}
	return result{status: status, data: filtered}, nil
}

func (s *Server) findDocument(ctx context.Context, target api.ObjectRef) (*api.Database, *api.Document, error) {
	db, err := s.getDatabase(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	doc := db.FindByIdentifier(target.ID())
	if doc == nil {
		return nil, nil, notFoundError{target}
	}
	return db, doc, nil
}

func (s *Server) readDocument(ctx context.Context, target api.ObjectRef) (result, error) {
	_, doc, err := s.findDocument(ctx, target)
	if err != nil {
		return result{}, err
	}
	return result{status: http.StatusOK, data: doc}, nil
}

// documentFromBody builds the replacement of the stored document. An _id in
// the body must match the one of the path.
func documentFromBody(target api.ObjectRef, props map[string]interface{}) (*api.Document, error) {
	doc, err := api.NewDocument(props)
	if err != nil {
		return nil, invalidBodyError(err.Error())
	}
	if err := doc.SetID(target.ID()); err != nil {
		return nil, invalidBodyError(fmt.Sprintf("%s: %q in body, %q in path", err, doc.ID(), target.ID()))
	}
	return doc, nil
}

func (s *Server) updateDocument(ctx context.Context, target api.ObjectRef, props map[string]interface{}) (result, error) {
	db, _, err := s.findDocument(ctx, target)
	if err != nil {
		return result{}, err
	}
	replacement, err := documentFromBody(target, props)
	if err != nil {
		return result{}, err
	}

	doc, err := db.Update(replacement)
	if err != nil {
		return result{}, err
	}
	if err := s.persist(ctx, db); err != nil {
		return result{}, err
	}

	s.events.emit(Event{Type: DocumentUpdated, Database: db.Identifier(), Document: doc.ID()})
	return result{status: http.StatusOK, data: doc}, nil
}

func (s *Server) patchDocument(ctx context.Context, target api.ObjectRef, props map[string]interface{}) (result, error) {
	if !target.IsDocument() {
		return result{}, invalidRequestParameterError("Document identifier is missing")
	}
	db, _, err := s.findDocument(ctx, target)
	if err != nil {
		return result{}, err
	}
	changes, err := documentFromBody(target, props)
	if err != nil {
		return result{}, err
	}

	doc, err := db.Patch(changes)
	if err != nil {
		return result{}, err
	}
	if err := s.persist(ctx, db); err != nil {
		return result{}, err
	}

	s.events.emit(Event{Type: DocumentUpdated, Database: db.Identifier(), Document: doc.ID()})
	return result{status: http.StatusOK, data: doc}, nil
}

func (s *Server) deleteDocument(ctx context.Context, target api.ObjectRef) (result, error) {
	db, doc, err := s.findDocument(ctx, target)
	if err != nil {
		return result{}, err
	}
	if err := db.Remove(doc); err != nil {
		return result{}, err
	}
	if err := s.persist(ctx, db); err != nil {
		return result{}, err
	}

	s.events.emit(Event{Type: DocumentDeleted, Database: db.Identifier(), Document: doc.ID()})
	return result{status: http.StatusNoContent}, nil
}

func (s *Server) dropDatabase(ctx context.Context, target api.ObjectRef) (result, error) {
	identifier := target.Database()
	err := s.coordinator.DropDatabase(ctx, identifier)
	if errors.Is(err, coordinator.ErrDatabaseNotFound) {
		return result{}, notFoundError{target}
	}
	if err != nil {
		return result{}, err
	}

	s.events.emit(Event{Type: DatabaseDeleted, Database: identifier})
	return result{status: http.StatusNoContent}, nil
}
