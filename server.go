// Package docstore serves schema-less JSON documents over HTTP.
//
// Documents are grouped in databases addressed by the first segment of the
// request path; the optional second segment is a document identifier.
// Databases are loaded lazily by a coordinator and persisted through a
// pluggable store after every change.
package docstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/xdbsoft/docstore/api"
	"github.com/xdbsoft/docstore/codec"
	"github.com/xdbsoft/docstore/coordinator"
	"github.com/xdbsoft/docstore/oidc"
	"github.com/xdbsoft/docstore/rules"
	"github.com/xdbsoft/docstore/store"
)

// Version of the server, reported by the welcome and statistics routes.
const Version = "0.3.0"

// Server dispatches HTTP requests to the coordinator. It is safe for
// concurrent use: requests on the same database are serialized.
type Server struct {
	cfg           Config
	coordinator   *coordinator.Coordinator
	authenticator api.Authenticator
	ruleChecker   rules.Checker
	nextID        api.IDGenerator
	stats         *statistics
	events        emitter
	logger        *zap.SugaredLogger
}

// New instantiates a server storing data in the configured backend.
func New(cfg Config, logger *zap.SugaredLogger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	gw, err := store.New(store.Options{
		Backend: cfg.Backend,
		DataDir: cfg.DataDir,
		ConnStr: cfg.DBConnStr,
		Logger:  logger.Named("store"),
	})
	if err != nil {
		return nil, err
	}

	var a api.Authenticator
	if len(cfg.OpenIDConnectIssuer) > 0 {
		a, err = oidc.New(context.Background(), cfg.OpenIDConnectIssuer, logger.Named("oidc"))
		if err != nil {
			gw.Close()
			return nil, err
		}
	}

	return NewWithGateway(cfg, gw, a, logger), nil
}

// NewWithGateway instantiates a server on an existing gateway. The
// authenticator may be nil, in which case every request is anonymous.
func NewWithGateway(cfg Config, gw api.Gateway, a api.Authenticator, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}

	s := &Server{
		cfg:           cfg,
		coordinator:   coordinator.New(gw, logger.Named("coordinator")),
		authenticator: a,
		ruleChecker:   rules.NewChecker(cfg.Rules),
		nextID:        api.Generator(cfg.IDGenerator),
		logger:        logger,
	}
	s.stats = newStatistics(func() float64 {
		return float64(len(s.coordinator.Loaded()))
	})

	s.On(s.stats.observeEvent)
	s.On(func(ev Event) {
		s.logger.Debugw("event", "type", ev.Type, "database", ev.Database, "document", ev.Document)
	})
	return s
}

// On registers h to receive every change applied by the server.
func (s *Server) On(h EventHandler) {
	s.events.on(h)
}

// Coordinator gives access to the loaded databases.
func (s *Server) Coordinator() *coordinator.Coordinator {
	return s.coordinator
}

// Handler wraps the server with access logging, compression and, when
// origins are configured, CORS.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s
	if len(s.cfg.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE"}),
			handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			handlers.ExposedHeaders([]string{"ETag", "Last-Modified"}),
		)(h)
	}
	h = handlers.CompressHandler(h)
	access := zap.NewStdLog(s.logger.Desugar().Named("access")).Writer()
	return handlers.CombinedLoggingHandler(access, h)
}

// Close persists the databases with unsaved changes and closes the store.
func (s *Server) Close(ctx context.Context) error {
	return s.coordinator.Close(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {

	rec := &statusRecorder{ResponseWriter: w}
	defer func() {
		s.stats.observeRequest(r.Method, rec.status)
	}()

	res, err := s.dispatch(rec, r)
	if err != nil {
		s.handleError(rec, r, err)
		return
	}
	s.handleResponse(rec, r, res)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) (result, error) {

	target, err := getTarget(r)
	if err != nil {
		return result{}, err
	}

	user, err := s.authenticate(r)
	if err != nil {
		return result{}, err
	}

	if target.IsSpecial() {
		return s.serveSpecial(w, r, target)
	}

	if target.IsRoot() {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			return result{}, invalidRequestMethodError(r.Method)
		}
		return s.welcome(), nil
	}

	if err := s.checkIsAuthorized(target, user, rules.MethodForHTTP(r.Method)); err != nil {
		return result{}, err
	}

	s.logger.Debugw("request", "method", r.Method, "target", target.String(), "user", user.ID)

	var props map[string]interface{}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		props, err = s.readBody(w, r, target)
		if err != nil {
			return result{}, err
		}
	case http.MethodGet, http.MethodHead, http.MethodDelete:
	default:
		return result{}, invalidRequestMethodError(r.Method)
	}

	unlock := s.coordinator.Lock(target.Database())
	defer unlock()

	res, err := s.serveDatabase(r, target, props)
	if err != nil {
		return result{}, err
	}
	// documents are shared, encode them before the lock is released
	return s.render(r, res)
}

func (s *Server) serveDatabase(r *http.Request, target api.ObjectRef, props map[string]interface{}) (result, error) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if target.IsDocument() {
			return s.readDocument(ctx, target)
		}
		return s.readDatabase(ctx, target, r.URL.Query())
	case http.MethodPost:
		return s.createDocument(ctx, target, props)
	case http.MethodPut:
		if target.IsDocument() {
			return s.updateDocument(ctx, target, props)
		}
		return s.createDatabase(ctx, target)
	case http.MethodPatch:
		return s.patchDocument(ctx, target, props)
	default:
		if target.IsDocument() {
			return s.deleteDocument(ctx, target)
		}
		return s.dropDatabase(ctx, target)
	}
}

func (s *Server) authenticate(r *http.Request) (api.User, error) {
	if s.authenticator == nil {
		return api.User{}, nil
	}

	user, err := s.authenticator.Authenticate(r)
	if err != nil && !IsNotAuthorized(err) {
		s.logger.Warnw("authentication failed", "error", err)
		return api.User{}, notAuthorizedError{}
	}
	return user, err
}

func (s *Server) checkIsAuthorized(target api.ObjectRef, user api.User, method rules.Method) error {
	if !s.ruleChecker.Enabled() {
		return nil
	}

	ok, err := s.ruleChecker.Check(target, user, method)
	if err != nil {
		s.logger.Warnw("unable to evaluate rule", "target", target.String(), "error", err)
		return notAuthorizedError{target}
	}

	if !ok {
		return notAuthorizedError{target}
	}

	return nil
}

func getTarget(r *http.Request) (api.ObjectRef, error) {

	path := strings.TrimPrefix(r.URL.Path, "/")
	if len(path) == 0 {
		return api.ObjectRef{}, nil
	}
	items := strings.Split(path, "/")
	if len(items) > 2 {
		return nil, invalidRequestParameterError("path must be /{database} or /{database}/{id}")
	}
	for _, item := range items {
		if len(item) == 0 {
			return nil, invalidRequestParameterError("empty item in path")
		}
	}

	return api.ObjectRef(items), nil
}

func computeEtag(body []byte) string {
	h := sha1.Sum(body)
	return `"` + hex.EncodeToString(h[:]) + `"`
}

// rendered is a payload already encoded for the request.
type rendered struct {
	contentType  string
	body         []byte
	lastModified time.Time
}

// render encodes the payload of res with the formatter selected by the
// request.
func (s *Server) render(r *http.Request, res result) (result, error) {
	if _, ok := res.data.(rendered); ok || res.status == 0 || res.status == http.StatusNoContent || res.data == nil {
		return res, nil
	}

	formatter := codec.FormatterForAccept(r.Header.Get("Accept"), r.URL.Query().Get("print") == "pretty")
	body, err := formatter.Format(res.data)
	if err != nil {
		return result{}, err
	}
	out := rendered{contentType: formatter.ContentType(), body: body}
	if c, ok := res.data.(api.Cacheable); ok {
		out.lastModified = c.GetLastModified()
	}
	return result{status: res.status, data: out}, nil
}

// etagMatches reports whether the If-None-Match header lists etag. Weak
// validators compare equal to strong ones.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request, res result) {

	if res.status == 0 {
		return
	}
	if res.status == http.StatusNoContent || res.data == nil {
		w.WriteHeader(res.status)
		return
	}

	res, err := s.render(r, res)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	out := res.data.(rendered)

	if res.status == http.StatusOK && (r.Method == http.MethodGet || r.Method == http.MethodHead) {

		// Handle ETag / If-None-Match
		etag := computeEtag(out.body)
		w.Header().Set("ETag", etag)
		if etagMatches(r.Header.Get("If-None-Match"), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		// Handle Last-Modified / If-Modified-Since
		if !out.lastModified.IsZero() {
			w.Header().Set("Last-Modified", out.lastModified.UTC().Format(http.TimeFormat))

			ifModifiedSince, err := http.ParseTime(r.Header.Get("If-Modified-Since"))
			if err == nil && !out.lastModified.Truncate(time.Second).After(ifModifiedSince) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", out.contentType)
	w.WriteHeader(res.status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(out.body); err != nil {
		s.logger.Debugw("unable to write response", "error", err)
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {

	status := 0
	switch {
	case IsBadRequest(err):
		status = http.StatusBadRequest
	case IsNotAuthorized(err):
		status = http.StatusUnauthorized
	case IsNotFound(err):
		status = http.StatusNotFound
	case IsMethodNotAllowed(err):
		status = http.StatusMethodNotAllowed
	case IsLengthRequired(err):
		status = http.StatusLengthRequired
	case isWriterError(err):
		status = http.StatusInternalServerError
	}

	if status == 0 {
		// the connection is dropped without response
		s.logger.Errorf("unexpected error on %s %s: %+v", r.Method, r.URL.Path, err)
		panic(http.ErrAbortHandler)
	}

	s.logger.Debugw("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	if status == http.StatusInternalServerError {
		s.logger.Errorw("unable to persist", "error", err)
	}

	msg := err.Error()
	if status == http.StatusUnauthorized {
		msg = "Unauthorized"
	}
	if status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", "GET, HEAD, POST, PUT, PATCH, DELETE")
	}
	s.handleResponse(w, r, result{status: status, data: errorMessage{Error: msg}})
}
