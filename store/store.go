// Package store contains the durable storage backends of the document store.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xdbsoft/docstore/api"
)

const (
	DefaultDirMode  os.FileMode = 0o755
	DefaultFileMode os.FileMode = 0o644
)

// Options configures a backend created by New.
type Options struct {
	// Backend is one of "file" (default), "bolt", "sqlite", "postgres" or
	// "memory".
	Backend string
	// DataDir holds the files of the file, bolt and sqlite backends.
	DataDir string
	// ConnStr is the PostgreSQL connection string.
	ConnStr string
	Logger  *zap.SugaredLogger
}

// New creates a Gateway based on the backend name.
//
// Supported backends:
//
//	"file"     - one JSON-lines file per database in DataDir (default)
//	"bolt"     - bbolt database at DataDir/docstore.bolt
//	"sqlite"   - SQLite database at DataDir/docstore.sqlite
//	"postgres" - PostgreSQL database reached with ConnStr
//	"memory"   - in-memory (ephemeral, for testing)
func New(opts Options) (api.Gateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	switch opts.Backend {
	case "file", "":
		return NewFileGateway(opts.DataDir, logger)
	case "bolt":
		return NewBoltGateway(filepath.Join(opts.DataDir, "docstore.bolt"), logger)
	case "sqlite":
		return NewSqliteGateway(filepath.Join(opts.DataDir, "docstore.sqlite"), logger)
	case "postgres":
		return NewPostgresGateway(opts.ConnStr, logger)
	case "memory":
		return NewMemoryGateway(), nil
	default:
		return nil, errors.Errorf("unknown store backend: %q (supported: file, bolt, sqlite, postgres, memory)", opts.Backend)
	}
}

func encodeDocument(d *api.Document) ([]byte, error) {
	return json.Marshal(d)
}

func decodeDocument(b []byte) (*api.Document, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "unable to decode document")
	}
	if m == nil {
		return nil, errors.New("document is not an object")
	}
	d, err := api.NewDocument(m)
	if err != nil {
		return nil, err
	}
	if d.ID() == "" {
		return nil, api.ErrMissingIdentifier
	}
	return d, nil
}

func readerError(identifier string, err error) error {
	return &api.ReaderError{Identifier: identifier, Err: err}
}

func writerError(identifier string, err error) error {
	return &api.WriterError{Identifier: identifier, Err: err}
}
