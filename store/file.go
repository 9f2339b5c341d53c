package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dolmen-go/contextio"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/xdbsoft/docstore/api"
)

const (
	fileSuffix    = ".db"
	tempSuffix    = "~"
	formatVersion = 1
	maxLineSize   = 64 << 20
)

// FileGateway stores each database as a JSON-lines file.
//
// Layout:
//
//	data_dir/
//	  people.db    # header line, then one document per line
//	  people.db~   # staging file, only present during or after an interrupted write
//
// Files are replaced atomically: the new content is written and synced to the
// staging file, which is then renamed over the datafile.
type FileGateway struct {
	dir      string
	dirMode  os.FileMode
	fileMode os.FileMode
	logger   *zap.SugaredLogger
}

type fileHeader struct {
	Database string `mapstructure:"$$database"`
	Version  int    `mapstructure:"$$version"`
	Count    int    `mapstructure:"$$count"`
}

func NewFileGateway(dir string, logger *zap.SugaredLogger) (*FileGateway, error) {
	if dir == "" {
		return nil, errors.New("file store requires a data directory")
	}
	if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
		return nil, errors.Wrap(err, "unable to create data directory")
	}
	return &FileGateway{
		dir:      dir,
		dirMode:  DefaultDirMode,
		fileMode: DefaultFileMode,
		logger:   logger,
	}, nil
}

func (g *FileGateway) filename(identifier string) string {
	return filepath.Join(g.dir, identifier+fileSuffix)
}

func (g *FileGateway) Load(ctx context.Context, identifier string) (*api.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, readerError(identifier, err)
	}
	if !api.ValidIdentifier(identifier) {
		return nil, readerError(identifier, api.ErrInvalidIdentifier)
	}
	filename := g.filename(identifier)

	found, err := g.ensureDatafileIntegrity(filename)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	if !found {
		return nil, readerError(identifier, api.ErrDatabaseNotFound)
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	defer f.Close()

	docs, err := g.readLines(identifier, f)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	db, err := api.NewDatabase(identifier, docs...)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	return db, nil
}

func (g *FileGateway) readLines(identifier string, f *os.File) ([]*api.Document, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("missing header")
	}
	header, err := decodeHeader(scanner.Bytes())
	if err != nil {
		return nil, err
	}
	if header.Database != identifier {
		return nil, errors.Errorf("header names database %q", header.Database)
	}
	if header.Version != formatVersion {
		return nil, errors.Errorf("unsupported format version %d", header.Version)
	}

	docs := make([]*api.Document, 0, header.Count)
	line := 1
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		d, err := decodeDocument(b)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(docs) != header.Count {
		return nil, errors.Errorf("expected %d documents, found %d", header.Count, len(docs))
	}
	return docs, nil
}

func decodeHeader(b []byte) (fileHeader, error) {
	var header fileHeader
	var raw map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return header, errors.Wrap(err, "unable to decode header")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &header,
	})
	if err != nil {
		return header, err
	}
	if err := dec.Decode(raw); err != nil {
		return header, errors.Wrap(err, "invalid header")
	}
	return header, nil
}

func (g *FileGateway) Persist(ctx context.Context, db *api.Database) error {
	identifier := db.Identifier()
	if !api.ValidIdentifier(identifier) {
		return writerError(identifier, api.ErrInvalidIdentifier)
	}
	docs := db.Documents()

	buf := new(bytes.Buffer)
	wr := contextio.NewWriter(ctx, buf)

	header, err := json.Marshal(map[string]interface{}{
		"$$database": identifier,
		"$$version":  formatVersion,
		"$$count":    len(docs),
	})
	if err != nil {
		return writerError(identifier, err)
	}
	if _, err := wr.Write(append(header, '\n')); err != nil {
		return writerError(identifier, err)
	}
	for _, d := range docs {
		b, err := encodeDocument(d)
		if err != nil {
			return writerError(identifier, err)
		}
		if _, err := wr.Write(append(b, '\n')); err != nil {
			return writerError(identifier, err)
		}
	}

	if err := g.crashSafeWriteFile(g.filename(identifier), buf.Bytes()); err != nil {
		return writerError(identifier, err)
	}
	g.logger.Debugw("database persisted", "database", identifier, "documents", len(docs), "bytes", buf.Len())
	return nil
}

func (g *FileGateway) Delete(ctx context.Context, identifier string) error {
	if !api.ValidIdentifier(identifier) {
		return api.ErrInvalidIdentifier
	}
	filename := g.filename(identifier)
	removed := false
	for _, name := range []string{filename, filename + tempSuffix} {
		err := os.Remove(name)
		if err == nil {
			removed = true
			continue
		}
		if !os.IsNotExist(err) {
			return errors.Wrap(err, "unable to delete datafile")
		}
	}
	if !removed {
		return api.ErrDatabaseNotFound
	}
	return g.flushToStorage(g.dir, true)
}

func (g *FileGateway) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), tempSuffix)
		if !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		name = strings.TrimSuffix(name, fileSuffix)
		if !api.ValidIdentifier(name) || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *FileGateway) Exists(ctx context.Context, identifier string) (bool, error) {
	if !api.ValidIdentifier(identifier) {
		return false, nil
	}
	filename := g.filename(identifier)
	for _, name := range []string{filename, filename + tempSuffix} {
		ok, err := exists(name)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (g *FileGateway) Close() error {
	return nil
}

// ensureDatafileIntegrity recovers the staging file of an interrupted write
// when the datafile itself is missing. It reports whether a datafile exists.
func (g *FileGateway) ensureDatafileIntegrity(filename string) (bool, error) {
	ok, err := exists(filename)
	if err != nil || ok {
		return ok, err
	}
	tempFilename := filename + tempSuffix
	ok, err = exists(tempFilename)
	if err != nil || !ok {
		return false, err
	}
	g.logger.Warnw("recovering datafile from staging file", "file", filename)
	if err := os.Rename(tempFilename, filename); err != nil {
		return false, err
	}
	return true, nil
}

func (g *FileGateway) crashSafeWriteFile(filename string, data []byte) error {
	tempFilename := filename + tempSuffix

	if err := g.flushToStorage(filepath.Dir(filename), true); err != nil {
		return err
	}

	ok, err := exists(filename)
	if err != nil {
		return err
	}
	if ok {
		if err := g.flushToStorage(filename, false); err != nil {
			return err
		}
	}

	if err := os.WriteFile(tempFilename, data, g.fileMode); err != nil {
		return err
	}
	if err := g.flushToStorage(tempFilename, false); err != nil {
		return err
	}
	if err := os.Rename(tempFilename, filename); err != nil {
		return err
	}
	return g.flushToStorage(filepath.Dir(filename), true)
}

func (g *FileGateway) flushToStorage(filename string, isDir bool) error {
	flags := os.O_RDWR
	mode := g.fileMode
	if isDir {
		flags = os.O_RDONLY
		mode = g.dirMode
	}

	f, err := os.OpenFile(filename, flags, mode)
	if err != nil {
		return errors.Wrap(err, "flush to storage")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "flush to storage")
	}
	return f.Close()
}

func exists(filename string) (bool, error) {
	_, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
