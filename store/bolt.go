package store

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/xdbsoft/docstore/api"
)

// BoltGateway stores every database as a bucket of a single bbolt file.
// Keys are big-endian positions so that a cursor walk returns documents in
// database order.
type BoltGateway struct {
	db     *bolt.DB
	logger *zap.SugaredLogger
}

func NewBoltGateway(path string, logger *zap.SugaredLogger) (*BoltGateway, error) {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return nil, errors.Wrap(err, "unable to create data directory")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "unable to open bolt file")
	}
	return &BoltGateway{db: db, logger: logger}, nil
}

func positionKey(i int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(i))
	return k
}

func (g *BoltGateway) Load(ctx context.Context, identifier string) (*api.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, readerError(identifier, err)
	}
	var docs []*api.Document
	err := g.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(identifier))
		if b == nil {
			return api.ErrDatabaseNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return errors.Errorf("invalid key %x", k)
			}
			d, err := decodeDocument(v)
			if err != nil {
				return errors.Wrapf(err, "position %d", binary.BigEndian.Uint64(k))
			}
			docs = append(docs, d)
			return nil
		})
	})
	if err != nil {
		return nil, readerError(identifier, err)
	}
	db, err := api.NewDatabase(identifier, docs...)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	return db, nil
}

func (g *BoltGateway) Persist(ctx context.Context, db *api.Database) error {
	identifier := db.Identifier()
	if err := ctx.Err(); err != nil {
		return writerError(identifier, err)
	}
	docs := db.Documents()
	values := make([][]byte, len(docs))
	for i, d := range docs {
		v, err := encodeDocument(d)
		if err != nil {
			return writerError(identifier, err)
		}
		values[i] = v
	}

	err := g.db.Update(func(tx *bolt.Tx) error {
		name := []byte(identifier)
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		for i, v := range values {
			if err := b.Put(positionKey(i), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return writerError(identifier, err)
	}
	g.logger.Debugw("database persisted", "database", identifier, "documents", len(docs))
	return nil
}

func (g *BoltGateway) Delete(ctx context.Context, identifier string) error {
	return g.db.Update(func(tx *bolt.Tx) error {
		name := []byte(identifier)
		if tx.Bucket(name) == nil {
			return api.ErrDatabaseNotFound
		}
		return tx.DeleteBucket(name)
	})
}

func (g *BoltGateway) List(ctx context.Context) ([]string, error) {
	var names []string
	err := g.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to list buckets")
	}
	sort.Strings(names)
	return names, nil
}

func (g *BoltGateway) Exists(ctx context.Context, identifier string) (bool, error) {
	found := false
	err := g.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket([]byte(identifier)) != nil
		return nil
	})
	return found, err
}

func (g *BoltGateway) Close() error {
	return g.db.Close()
}
