package store

import (
	"context"
	"sort"
	"sync"

	"github.com/xdbsoft/docstore/api"
)

// MemoryGateway keeps serialized snapshots of every database in memory.
// Loading decodes a fresh copy, like a durable backend would.
type MemoryGateway struct {
	mu        sync.RWMutex
	databases map[string][][]byte
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{databases: make(map[string][][]byte)}
}

func (g *MemoryGateway) Load(ctx context.Context, identifier string) (*api.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, readerError(identifier, err)
	}
	g.mu.RLock()
	lines, ok := g.databases[identifier]
	g.mu.RUnlock()
	if !ok {
		return nil, readerError(identifier, api.ErrDatabaseNotFound)
	}

	docs := make([]*api.Document, 0, len(lines))
	for _, line := range lines {
		d, err := decodeDocument(line)
		if err != nil {
			return nil, readerError(identifier, err)
		}
		docs = append(docs, d)
	}
	db, err := api.NewDatabase(identifier, docs...)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	return db, nil
}

func (g *MemoryGateway) Persist(ctx context.Context, db *api.Database) error {
	if err := ctx.Err(); err != nil {
		return writerError(db.Identifier(), err)
	}
	docs := db.Documents()
	lines := make([][]byte, 0, len(docs))
	for _, d := range docs {
		b, err := encodeDocument(d)
		if err != nil {
			return writerError(db.Identifier(), err)
		}
		lines = append(lines, b)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.databases[db.Identifier()] = lines
	return nil
}

func (g *MemoryGateway) Delete(ctx context.Context, identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.databases[identifier]; !ok {
		return api.ErrDatabaseNotFound
	}
	delete(g.databases, identifier)
	return nil
}

func (g *MemoryGateway) List(ctx context.Context) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.databases))
	for name := range g.databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *MemoryGateway) Exists(ctx context.Context, identifier string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.databases[identifier]
	return ok, nil
}

func (g *MemoryGateway) Close() error {
	return nil
}
