// Package coordinator keeps the registry of loaded databases.
//
// The Coordinator guarantees that a single *api.Database exists per
// identifier: every lookup returns the same instance, so mutations made
// through one handle are observed through all others. Databases are loaded
// lazily from an api.Gateway the first time they are requested.
package coordinator

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xdbsoft/docstore/api"
)

var (
	// ErrDatabaseExists is returned by CreateDatabase when the identifier is
	// already loaded or stored.
	ErrDatabaseExists = errors.New("database already exists")

	// ErrDatabaseNotFound is returned when the identifier is neither loaded
	// nor stored.
	ErrDatabaseNotFound = api.ErrDatabaseNotFound
)

// Coordinator is safe for concurrent use. The databases it hands out are
// not: callers hold Lock(identifier) while using one.
type Coordinator struct {
	gateway api.Gateway
	logger  *zap.SugaredLogger

	mu        sync.Mutex
	databases map[string]*api.Database
	locks     map[string]*sync.Mutex

	loads singleflight.Group
}

func New(gateway api.Gateway, logger *zap.SugaredLogger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Coordinator{
		gateway:   gateway,
		logger:    logger,
		databases: make(map[string]*api.Database),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Lock acquires the lock of the identifier and returns the function
// releasing it. Requests on a database run under its lock.
func (c *Coordinator) Lock(identifier string) func() {
	c.mu.Lock()
	l, ok := c.locks[identifier]
	if !ok {
		l = new(sync.Mutex)
		c.locks[identifier] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (c *Coordinator) loaded(identifier string) *api.Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.databases[identifier]
}

// GetDatabase returns the live instance of the database, loading it from the
// gateway on first access. It fails with *api.ReaderError when the database
// is missing or unreadable.
func (c *Coordinator) GetDatabase(ctx context.Context, identifier string) (*api.Database, error) {
	if db := c.loaded(identifier); db != nil {
		return db, nil
	}
	if !api.ValidIdentifier(identifier) {
		return nil, &api.ReaderError{Identifier: identifier, Err: api.ErrInvalidIdentifier}
	}

	v, err, _ := c.loads.Do(identifier, func() (interface{}, error) {
		if db := c.loaded(identifier); db != nil {
			return db, nil
		}
		// waiters share the load, it must outlive the first caller
		db, err := c.gateway.Load(context.WithoutCancel(ctx), identifier)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.databases[identifier]; ok {
			return existing, nil
		}
		c.databases[identifier] = db
		c.logger.Debugw("database loaded", "database", identifier, "documents", db.Count())
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.Database), nil
}

// GetDataByDatabase is an alias of GetDatabase.
func (c *Coordinator) GetDataByDatabase(ctx context.Context, identifier string) (*api.Database, error) {
	return c.GetDatabase(ctx, identifier)
}

// DatabaseExists reports whether the database is loaded or stored.
func (c *Coordinator) DatabaseExists(ctx context.Context, identifier string) (bool, error) {
	if c.loaded(identifier) != nil {
		return true, nil
	}
	if !api.ValidIdentifier(identifier) {
		return false, nil
	}
	return c.gateway.Exists(ctx, identifier)
}

// CreateDatabase registers a new empty database and persists it.
func (c *Coordinator) CreateDatabase(ctx context.Context, identifier string) (*api.Database, error) {
	if !api.ValidIdentifier(identifier) {
		return nil, errors.Wrapf(api.ErrInvalidIdentifier, "%q", identifier)
	}
	found, err := c.DatabaseExists(ctx, identifier)
	if err != nil {
		return nil, errors.Wrap(err, "unable to check database existence")
	}
	if found {
		return nil, errors.Wrapf(ErrDatabaseExists, "%q", identifier)
	}

	db, err := api.NewDatabase(identifier)
	if err != nil {
		return nil, err
	}
	if err := c.gateway.Persist(ctx, db); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.databases[identifier]; ok {
		return nil, errors.Wrapf(ErrDatabaseExists, "%q", identifier)
	}
	c.databases[identifier] = db
	c.logger.Infow("database created", "database", identifier)
	return db, nil
}

// DropDatabase unregisters the database and deletes its durable
// representation.
func (c *Coordinator) DropDatabase(ctx context.Context, identifier string) error {
	found, err := c.DatabaseExists(ctx, identifier)
	if err != nil {
		return errors.Wrap(err, "unable to check database existence")
	}
	if !found {
		return errors.Wrapf(ErrDatabaseNotFound, "%q", identifier)
	}

	c.mu.Lock()
	delete(c.databases, identifier)
	c.mu.Unlock()

	if err := c.gateway.Delete(ctx, identifier); err != nil && !errors.Is(err, api.ErrDatabaseNotFound) {
		return errors.Wrapf(err, "unable to delete %q", identifier)
	}
	c.logger.Infow("database dropped", "database", identifier)
	return nil
}

// ListDatabases returns the sorted identifiers of loaded and stored
// databases.
func (c *Coordinator) ListDatabases(ctx context.Context) ([]string, error) {
	stored, err := c.gateway.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list databases")
	}

	set := make(map[string]struct{}, len(stored))
	for _, name := range stored {
		set[name] = struct{}{}
	}
	c.mu.Lock()
	for name := range c.databases {
		set[name] = struct{}{}
	}
	c.mu.Unlock()

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Loaded returns the databases currently in memory, sorted by identifier.
func (c *Coordinator) Loaded() []*api.Database {
	c.mu.Lock()
	dbs := make([]*api.Database, 0, len(c.databases))
	for _, db := range c.databases {
		dbs = append(dbs, db)
	}
	c.mu.Unlock()

	sort.Slice(dbs, func(i, j int) bool {
		return dbs[i].Identifier() < dbs[j].Identifier()
	})
	return dbs
}

// Persist writes the database through the gateway when it has unsaved
// changes. The caller holds the database lock.
func (c *Coordinator) Persist(ctx context.Context, db *api.Database) error {
	if !db.IsDirty() {
		return nil
	}
	if err := c.gateway.Persist(ctx, db); err != nil {
		return err
	}
	db.MarkClean()
	return nil
}

// Flush persists every dirty database. It keeps going after a failure and
// returns the first error.
func (c *Coordinator) Flush(ctx context.Context) error {
	var first error
	for _, db := range c.Loaded() {
		unlock := c.Lock(db.Identifier())
		var err error
		// skip databases dropped since the snapshot
		if c.loaded(db.Identifier()) == db {
			err = c.Persist(ctx, db)
		}
		unlock()
		if err != nil {
			c.logger.Errorw("unable to flush database", "database", db.Identifier(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close flushes dirty databases and closes the gateway.
func (c *Coordinator) Close(ctx context.Context) error {
	flushErr := c.Flush(ctx)
	if err := c.gateway.Close(); err != nil {
		return errors.Wrap(err, "unable to close store")
	}
	return flushErr
}
