package api

import "context"

//Gateway describes the interface that a durable storage backend should implement
//
// Load returns a *ReaderError when the database is missing or unreadable.
// Persist returns a *WriterError and must replace the durable representation
// atomically: a failed or interrupted Persist never yields a corrupt Load.
type Gateway interface {
	Load(ctx context.Context, identifier string) (*Database, error)
	Persist(ctx context.Context, db *Database) error
	Delete(ctx context.Context, identifier string) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, identifier string) (bool, error)
	Close() error
}
