package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	//we expect to depend on specific behaviour of github.com/lib/pq and github.com/mattn/go-sqlite3
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xdbsoft/docstore/api"
)

type dialect struct {
	driver       string
	numbered     bool
	createTables []string
}

var postgres = dialect{
	driver:   "postgres",
	numbered: true,
	createTables: []string{
		`CREATE TABLE IF NOT EXISTS t_database (
			id      character varying(128) NOT NULL,
			created timestamp with time zone NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT t_database_pkey PRIMARY KEY (id)
		)`,
		`CREATE TABLE IF NOT EXISTS t_document (
			db_id    character varying(128) NOT NULL,
			pos      integer NOT NULL,
			id       text NOT NULL,
			content  jsonb NOT NULL,
			CONSTRAINT t_document_pkey PRIMARY KEY (db_id, id)
		)`,
	},
}

var sqlite = dialect{
	driver: "sqlite3",
	createTables: []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS t_database (
			id      TEXT PRIMARY KEY,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS t_document (
			db_id    TEXT NOT NULL,
			pos      INTEGER NOT NULL,
			id       TEXT NOT NULL,
			content  TEXT NOT NULL,
			PRIMARY KEY (db_id, id)
		)`,
	},
}

// rebind turns ? placeholders into $n for drivers using numbered parameters.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLGateway stores databases in two tables of a SQL database: t_database
// registers identifiers, t_document holds one row per document.
type SQLGateway struct {
	db      *sql.DB
	dialect dialect
	logger  *zap.SugaredLogger
}

func NewPostgresGateway(connStr string, logger *zap.SugaredLogger) (*SQLGateway, error) {
	return newSQLGateway(postgres, connStr, logger)
}

func NewSqliteGateway(path string, logger *zap.SugaredLogger) (*SQLGateway, error) {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirMode); err != nil {
		return nil, errors.Wrap(err, "unable to create data directory")
	}
	return newSQLGateway(sqlite, path, logger)
}

func newSQLGateway(d dialect, dsn string, logger *zap.SugaredLogger) (*SQLGateway, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect")
	}
	g := &SQLGateway{db: db, dialect: d, logger: logger}
	if err := g.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return g, nil
}

// Init creates the tables when they do not exist yet.
func (g *SQLGateway) Init() error {
	for _, stmt := range g.dialect.createTables {
		if _, err := g.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "unable to create tables")
		}
	}
	return nil
}

func (g *SQLGateway) Load(ctx context.Context, identifier string) (*api.Database, error) {
	found, err := g.Exists(ctx, identifier)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	if !found {
		return nil, readerError(identifier, api.ErrDatabaseNotFound)
	}

	rows, err := g.db.QueryContext(ctx, g.dialect.rebind(
		"SELECT content FROM t_document WHERE db_id=? ORDER BY pos"), identifier)
	if err != nil {
		return nil, readerError(identifier, errors.Wrap(err, "select query failed"))
	}
	defer rows.Close()

	var docs []*api.Document
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, readerError(identifier, errors.Wrap(err, "DB retrieval failed"))
		}
		d, err := decodeDocument(content)
		if err != nil {
			return nil, readerError(identifier, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, readerError(identifier, err)
	}

	db, err := api.NewDatabase(identifier, docs...)
	if err != nil {
		return nil, readerError(identifier, err)
	}
	return db, nil
}

func (g *SQLGateway) Persist(ctx context.Context, db *api.Database) error {
	identifier := db.Identifier()
	docs := db.Documents()

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return writerError(identifier, errors.Wrap(err, "unable to begin transaction"))
	}
	if err := g.replace(ctx, tx, identifier, docs); err != nil {
		tx.Rollback()
		return writerError(identifier, err)
	}
	if err := tx.Commit(); err != nil {
		return writerError(identifier, errors.Wrap(err, "unable to commit"))
	}
	g.logger.Debugw("database persisted", "database", identifier, "documents", len(docs))
	return nil
}

func (g *SQLGateway) replace(ctx context.Context, tx *sql.Tx, identifier string, docs []*api.Document) error {
	if _, err := tx.ExecContext(ctx, g.dialect.rebind(
		"INSERT INTO t_database (id) VALUES (?) ON CONFLICT (id) DO NOTHING"), identifier); err != nil {
		return errors.Wrap(err, "unable to register database")
	}
	if _, err := tx.ExecContext(ctx, g.dialect.rebind(
		"DELETE FROM t_document WHERE db_id=?"), identifier); err != nil {
		return errors.Wrap(err, "unable to clear documents")
	}

	stmt, err := tx.PrepareContext(ctx, g.dialect.rebind(
		"INSERT INTO t_document (db_id, pos, id, content) VALUES (?,?,?,?)"))
	if err != nil {
		return errors.Wrap(err, "unable to prepare insert")
	}
	defer stmt.Close()

	for i, d := range docs {
		b, err := encodeDocument(d)
		if err != nil {
			return errors.Wrap(err, "unable to encode document")
		}
		if _, err := stmt.ExecContext(ctx, identifier, i, d.ID(), string(b)); err != nil {
			return errors.Wrapf(err, "unable to insert document %s", d.ID())
		}
	}
	return nil
}

func (g *SQLGateway) Delete(ctx context.Context, identifier string) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, g.dialect.rebind("DELETE FROM t_database WHERE id=?"), identifier)
	if err != nil {
		return errors.Wrap(err, "unable to delete database")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return api.ErrDatabaseNotFound
	}
	if _, err := tx.ExecContext(ctx, g.dialect.rebind("DELETE FROM t_document WHERE db_id=?"), identifier); err != nil {
		return errors.Wrap(err, "unable to delete documents")
	}
	return tx.Commit()
}

func (g *SQLGateway) List(ctx context.Context) ([]string, error) {
	rows, err := g.db.QueryContext(ctx, "SELECT id FROM t_database ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "DB query failed")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "DB retrieval failed")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (g *SQLGateway) Exists(ctx context.Context, identifier string) (bool, error) {
	var n int
	err := g.db.QueryRowContext(ctx, g.dialect.rebind(
		"SELECT COUNT(*) FROM t_database WHERE id=?"), identifier).Scan(&n)
	if err != nil {
		return false, errors.Wrap(err, "DB query failed")
	}
	return n > 0, nil
}

func (g *SQLGateway) Close() error {
	return g.db.Close()
}
