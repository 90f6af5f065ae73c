// Package sqlite implements the content store on a single embedded
// sqlite database file.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/erikbos/flux-server/database/model"
)

type SqliteRepo struct {
	// Read db handle, opened query_only so the engine itself rejects
	// mutating statements on read paths.
	dbReadHandle *sqlx.DB
	// Handle specifically for writes, sqlite needs a single writer.
	dbWriteHandle *sqlx.DB
}

// Options holds configuration options.
type Options struct {
	Filename string
}

// New opens an existing index database. The database file must exist,
// use Create to initialize a new index.
func New(o *Options) (*SqliteRepo, error) {
	if o == nil || o.Filename == "" {
		return nil, model.ErrNoConfiguration
	}
	if _, err := os.Stat(o.Filename); err != nil {
		return nil, fmt.Errorf("no index database at %q: %w", o.Filename, model.ErrNotFound)
	}
	return open(o.Filename)
}

// Create initializes a new index database with schema and metadata.
// It refuses to overwrite an existing database file.
func Create(o *Options, schemaVersion, root string) (*SqliteRepo, error) {
	if o == nil || o.Filename == "" {
		return nil, model.ErrNoConfiguration
	}
	if _, err := os.Stat(o.Filename); err == nil {
		return nil, fmt.Errorf("file %q: %w", o.Filename, model.ErrAlreadyExists)
	}

	s, err := open(o.Filename)
	if err != nil {
		return nil, err
	}
	if err := dbInitSchema(s.dbWriteHandle); err != nil {
		return nil, err
	}
	if err := s.initIndexMetadata(context.Background(), schemaVersion, root); err != nil {
		return nil, err
	}
	return s, nil
}

func open(filename string) (*SqliteRepo, error) {
	// This needs to be set on the write handle before the read handle
	// connects with query_only.
	writeDB, err := sqlx.Connect("sqlite3",
		"file:"+filename+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sqlx.Connect("sqlite3",
		"file:"+filename+"?_foreign_keys=on&_query_only=on")
	if err != nil {
		return nil, err
	}
	readDB.SetMaxOpenConns(max(4, runtime.NumCPU()))

	return &SqliteRepo{
		dbReadHandle:  readDB,
		dbWriteHandle: writeDB,
	}, nil
}

// writeTx runs fn inside one read-write transaction. Every exit path
// either commits or rolls back, no partial writes are observable.
func (s *SqliteRepo) writeTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.dbWriteHandle.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes both database handles.
func (s *SqliteRepo) Close() error {
	if err := s.dbReadHandle.Close(); err != nil {
		return err
	}
	return s.dbWriteHandle.Close()
}
