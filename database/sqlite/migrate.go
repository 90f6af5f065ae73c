package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// migrationCatalogue maps a target schema version to the statements
// bringing an older index up to it.
var migrationCatalogue = map[string][]string{
	// "0.2.0": {`ALTER TABLE ...`},
}

func (s *SqliteRepo) initIndexMetadata(ctx context.Context, schemaVersion, root string) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO index_metadata (schema_version, root, initialized) VALUES (?, ?, 1)`,
			schemaVersion, root)
		return err
	})
}

// SchemaVersion returns the schema version recorded in the index.
func (s *SqliteRepo) SchemaVersion(ctx context.Context) (string, error) {
	var version string
	err := s.dbReadHandle.GetContext(ctx, &version,
		`SELECT schema_version FROM index_metadata`)
	if errors.Is(err, sql.ErrNoRows) {
		return "unknown", nil
	}
	return version, err
}

// Migrate applies the catalogued schema migrations up to appVersion
// and records the step in the migrations table. A schema already at
// appVersion is a no-op.
func (s *SqliteRepo) Migrate(ctx context.Context, appVersion string) error {
	old, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if old == appVersion {
		return nil
	}
	if !versionAfter(appVersion, old) {
		return fmt.Errorf("schema version %s is ahead of app version %s", old, appVersion)
	}

	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		for _, statement := range migrationCatalogue[appVersion] {
			if _, err := tx.ExecContext(ctx, statement); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE index_metadata SET schema_version=? WHERE schema_version=?`,
			appVersion, old); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO migrations (from_version, to_version, completed_at) VALUES (?, ?, ?)`,
			old, appVersion, time.Now().UTC())
		return err
	})
}

// versionAfter reports whether semver a is newer than b. A malformed a
// never wins, a malformed b always loses.
func versionAfter(a, b string) bool {
	pa, aok := parseVersion(a)
	pb, bok := parseVersion(b)
	if !aok {
		return false
	}
	if !bok {
		return true
	}
	for i := range pa {
		if pa[i] != pb[i] {
			return pa[i] > pb[i]
		}
	}
	return false
}

func parseVersion(v string) (parts [3]int, ok bool) {
	fields := strings.Split(v, ".")
	if len(fields) != 3 {
		return parts, false
	}
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return parts, false
		}
		parts[i] = n
	}
	return parts, true
}
