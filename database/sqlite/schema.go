package sqlite

import (
	"log"

	"github.com/jmoiron/sqlx"
)

func dbInitSchema(d *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS thumbnails (
id TEXT NOT NULL PRIMARY KEY,
path TEXT NOT NULL);`,

		`CREATE TABLE IF NOT EXISTS records (
id TEXT NOT NULL PRIMARY KEY,
type TEXT NOT NULL,
name TEXT NOT NULL,
description TEXT NOT NULL DEFAULT '',
thumbnail_id TEXT,
FOREIGN KEY (thumbnail_id) REFERENCES thumbnails(id));`,

		`CREATE INDEX IF NOT EXISTS records_name_idx ON records (name);`,

		`CREATE TABLE IF NOT EXISTS seasons (
id TEXT NOT NULL PRIMARY KEY,
record_id TEXT NOT NULL,
name TEXT NOT NULL,
position INTEGER NOT NULL,
UNIQUE (record_id, position),
FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE);`,

		`CREATE TABLE IF NOT EXISTS videos (
id TEXT NOT NULL PRIMARY KEY,
record_id TEXT NOT NULL,
season_id TEXT,
name TEXT NOT NULL,
description TEXT NOT NULL DEFAULT '',
thumbnail_id TEXT,
position INTEGER NOT NULL,
FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE,
FOREIGN KEY (season_id) REFERENCES seasons(id) ON DELETE CASCADE,
FOREIGN KEY (thumbnail_id) REFERENCES thumbnails(id));`,

		`CREATE INDEX IF NOT EXISTS videos_record_idx ON videos (record_id);`,

		`CREATE TABLE IF NOT EXISTS tracks (
id TEXT NOT NULL PRIMARY KEY,
video_id TEXT NOT NULL,
path TEXT NOT NULL,
metadata_json TEXT NOT NULL DEFAULT '{}',
is_primary BOOLEAN NOT NULL DEFAULT 0,
FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE);`,

		// One primary track per video.
		`CREATE UNIQUE INDEX IF NOT EXISTS tracks_primary_idx ON tracks (video_id) WHERE is_primary;`,

		`CREATE TABLE IF NOT EXISTS users (
username TEXT NOT NULL PRIMARY KEY,
password TEXT NOT NULL,
volume REAL NOT NULL DEFAULT 1.0,
muted BOOLEAN NOT NULL DEFAULT 0,
autoplay BOOLEAN NOT NULL DEFAULT 1,
is_admin BOOLEAN NOT NULL DEFAULT 0);`,

		`CREATE TABLE IF NOT EXISTS sessions (
id TEXT NOT NULL PRIMARY KEY,
username TEXT NOT NULL,
FOREIGN KEY (username) REFERENCES users(username) ON DELETE CASCADE);`,

		`CREATE TABLE IF NOT EXISTS playbacks (
username TEXT NOT NULL,
record_id TEXT NOT NULL,
video_id TEXT NOT NULL,
timestamp INTEGER NOT NULL DEFAULT 0,
changed INTEGER NOT NULL DEFAULT 0,
PRIMARY KEY (username, record_id),
FOREIGN KEY (username) REFERENCES users(username) ON DELETE CASCADE,
FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE,
FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE);`,

		`CREATE TABLE IF NOT EXISTS index_metadata (
schema_version TEXT NOT NULL,
root TEXT NOT NULL DEFAULT '',
initialized BOOLEAN NOT NULL DEFAULT 0);`,

		`CREATE TABLE IF NOT EXISTS migrations (
from_version TEXT NOT NULL,
to_version TEXT NOT NULL,
completed_at DATETIME NOT NULL);`,
	}

	for _, query := range schema {
		if _, err := d.Exec(query); err != nil {
			log.Printf("dbInitSchema error: %s\n", err)
			return err
		}
	}
	return nil
}
