package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erikbos/flux-server/database/model"
)

// InsertRecordGraph commits a fully built record graph in one
// transaction. Insert order satisfies the foreign keys: thumbnails
// first, then the record, seasons, videos and tracks, preserving the
// position ordering computed during the scan.
func (s *SqliteRepo) InsertRecordGraph(ctx context.Context, graph *model.RecordGraph) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		for i := range graph.Thumbnails {
			if err := insertThumbnail(ctx, tx, &graph.Thumbnails[i]); err != nil {
				return fmt.Errorf("thumbnail %s: %w", graph.Thumbnails[i].ID, err)
			}
		}

		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO records (id, type, name, description, thumbnail_id)
			VALUES (:id, :type, :name, :description, :thumbnail_id)`,
			graph.Record); err != nil {
			return fmt.Errorf("record %s: %w", graph.Record.ID, err)
		}

		for i := range graph.Seasons {
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO seasons (id, record_id, name, position)
				VALUES (:id, :record_id, :name, :position)`,
				graph.Seasons[i]); err != nil {
				return fmt.Errorf("season %s: %w", graph.Seasons[i].ID, err)
			}
		}

		for i := range graph.Videos {
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO videos (id, record_id, season_id, name, description, thumbnail_id, position)
				VALUES (:id, :record_id, :season_id, :name, :description, :thumbnail_id, :position)`,
				graph.Videos[i]); err != nil {
				return fmt.Errorf("video %s: %w", graph.Videos[i].ID, err)
			}
		}

		for i := range graph.Tracks {
			if _, err := tx.NamedExecContext(ctx,
				`INSERT INTO tracks (id, video_id, path, metadata_json, is_primary)
				VALUES (:id, :video_id, :path, :metadata_json, :is_primary)`,
				graph.Tracks[i]); err != nil {
				return fmt.Errorf("track %s: %w", graph.Tracks[i].ID, err)
			}
		}
		return nil
	})
}

// DeleteRecord removes a record. Seasons, videos and tracks cascade.
func (s *SqliteRepo) DeleteRecord(ctx context.Context, recordID string) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id=?`, recordID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// CountVideos returns the number of videos of a record.
func (s *SqliteRepo) CountVideos(ctx context.Context, recordID string) (int, error) {
	var count int
	err := s.dbReadHandle.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM videos WHERE record_id=?`, recordID)
	return count, err
}

// EntityKind selects the table a metadata update applies to.
type EntityKind string

const (
	EntityRecord EntityKind = "record"
	EntityVideo  EntityKind = "video"
)

// MetadataField is one updatable field of a record or video.
type MetadataField string

const (
	FieldName        MetadataField = "name"
	FieldDescription MetadataField = "description"
	FieldThumbnailID MetadataField = "thumbnail_id"
)

// updateStatements maps entity kind and field to a fixed parameterized
// statement. Column names never come from request input.
var updateStatements = map[EntityKind]map[MetadataField]string{
	EntityRecord: {
		FieldName:        `UPDATE records SET name=? WHERE id=?`,
		FieldDescription: `UPDATE records SET description=? WHERE id=?`,
		FieldThumbnailID: `UPDATE records SET thumbnail_id=? WHERE id=?`,
	},
	EntityVideo: {
		FieldName:        `UPDATE videos SET name=? WHERE id=?`,
		FieldDescription: `UPDATE videos SET description=? WHERE id=?`,
		FieldThumbnailID: `UPDATE videos SET thumbnail_id=? WHERE id=?`,
	},
}

// UpdateMetadata updates the given fields of a record or video in one
// transaction. thumb, when set, is inserted before any thumbnail_id
// update referencing it.
func (s *SqliteRepo) UpdateMetadata(ctx context.Context, kind EntityKind, id string, fields map[MetadataField]string, thumb *model.Thumbnail) error {
	statements, ok := updateStatements[kind]
	if !ok {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	if len(fields) == 0 {
		return nil
	}

	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		if thumb != nil {
			if err := insertThumbnail(ctx, tx, thumb); err != nil {
				return err
			}
		}
		for field, value := range fields {
			query, ok := statements[field]
			if !ok {
				return fmt.Errorf("field %q not updatable on %s", field, kind)
			}
			res, err := tx.ExecContext(ctx, query, value, id)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return model.ErrNotFound
			}
		}
		return nil
	})
}

func insertThumbnail(ctx context.Context, tx *sqlx.Tx, thumb *model.Thumbnail) error {
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO thumbnails (id, path) VALUES (:id, :path)`, thumb)
	return err
}

// CleanupThumbnails deletes thumbnail rows no record or video points
// at and returns them so the caller can remove the files on disk.
func (s *SqliteRepo) CleanupThumbnails(ctx context.Context) ([]model.Thumbnail, error) {
	var orphans []model.Thumbnail
	err := s.writeTx(ctx, func(tx *sqlx.Tx) error {
		const query = `SELECT id, path FROM thumbnails
			WHERE id NOT IN (SELECT thumbnail_id FROM records WHERE thumbnail_id IS NOT NULL)
			AND id NOT IN (SELECT thumbnail_id FROM videos WHERE thumbnail_id IS NOT NULL)`
		if err := tx.SelectContext(ctx, &orphans, query); err != nil {
			return err
		}
		for i := range orphans {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM thumbnails WHERE id=?`, orphans[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orphans, nil
}
