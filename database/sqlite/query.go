package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/erikbos/flux-server/database/model"
)

// likeEscape escapes the LIKE wildcards in a user-supplied search
// term. The clauses using it carry ESCAPE '\'.
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// ListRecords returns a filtered, optionally paginated record listing.
// Count always reflects the filtered total, independent of pagination.
func (s *SqliteRepo) ListRecords(ctx context.Context, filter model.ListFilter) (*model.RecordList, error) {
	var clauses []string
	var args []any

	if filter.Search != "" {
		clauses = append(clauses,
			`(records.name LIKE ? ESCAPE '\' OR records.description LIKE ? ESCAPE '\')`)
		term := "%" + likeEscape(filter.Search) + "%"
		args = append(args, term, term)
	}
	if filter.Type != "" {
		clauses = append(clauses, `records.type = ?`)
		args = append(args, filter.Type)
	}

	join := ""
	orderBy := `records.id`
	if filter.Continue {
		join = `JOIN playbacks ON records.id = playbacks.record_id`
		orderBy = `playbacks.changed DESC`
		clauses = append(clauses, `playbacks.username = ?`)
		args = append(args, filter.Username)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}

	list := &model.RecordList{Records: []model.Record{}}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM records %s %s`, join, where)
	if err := s.dbReadHandle.GetContext(ctx, &list.Count, countQuery, args...); err != nil {
		return nil, err
	}

	limit := ""
	if filter.Range != nil {
		limit = `LIMIT ? OFFSET ?`
		args = append(args, filter.Range.End-filter.Range.Start, filter.Range.Start)
	}

	query := fmt.Sprintf(
		`SELECT records.id, records.type, records.name, records.description, records.thumbnail_id
		FROM records %s %s ORDER BY %s %s`, join, where, orderBy, limit)
	if err := s.dbReadHandle.SelectContext(ctx, &list.Records, query, args...); err != nil {
		return nil, err
	}
	return list, nil
}

// videoRow is the scan target for video+track joins.
type videoRow struct {
	ID          string  `db:"id"`
	Name        string  `db:"name"`
	Description string  `db:"description"`
	ThumbnailID *string `db:"thumbnail_id"`
	TrackID     string  `db:"track_id"`
	Metadata    string  `db:"metadata_json"`
}

func (v *videoRow) toInfo() model.VideoInfo {
	info := model.VideoInfo{
		ID:          v.ID,
		Name:        v.Name,
		Description: v.Description,
		ThumbnailID: v.ThumbnailID,
		TrackID:     v.TrackID,
	}
	var meta model.TrackMeta
	if err := json.Unmarshal([]byte(v.Metadata), &meta); err == nil {
		info.Metadata = &meta
	}
	return info
}

const videoSelect = `SELECT
	videos.id, videos.name, videos.description, videos.thumbnail_id,
	tracks.id AS track_id, tracks.metadata_json
	FROM videos JOIN tracks ON videos.id = tracks.video_id AND tracks.is_primary`

// GetVideo loads a single video with its primary track.
func (s *SqliteRepo) GetVideo(ctx context.Context, videoID string) (*model.VideoInfo, error) {
	var row videoRow
	err := s.dbReadHandle.GetContext(ctx, &row, videoSelect+` WHERE videos.id=?`, videoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	info := row.toInfo()
	return &info, nil
}

// GetRecordInfo loads a record with its type-shaped content. id may be
// a record id or, as fallback, the id of one of the record's videos.
func (s *SqliteRepo) GetRecordInfo(ctx context.Context, id string) (*model.RecordInfo, error) {
	var record model.Record
	err := s.dbReadHandle.GetContext(ctx, &record,
		`SELECT id, type, name, description, thumbnail_id FROM records WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		// Not a record id, try as video id.
		err = s.dbReadHandle.GetContext(ctx, &record,
			`SELECT records.id, records.type, records.name, records.description, records.thumbnail_id
			FROM records JOIN videos ON records.id = videos.record_id
			WHERE videos.id=?`, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	info := &model.RecordInfo{Record: record}

	switch record.Type {
	case model.ContentTypeMovie:
		var rows []videoRow
		if err := s.dbReadHandle.SelectContext(ctx, &rows,
			videoSelect+` WHERE videos.record_id=?`, record.ID); err != nil {
			return nil, err
		}
		if len(rows) != 1 {
			return nil, fmt.Errorf("movie record %s has %d videos", record.ID, len(rows))
		}
		movie := rows[0].toInfo()
		// The movie video carries no metadata of its own in the
		// database, the record's is authoritative.
		movie.Name = record.Name
		movie.Description = record.Description
		movie.ThumbnailID = record.ThumbnailID
		info.Movie = &movie

	case model.ContentTypeSeries:
		content := &model.SeriesContent{
			Seasons:  []model.SeasonInfo{},
			Specials: []model.VideoInfo{},
		}
		var seasons []model.Season
		if err := s.dbReadHandle.SelectContext(ctx, &seasons,
			`SELECT id, record_id, name, position FROM seasons
			WHERE record_id=? ORDER BY position`, record.ID); err != nil {
			return nil, err
		}
		for _, season := range seasons {
			episodes, err := s.selectVideos(ctx,
				` WHERE videos.record_id=? AND videos.season_id=? ORDER BY videos.position`,
				record.ID, season.ID)
			if err != nil {
				return nil, err
			}
			content.Seasons = append(content.Seasons, model.SeasonInfo{
				ID:       season.ID,
				Name:     season.Name,
				Episodes: episodes,
			})
		}
		specials, err := s.selectVideos(ctx,
			` WHERE videos.record_id=? AND videos.season_id IS NULL ORDER BY videos.position`,
			record.ID)
		if err != nil {
			return nil, err
		}
		content.Specials = specials
		info.Series = content

	case model.ContentTypeCollection:
		members, err := s.selectVideos(ctx,
			` WHERE videos.record_id=? ORDER BY videos.position`, record.ID)
		if err != nil {
			return nil, err
		}
		info.Collection = members
	}

	return info, nil
}

func (s *SqliteRepo) selectVideos(ctx context.Context, where string, args ...any) ([]model.VideoInfo, error) {
	var rows []videoRow
	if err := s.dbReadHandle.SelectContext(ctx, &rows, videoSelect+where, args...); err != nil {
		return nil, err
	}
	infos := make([]model.VideoInfo, 0, len(rows))
	for i := range rows {
		infos = append(infos, rows[i].toInfo())
	}
	return infos, nil
}

// GetCurrentVideo returns the video the user's playback row points at,
// with its stored timestamp. Without a playback row it returns the
// structurally first video of the record with timestamp 0. Reading
// never creates state.
func (s *SqliteRepo) GetCurrentVideo(ctx context.Context, recordID, username string) (*model.VideoInfo, int64, error) {
	playback, err := s.GetPlayback(ctx, username, recordID)
	if err == nil {
		video, err := s.GetVideo(ctx, playback.VideoID)
		if err == nil {
			return video, playback.Timestamp, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, 0, err
		}
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, 0, err
	}

	// Start anew at the structural default for the record's type.
	info, err := s.GetRecordInfo(ctx, recordID)
	if err != nil {
		return nil, 0, err
	}
	switch info.Type {
	case model.ContentTypeMovie:
		return info.Movie, 0, nil
	case model.ContentTypeSeries:
		if len(info.Series.Seasons) > 0 {
			return &info.Series.Seasons[0].Episodes[0], 0, nil
		}
		if len(info.Series.Specials) > 0 {
			return &info.Series.Specials[0], 0, nil
		}
	case model.ContentTypeCollection:
		if len(info.Collection) > 0 {
			return &info.Collection[0], 0, nil
		}
	}
	return nil, 0, fmt.Errorf("record %s has no videos", recordID)
}
