// Package database defines the repository interfaces of the content
// store. The sqlite subpackage provides the only implementation.
package database

import (
	"context"

	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/database/sqlite"
)

type (
	Options struct {
		// Filename of the sqlite database file.
		Filename string
	}

	// Repository is the full content store surface.
	Repository interface {
		RecordRepo
		PlaybackRepo
		UserRepo
		SessionRepo
		ThumbnailRepo
		IndexMetadataRepo
		Close() error
	}

	// RecordRepo covers index building and retrieval.
	RecordRepo interface {
		// InsertRecordGraph commits a fully built record graph in one
		// transaction: thumbnails, record, seasons, videos, tracks.
		InsertRecordGraph(ctx context.Context, graph *model.RecordGraph) error
		// DeleteRecord removes a record; seasons, videos and tracks
		// cascade away with it.
		DeleteRecord(ctx context.Context, recordID string) error
		// CountVideos returns the number of videos of a record.
		CountVideos(ctx context.Context, recordID string) (int, error)
		// ListRecords returns a filtered, optionally paginated listing.
		// Count always reflects the filtered total.
		ListRecords(ctx context.Context, filter model.ListFilter) (*model.RecordList, error)
		// GetRecordInfo loads a record with its type-shaped content.
		// id may be a record id or a video id.
		GetRecordInfo(ctx context.Context, id string) (*model.RecordInfo, error)
		// GetVideo loads a single video with its primary track.
		GetVideo(ctx context.Context, videoID string) (*model.VideoInfo, error)
		// GetCurrentVideo returns the user's resume video for a record,
		// or the structurally first video with timestamp 0.
		GetCurrentVideo(ctx context.Context, recordID, username string) (*model.VideoInfo, int64, error)
		// UpdateMetadata updates an enumerated set of fields on a
		// record or video. thumb, when set, is inserted before the
		// thumbnail_id field referencing it.
		UpdateMetadata(ctx context.Context, kind sqlite.EntityKind, id string, fields map[sqlite.MetadataField]string, thumb *model.Thumbnail) error
	}

	PlaybackRepo interface {
		// UpsertPlayback stores the resume position for (user, record).
		UpsertPlayback(ctx context.Context, p model.Playback) error
		// DeletePlayback removes the resume position for (user, record).
		DeletePlayback(ctx context.Context, username, recordID string) error
		// GetPlayback returns the resume position for (user, record).
		GetPlayback(ctx context.Context, username, recordID string) (*model.Playback, error)
	}

	UserRepo interface {
		CreateUser(ctx context.Context, username, password string, isAdmin bool) error
		GetUser(ctx context.Context, username string) (*model.User, error)
		// ValidateUser checks username and password, returning the user
		// on success.
		ValidateUser(ctx context.Context, username, password string) (*model.User, error)
		UpdateUserSettings(ctx context.Context, username string, volume float64, muted, autoplay bool) error
		SetPassword(ctx context.Context, username, password string) error
		PromoteUser(ctx context.Context, username string) error
		DeleteUser(ctx context.Context, username string) error
	}

	SessionRepo interface {
		CreateSession(ctx context.Context, username string) (sessionID string, err error)
		GetSession(ctx context.Context, sessionID string) (*model.Session, error)
		DeleteSession(ctx context.Context, sessionID string) error
	}

	ThumbnailRepo interface {
		// CleanupThumbnails deletes thumbnail rows referenced by no
		// record or video and returns them so the caller can remove
		// the files.
		CleanupThumbnails(ctx context.Context) ([]model.Thumbnail, error)
	}

	IndexMetadataRepo interface {
		// SchemaVersion returns the schema version of the index.
		SchemaVersion(ctx context.Context) (string, error)
		// Migrate applies pending schema migrations up to appVersion.
		Migrate(ctx context.Context, appVersion string) error
	}
)

// New opens an existing index database.
func New(o *Options) (Repository, error) {
	return sqlite.New(&sqlite.Options{Filename: o.Filename})
}

// Create initializes a new index database. It refuses to overwrite an
// existing one.
func Create(o *Options, schemaVersion, root string) (Repository, error) {
	return sqlite.Create(&sqlite.Options{Filename: o.Filename}, schemaVersion, root)
}
