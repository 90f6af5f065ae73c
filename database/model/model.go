// Package model holds the catalogue entity types shared between the
// storage engine, the index builder and the serving layer.
package model

import "errors"

var (
	ErrNoConfiguration = errors.New("index location not set")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidPassword = errors.New("invalid password")
)

// ContentType is the closed set of record types. It is fixed at record
// creation and determines which child entities are legal.
type ContentType string

const (
	ContentTypeMovie      ContentType = "movie"
	ContentTypeSeries     ContentType = "series"
	ContentTypeCollection ContentType = "collection"
)

// ParseContentType validates a user-supplied content type string.
func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(s) {
	case ContentTypeMovie, ContentTypeSeries, ContentTypeCollection:
		return ContentType(s), true
	}
	return "", false
}

// Record is a top-level catalogue entry.
type Record struct {
	ID          string      `db:"id" json:"id"`
	Type        ContentType `db:"type" json:"type"`
	Name        string      `db:"name" json:"name"`
	Description string      `db:"description" json:"description"`
	ThumbnailID *string     `db:"thumbnail_id" json:"thumbnailId"`
}

// Season is an ordered grouping of episodes within a series record.
type Season struct {
	ID       string `db:"id" json:"id"`
	RecordID string `db:"record_id" json:"-"`
	Name     string `db:"name" json:"name"`
	// Position defines display order, unique within a record.
	Position int `db:"position" json:"-"`
}

// Video is a playable unit: a movie body, an episode, a special or a
// collection member. SeasonID is nil for specials and for the videos
// of movie and collection records.
type Video struct {
	ID          string  `db:"id" json:"id"`
	RecordID    string  `db:"record_id" json:"-"`
	SeasonID    *string `db:"season_id" json:"-"`
	Name        string  `db:"name" json:"name"`
	Description string  `db:"description" json:"description"`
	ThumbnailID *string `db:"thumbnail_id" json:"thumbnailId"`
	Position    int     `db:"position" json:"-"`
}

// Track is the technical media stream backing a video. Exactly one
// primary track exists per video.
type Track struct {
	ID      string `db:"id" json:"id"`
	VideoID string `db:"video_id" json:"-"`
	Path    string `db:"path" json:"-"`
	// MetadataJSON is the filtered probe document as stored.
	MetadataJSON string `db:"metadata_json" json:"-"`
	IsPrimary    bool   `db:"is_primary" json:"-"`
}

// Thumbnail is a stored preview image. Path is relative to the index
// thumbnail directory and named by the thumbnail id.
type Thumbnail struct {
	ID   string `db:"id" json:"id"`
	Path string `db:"path" json:"path"`
}

// RecordGraph is the fully assembled entity graph of one record, built
// by the indexer before a single commit transaction persists it.
type RecordGraph struct {
	Record     Record
	Seasons    []Season
	Videos     []Video
	Tracks     []Track
	Thumbnails []Thumbnail
}

// TrackMeta is the filtered probe metadata served to clients.
type TrackMeta struct {
	Duration       string `json:"duration"`
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	BitRate        string `json:"bit_rate"`
	Size           string `json:"size"`
}

// VideoInfo is a video with its primary track, as served to clients.
type VideoInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ThumbnailID *string    `json:"thumbnailId"`
	TrackID     string     `json:"trackId"`
	Metadata    *TrackMeta `json:"metadata"`
}

// SeasonInfo is a season with its ordered episodes.
type SeasonInfo struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Episodes []VideoInfo `json:"episodes"`
}

// SeriesContent is the content payload of a series record.
type SeriesContent struct {
	Seasons  []SeasonInfo `json:"seasons"`
	Specials []VideoInfo  `json:"specials"`
}

// RecordInfo is a record plus its type-shaped content. Exactly one of
// Movie, Series or Collection is set, matching Record.Type.
type RecordInfo struct {
	Record
	Movie      *VideoInfo
	Series     *SeriesContent
	Collection []VideoInfo
}

// PageRange is a half-open [Start,End) pagination window.
type PageRange struct {
	Start int
	End   int
}

// ListFilter narrows a record listing.
type ListFilter struct {
	// Search matches an escaped substring against name or description.
	Search string
	// Type restricts to one content type when non-empty.
	Type ContentType
	// Range paginates the result, Count is unaffected.
	Range *PageRange
	// Continue joins against the user's playback rows and orders by
	// most recently changed.
	Continue bool
	// Username scopes the Continue join.
	Username string
}

// RecordList is the result of a listing query.
type RecordList struct {
	Count   int      `json:"count"`
	Records []Record `json:"records"`
}

// User holds per-user player settings and the admin flag.
type User struct {
	Username string  `db:"username" json:"username"`
	Password string  `db:"password" json:"-"`
	Volume   float64 `db:"volume" json:"volume"`
	Muted    bool    `db:"muted" json:"muted"`
	Autoplay bool    `db:"autoplay" json:"autoplay"`
	IsAdmin  bool    `db:"is_admin" json:"isAdmin"`
}

// Session is a logged-in browser session.
type Session struct {
	ID       string `db:"id"`
	Username string `db:"username"`
}

// Playback is the per-user resume position for a record. At most one
// row exists per (username, record).
type Playback struct {
	Username string `db:"username" json:"-"`
	RecordID string `db:"record_id" json:"-"`
	VideoID  string `db:"video_id" json:"videoId"`
	// Timestamp is the resume offset in seconds.
	Timestamp int64 `db:"timestamp" json:"timestamp"`
	// Changed is the unix time of the last update.
	Changed int64 `db:"changed" json:"-"`
}
