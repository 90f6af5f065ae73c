package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/erikbos/flux-server/database/model"
)

func newTestRepo(t *testing.T) *SqliteRepo {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "index.db")
	s, err := Create(&Options{Filename: filename}, "1.0.0", "/library")
	if err != nil {
		t.Fatalf("Create: %s", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strptr(s string) *string { return &s }

const trackMeta = `{"duration":"120.5","format_name":"matroska","bit_rate":"800000","size":"1048576"}`

// movieGraph builds a one-video record graph.
func movieGraph(id, name string) *model.RecordGraph {
	return &model.RecordGraph{
		Record: model.Record{ID: id, Type: model.ContentTypeMovie, Name: name},
		Videos: []model.Video{
			{ID: id + "-v1", RecordID: id, Name: name, Position: 1},
		},
		Tracks: []model.Track{
			{ID: id + "-t1", VideoID: id + "-v1", Path: "/library/" + name + ".mkv",
				MetadataJSON: trackMeta, IsPrimary: true},
		},
	}
}

// seriesGraph builds a two-season series with one special.
func seriesGraph(id string) *model.RecordGraph {
	g := &model.RecordGraph{
		Record: model.Record{
			ID: id, Type: model.ContentTypeSeries, Name: "show",
			ThumbnailID: strptr(id + "-th1"),
		},
		Seasons: []model.Season{
			{ID: id + "-s1", RecordID: id, Name: "Season 1", Position: 1},
			{ID: id + "-s2", RecordID: id, Name: "Season 2", Position: 2},
		},
		Videos: []model.Video{
			{ID: id + "-e1", RecordID: id, SeasonID: strptr(id + "-s1"), Name: "e01", Position: 1,
				ThumbnailID: strptr(id + "-th1")},
			{ID: id + "-e2", RecordID: id, SeasonID: strptr(id + "-s1"), Name: "e02", Position: 2},
			{ID: id + "-e3", RecordID: id, SeasonID: strptr(id + "-s2"), Name: "e01", Position: 1},
			{ID: id + "-sp1", RecordID: id, Name: "pilot", Position: 1},
		},
		Thumbnails: []model.Thumbnail{
			{ID: id + "-th1", Path: id + "-th1.jpg"},
		},
	}
	for _, v := range g.Videos {
		g.Tracks = append(g.Tracks, model.Track{
			ID: v.ID + "-t", VideoID: v.ID, Path: "/library/" + v.ID + ".mkv",
			MetadataJSON: trackMeta, IsPrimary: true,
		})
	}
	return g
}

func mustInsert(t *testing.T, s *SqliteRepo, g *model.RecordGraph) {
	t.Helper()
	if err := s.InsertRecordGraph(context.Background(), g); err != nil {
		t.Fatalf("InsertRecordGraph: %s", err)
	}
}

func TestCreateRefusesExisting(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "index.db")
	s, err := Create(&Options{Filename: filename}, "1.0.0", "/library")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := Create(&Options{Filename: filename}, "1.0.0", "/library"); !errors.Is(err, model.ErrAlreadyExists) {
		t.Fatalf("second create: got %v, want ErrAlreadyExists", err)
	}
}

func TestNewRequiresExistingFile(t *testing.T) {
	_, err := New(&Options{Filename: filepath.Join(t.TempDir(), "nope.db")})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := New(&Options{}); !errors.Is(err, model.ErrNoConfiguration) {
		t.Fatalf("got %v, want ErrNoConfiguration", err)
	}
}

func TestSchemaVersion(t *testing.T) {
	s := newTestRepo(t)
	version, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if version != "1.0.0" {
		t.Fatalf("schema version: got %q", version)
	}
	// Same version migrate is a no-op, older app version refuses.
	if err := s.Migrate(context.Background(), "1.0.0"); err != nil {
		t.Fatalf("no-op migrate: %s", err)
	}
	if err := s.Migrate(context.Background(), "0.9.0"); err == nil {
		t.Fatal("migrate to older version must fail")
	}
}

func TestGetRecordInfoSeries(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, seriesGraph("rec1"))

	info, err := s.GetRecordInfo(context.Background(), "rec1")
	if err != nil {
		t.Fatal(err)
	}
	if info.Type != model.ContentTypeSeries || info.Series == nil {
		t.Fatalf("unexpected shape: %+v", info)
	}
	seasons := info.Series.Seasons
	if len(seasons) != 2 || seasons[0].Name != "Season 1" || seasons[1].Name != "Season 2" {
		t.Fatalf("seasons: %+v", seasons)
	}
	if len(seasons[0].Episodes) != 2 || seasons[0].Episodes[0].ID != "rec1-e1" ||
		seasons[0].Episodes[1].ID != "rec1-e2" {
		t.Fatalf("season 1 episodes: %+v", seasons[0].Episodes)
	}
	if len(info.Series.Specials) != 1 || info.Series.Specials[0].ID != "rec1-sp1" {
		t.Fatalf("specials: %+v", info.Series.Specials)
	}
	episode := seasons[0].Episodes[0]
	if episode.TrackID != "rec1-e1-t" {
		t.Fatalf("track id: %q", episode.TrackID)
	}
	if episode.Metadata == nil || episode.Metadata.Duration != "120.5" {
		t.Fatalf("metadata: %+v", episode.Metadata)
	}
}

func TestGetRecordInfoMovie(t *testing.T) {
	s := newTestRepo(t)
	g := movieGraph("m1", "heat")
	g.Record.Description = "bank job"
	mustInsert(t, s, g)

	info, err := s.GetRecordInfo(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if info.Movie == nil {
		t.Fatalf("movie content missing: %+v", info)
	}
	// The record metadata is authoritative for the single video.
	if info.Movie.Name != "heat" || info.Movie.Description != "bank job" {
		t.Fatalf("movie payload: %+v", info.Movie)
	}
	if info.Movie.ID != "m1-v1" {
		t.Fatalf("video id: %q", info.Movie.ID)
	}
}

func TestGetRecordInfoVideoIDFallback(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, seriesGraph("rec1"))

	info, err := s.GetRecordInfo(context.Background(), "rec1-e2")
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != "rec1" {
		t.Fatalf("fallback: got record %q, want rec1", info.ID)
	}

	if _, err := s.GetRecordInfo(context.Background(), "nope"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestInsertAtomicity(t *testing.T) {
	s := newTestRepo(t)
	g := seriesGraph("rec1")
	// Duplicate season position violates the unique constraint late in
	// the transaction; nothing of the graph may survive.
	g.Seasons[1].Position = 1

	if err := s.InsertRecordGraph(context.Background(), g); err == nil {
		t.Fatal("insert must fail")
	}

	ctx := context.Background()
	for _, table := range []string{"records", "seasons", "videos", "tracks", "thumbnails"} {
		var count int
		if err := s.dbReadHandle.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Fatalf("%s: %d rows left behind", table, count)
		}
	}
}

func TestDeleteRecordCascades(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, seriesGraph("rec1"))

	ctx := context.Background()
	if err := s.DeleteRecord(ctx, "rec1"); err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"records", "seasons", "videos", "tracks"} {
		var count int
		if err := s.dbReadHandle.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+table); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Fatalf("%s: %d rows survived the cascade", table, count)
		}
	}
	if err := s.DeleteRecord(ctx, "rec1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestListRecordsEmpty(t *testing.T) {
	s := newTestRepo(t)
	list, err := s.ListRecords(context.Background(), model.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 0 || len(list.Records) != 0 {
		t.Fatalf("empty index: %+v", list)
	}
}

func TestListRecordsPagination(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, movieGraph("m1", "alpha"))
	mustInsert(t, s, movieGraph("m2", "beta"))
	mustInsert(t, s, movieGraph("m3", "gamma"))

	ctx := context.Background()
	tests := []struct {
		start, end int
		wantLen    int
		wantFirst  string
	}{
		{0, 2, 2, "m1"},
		{1, 2, 1, "m2"},
		{2, 10, 1, "m3"},
		{3, 5, 0, ""},
		{0, 0, 0, ""},
	}
	for _, tt := range tests {
		list, err := s.ListRecords(ctx, model.ListFilter{
			Range: &model.PageRange{Start: tt.start, End: tt.end},
		})
		if err != nil {
			t.Fatal(err)
		}
		if list.Count != 3 {
			t.Fatalf("range %d-%d: count %d, want 3", tt.start, tt.end, list.Count)
		}
		if len(list.Records) != tt.wantLen {
			t.Fatalf("range %d-%d: %d records, want %d",
				tt.start, tt.end, len(list.Records), tt.wantLen)
		}
		if tt.wantLen > 0 && list.Records[0].ID != tt.wantFirst {
			t.Fatalf("range %d-%d: first %q, want %q",
				tt.start, tt.end, list.Records[0].ID, tt.wantFirst)
		}
	}
}

func TestListRecordsSearchEscaping(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, movieGraph("m1", "100% pure"))
	mustInsert(t, s, movieGraph("m2", "percentage"))

	ctx := context.Background()
	list, err := s.ListRecords(ctx, model.ListFilter{Search: "0%"})
	if err != nil {
		t.Fatal(err)
	}
	// % must match literally, not as wildcard.
	if list.Count != 1 || list.Records[0].ID != "m1" {
		t.Fatalf("escaped search: %+v", list)
	}

	list, err = s.ListRecords(ctx, model.ListFilter{Search: "cent"})
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Records[0].ID != "m2" {
		t.Fatalf("substring search: %+v", list)
	}
}

func TestListRecordsTypeFilter(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, movieGraph("m1", "alpha"))
	mustInsert(t, s, seriesGraph("rec1"))

	list, err := s.ListRecords(context.Background(), model.ListFilter{Type: model.ContentTypeMovie})
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Records[0].ID != "m1" {
		t.Fatalf("type filter: %+v", list)
	}
}

func TestListRecordsContinue(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, movieGraph("m1", "alpha"))
	mustInsert(t, s, movieGraph("m2", "beta"))
	mustInsert(t, s, movieGraph("m3", "gamma"))
	ctx := context.Background()
	if err := s.CreateUser(ctx, "alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	// Explicit changed values pin the recency order.
	for _, row := range []struct {
		record  string
		changed int64
	}{
		{"m1", 100},
		{"m3", 300},
	} {
		if _, err := s.dbWriteHandle.ExecContext(ctx,
			`INSERT INTO playbacks (username, record_id, video_id, timestamp, changed)
			VALUES (?, ?, ?, 0, ?)`,
			"alice", row.record, row.record+"-v1", row.changed); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListRecords(ctx, model.ListFilter{Continue: true, Username: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 2 || len(list.Records) != 2 {
		t.Fatalf("continue listing: %+v", list)
	}
	if list.Records[0].ID != "m3" || list.Records[1].ID != "m1" {
		t.Fatalf("continue order: %s, %s", list.Records[0].ID, list.Records[1].ID)
	}

	// Another user sees nothing to continue.
	if err := s.CreateUser(ctx, "bob", "secret", false); err != nil {
		t.Fatal(err)
	}
	list, err = s.ListRecords(ctx, model.ListFilter{Continue: true, Username: "bob"})
	if err != nil {
		t.Fatal(err)
	}
	if list.Count != 0 {
		t.Fatalf("continue for other user: %+v", list)
	}
}

func TestPlaybackRoundTrip(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, seriesGraph("rec1"))
	ctx := context.Background()
	if err := s.CreateUser(ctx, "alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetPlayback(ctx, "alice", "rec1"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing playback: got %v, want ErrNotFound", err)
	}

	if err := s.UpsertPlayback(ctx, model.Playback{
		Username: "alice", RecordID: "rec1", VideoID: "rec1-e2", Timestamp: 900,
	}); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetPlayback(ctx, "alice", "rec1")
	if err != nil {
		t.Fatal(err)
	}
	if p.VideoID != "rec1-e2" || p.Timestamp != 900 || p.Changed == 0 {
		t.Fatalf("playback: %+v", p)
	}

	// Upsert replaces, never duplicates.
	if err := s.UpsertPlayback(ctx, model.Playback{
		Username: "alice", RecordID: "rec1", VideoID: "rec1-e3", Timestamp: 10,
	}); err != nil {
		t.Fatal(err)
	}
	p, err = s.GetPlayback(ctx, "alice", "rec1")
	if err != nil {
		t.Fatal(err)
	}
	if p.VideoID != "rec1-e3" || p.Timestamp != 10 {
		t.Fatalf("replaced playback: %+v", p)
	}

	if err := s.DeletePlayback(ctx, "alice", "rec1"); err != nil {
		t.Fatal(err)
	}
	// Deleting an absent row stays quiet.
	if err := s.DeletePlayback(ctx, "alice", "rec1"); err != nil {
		t.Fatalf("second delete: %s", err)
	}
}

func TestGetCurrentVideo(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, seriesGraph("rec1"))
	ctx := context.Background()
	if err := s.CreateUser(ctx, "alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	// No playback: structurally first episode, timestamp 0.
	video, timestamp, err := s.GetCurrentVideo(ctx, "rec1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if video.ID != "rec1-e1" || timestamp != 0 {
		t.Fatalf("default current video: %s at %d", video.ID, timestamp)
	}

	if err := s.UpsertPlayback(ctx, model.Playback{
		Username: "alice", RecordID: "rec1", VideoID: "rec1-sp1", Timestamp: 42,
	}); err != nil {
		t.Fatal(err)
	}
	video, timestamp, err = s.GetCurrentVideo(ctx, "rec1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if video.ID != "rec1-sp1" || timestamp != 42 {
		t.Fatalf("resumed current video: %s at %d", video.ID, timestamp)
	}

	// Removing the playback reverts to the structural default.
	if err := s.DeletePlayback(ctx, "alice", "rec1"); err != nil {
		t.Fatal(err)
	}
	video, timestamp, err = s.GetCurrentVideo(ctx, "rec1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if video.ID != "rec1-e1" || timestamp != 0 {
		t.Fatalf("reverted current video: %s at %d", video.ID, timestamp)
	}
}

func TestUpdateMetadata(t *testing.T) {
	s := newTestRepo(t)
	mustInsert(t, s, movieGraph("m1", "heat"))
	ctx := context.Background()

	err := s.UpdateMetadata(ctx, EntityRecord, "m1", map[MetadataField]string{
		FieldName:        "Heat (1995)",
		FieldDescription: "bank job",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	info, err := s.GetRecordInfo(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "Heat (1995)" || info.Description != "bank job" {
		t.Fatalf("updated record: %+v", info.Record)
	}

	// New thumbnail row lands in the same transaction.
	err = s.UpdateMetadata(ctx, EntityRecord, "m1", map[MetadataField]string{
		FieldThumbnailID: "th-new",
	}, &model.Thumbnail{ID: "th-new", Path: "th-new.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	info, err = s.GetRecordInfo(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if info.ThumbnailID == nil || *info.ThumbnailID != "th-new" {
		t.Fatalf("thumbnail: %+v", info.ThumbnailID)
	}

	if err := s.UpdateMetadata(ctx, EntityRecord, "nope", map[MetadataField]string{
		FieldName: "x",
	}, nil); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown record: got %v, want ErrNotFound", err)
	}
	if err := s.UpdateMetadata(ctx, EntityKind("track"), "m1", map[MetadataField]string{
		FieldName: "x",
	}, nil); err == nil {
		t.Fatal("unknown entity kind must fail")
	}
}

func TestCleanupThumbnails(t *testing.T) {
	s := newTestRepo(t)
	g := seriesGraph("rec1")
	g.Thumbnails = append(g.Thumbnails, model.Thumbnail{ID: "orphan", Path: "orphan.jpg"})
	mustInsert(t, s, g)

	orphans, err := s.CleanupThumbnails(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].ID != "orphan" {
		t.Fatalf("orphans: %+v", orphans)
	}

	// Referenced thumbnails survive.
	info, err := s.GetRecordInfo(context.Background(), "rec1")
	if err != nil {
		t.Fatal(err)
	}
	if info.ThumbnailID == nil || *info.ThumbnailID != "rec1-th1" {
		t.Fatalf("record thumbnail: %+v", info.ThumbnailID)
	}
}

func TestUserLifecycle(t *testing.T) {
	s := newTestRepo(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, "alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	user, err := s.ValidateUser(ctx, "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "alice" || user.IsAdmin {
		t.Fatalf("user: %+v", user)
	}
	if _, err := s.ValidateUser(ctx, "alice", "wrong"); !errors.Is(err, model.ErrInvalidPassword) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := s.ValidateUser(ctx, "nobody", "secret"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	if err := s.UpdateUserSettings(ctx, "alice", 0.5, true, false); err != nil {
		t.Fatal(err)
	}
	user, err = s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if user.Volume != 0.5 || !user.Muted || user.Autoplay {
		t.Fatalf("settings: %+v", user)
	}

	if err := s.PromoteUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	user, _ = s.GetUser(ctx, "alice")
	if !user.IsAdmin {
		t.Fatal("promote must set the admin flag")
	}

	if err := s.SetPassword(ctx, "alice", "better"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateUser(ctx, "alice", "better"); err != nil {
		t.Fatalf("new password: %s", err)
	}

	// Deleting the user cascades over the session.
	sessionID, err := s.CreateSession(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSession(ctx, sessionID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("session after user delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteUser(ctx, "alice"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestRepo(t)
	ctx := context.Background()
	if err := s.CreateUser(ctx, "alice", "secret", false); err != nil {
		t.Fatal(err)
	}

	sessionID, err := s.CreateSession(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	if session.Username != "alice" {
		t.Fatalf("session: %+v", session)
	}
	if err := s.DeleteSession(ctx, sessionID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSession(ctx, sessionID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("deleted session: got %v", err)
	}
}
