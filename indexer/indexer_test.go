package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erikbos/flux-server/database"
	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/extract"
)

// stubExtract treats every file with a .mkv extension as a valid video
// and records thumbnail invocations.
type stubExtract struct {
	thumbnails  []string
	failThumbs  bool
	probedPaths []string
}

func (s *stubExtract) Probe(ctx context.Context, path string) *extract.Metadata {
	s.probedPaths = append(s.probedPaths, path)
	if filepath.Ext(path) != ".mkv" {
		return nil
	}
	return &extract.Metadata{
		Size:       "1048576",
		Duration:   120,
		Streams:    2,
		FormatName: "matroska",
	}
}

func (s *stubExtract) Thumbnail(ctx context.Context, src, dst string, seek time.Duration) error {
	if s.failThumbs {
		return errors.New("encoder exploded")
	}
	s.thumbnails = append(s.thumbnails, dst)
	return os.WriteFile(dst, []byte("jpg"), 0o644)
}

// fakeRepo records commits. The embedded interface covers the methods
// these tests never reach.
type fakeRepo struct {
	database.Repository
	graphs      []*model.RecordGraph
	videoCounts map[string]int
	deleted     []string
	insertErr   error
}

func (f *fakeRepo) InsertRecordGraph(ctx context.Context, graph *model.RecordGraph) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.graphs = append(f.graphs, graph)
	return nil
}

func (f *fakeRepo) CountVideos(ctx context.Context, recordID string) (int, error) {
	return f.videoCounts[recordID], nil
}

func (f *fakeRepo) DeleteRecord(ctx context.Context, recordID string) error {
	f.deleted = append(f.deleted, recordID)
	return nil
}

func newTestBuilder(t *testing.T) (*Builder, *fakeRepo, *stubExtract) {
	t.Helper()
	repo := &fakeRepo{videoCounts: map[string]int{}}
	ex := &stubExtract{}
	b := New(&Options{
		Repo:         repo,
		Extract:      ex,
		ThumbnailDir: filepath.Join(t.TempDir(), "thumbs"),
		Workers:      2,
	})
	return b, repo, ex
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAddMovie(t *testing.T) {
	b, repo, _ := newTestBuilder(t)
	dir := t.TempDir()
	writeFiles(t, dir, "heat.mkv")

	graph, err := b.Add(context.Background(), AddRequest{
		Target: filepath.Join(dir, "heat.mkv"),
		Type:   model.ContentTypeMovie,
	})
	if err != nil {
		t.Fatal(err)
	}
	if graph.Record.Type != model.ContentTypeMovie || graph.Record.Name != "heat" {
		t.Fatalf("unexpected record: %+v", graph.Record)
	}
	if len(graph.Videos) != 1 || len(graph.Tracks) != 1 {
		t.Fatalf("want 1 video and 1 track, got %d/%d", len(graph.Videos), len(graph.Tracks))
	}
	if !graph.Tracks[0].IsPrimary {
		t.Fatal("movie track must be primary")
	}
	if len(repo.graphs) != 1 {
		t.Fatalf("want 1 commit, got %d", len(repo.graphs))
	}
	if graph.Record.ThumbnailID == nil || *graph.Record.ThumbnailID != *graph.Videos[0].ThumbnailID {
		t.Fatal("record thumbnail must default to the video thumbnail")
	}
}

func TestAddMovieRejectsNonVideo(t *testing.T) {
	b, repo, _ := newTestBuilder(t)
	dir := t.TempDir()
	writeFiles(t, dir, "notes.txt")

	_, err := b.Add(context.Background(), AddRequest{
		Target: filepath.Join(dir, "notes.txt"),
		Type:   model.ContentTypeMovie,
	})
	var serr *StructuralError
	if !errors.As(err, &serr) {
		t.Fatalf("want StructuralError, got %v", err)
	}
	if len(repo.graphs) != 0 {
		t.Fatal("rejection must not commit anything")
	}
}

func TestAddMovieRejectsDirectory(t *testing.T) {
	b, _, _ := newTestBuilder(t)

	_, err := b.Add(context.Background(), AddRequest{
		Target: t.TempDir(),
		Type:   model.ContentTypeMovie,
	})
	var serr *StructuralError
	if !errors.As(err, &serr) {
		t.Fatalf("want StructuralError, got %v", err)
	}
}

func TestAddSeries(t *testing.T) {
	b, repo, _ := newTestBuilder(t)
	root := filepath.Join(t.TempDir(), "The Wire")
	writeFiles(t, filepath.Join(root, "Season 1"), "e01.mkv", "e02.mkv")
	writeFiles(t, filepath.Join(root, "Season 2"), "e01.mkv")
	writeFiles(t, root, "pilot-special.mkv", "cover.txt")
	// Hidden entries are skipped entirely.
	writeFiles(t, filepath.Join(root, ".cache"), "junk.mkv")
	writeFiles(t, root, ".hidden.mkv")

	graph, err := b.Add(context.Background(), AddRequest{
		Target: root,
		Type:   model.ContentTypeSeries,
	})
	if err != nil {
		t.Fatal(err)
	}
	if graph.Record.Name != "The Wire" {
		t.Fatalf("record name: got %q", graph.Record.Name)
	}
	if len(graph.Seasons) != 2 {
		t.Fatalf("want 2 seasons, got %d", len(graph.Seasons))
	}
	for i, season := range graph.Seasons {
		if season.Position != i+1 {
			t.Fatalf("season %q position: got %d, want %d", season.Name, season.Position, i+1)
		}
	}
	if graph.Seasons[0].Name != "Season 1" || graph.Seasons[1].Name != "Season 2" {
		t.Fatalf("season order: %+v", graph.Seasons)
	}

	var episodes, specials int
	for _, video := range graph.Videos {
		if video.SeasonID == nil {
			specials++
			if video.Name != "pilot-special" {
				t.Fatalf("unexpected special %q", video.Name)
			}
		} else {
			episodes++
		}
	}
	if episodes != 3 || specials != 1 {
		t.Fatalf("want 3 episodes and 1 special, got %d/%d", episodes, specials)
	}
	if len(repo.graphs) != 1 {
		t.Fatal("series must be committed once")
	}
}

func TestAddSeriesOmitsEmptySeasons(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	root := filepath.Join(t.TempDir(), "show")
	writeFiles(t, filepath.Join(root, "Season 1"), "cover.txt")
	writeFiles(t, filepath.Join(root, "Season 2"), "e01.mkv")

	graph, err := b.Add(context.Background(), AddRequest{
		Target: root,
		Type:   model.ContentTypeSeries,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(graph.Seasons) != 1 || graph.Seasons[0].Name != "Season 2" {
		t.Fatalf("want only Season 2, got %+v", graph.Seasons)
	}
	// Omission renumbers: the surviving season still starts at 1.
	if graph.Seasons[0].Position != 1 {
		t.Fatalf("season position: got %d, want 1", graph.Seasons[0].Position)
	}
}

func TestAddSeriesRejectsEmptyTree(t *testing.T) {
	b, repo, _ := newTestBuilder(t)
	root := filepath.Join(t.TempDir(), "empty-show")
	writeFiles(t, filepath.Join(root, "Season 1"), "readme.txt")

	_, err := b.Add(context.Background(), AddRequest{
		Target: root,
		Type:   model.ContentTypeSeries,
	})
	var serr *StructuralError
	if !errors.As(err, &serr) {
		t.Fatalf("want StructuralError, got %v", err)
	}
	if len(repo.graphs) != 0 {
		t.Fatal("rejection must not commit anything")
	}
}

func TestAddCollection(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	root := filepath.Join(t.TempDir(), "Concerts")
	writeFiles(t, root, "b.mkv", "a.mkv", "c.mkv", "setlist.txt")

	graph, err := b.Add(context.Background(), AddRequest{
		Target: root,
		Type:   model.ContentTypeCollection,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if len(graph.Videos) != len(want) {
		t.Fatalf("want %d members, got %d", len(want), len(graph.Videos))
	}
	for i, video := range graph.Videos {
		if video.Name != want[i] || video.Position != i+1 {
			t.Fatalf("member %d: got %q at %d, want %q at %d",
				i, video.Name, video.Position, want[i], i+1)
		}
		if video.SeasonID != nil {
			t.Fatal("collection members carry no season")
		}
	}
}

func TestAddOverrides(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	dir := t.TempDir()
	writeFiles(t, dir, "raw-name.mkv")

	graph, err := b.Add(context.Background(), AddRequest{
		Target:      filepath.Join(dir, "raw-name.mkv"),
		Type:        model.ContentTypeMovie,
		Name:        "Proper Title",
		Description: "with plot",
	})
	if err != nil {
		t.Fatal(err)
	}
	if graph.Record.Name != "Proper Title" || graph.Record.Description != "with plot" {
		t.Fatalf("overrides not applied: %+v", graph.Record)
	}
	// The video keeps its derived name.
	if graph.Videos[0].Name != "raw-name" {
		t.Fatalf("video name: got %q", graph.Videos[0].Name)
	}
}

func TestAddDryRun(t *testing.T) {
	b, repo, ex := newTestBuilder(t)
	root := filepath.Join(t.TempDir(), "show")
	writeFiles(t, filepath.Join(root, "Season 1"), "e01.mkv")

	graph, err := b.Add(context.Background(), AddRequest{
		Target: root,
		Type:   model.ContentTypeSeries,
		DryRun: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if graph == nil || len(graph.Videos) != 1 {
		t.Fatalf("dry run must still report the graph: %+v", graph)
	}
	if len(repo.graphs) != 0 {
		t.Fatal("dry run must not commit")
	}
	if len(ex.thumbnails) != 0 {
		t.Fatal("dry run must not write thumbnail files")
	}
}

func TestAddRequiresType(t *testing.T) {
	b, _, _ := newTestBuilder(t)

	if _, err := b.Add(context.Background(), AddRequest{Target: "x", Auto: true}); !errors.Is(err, ErrAutoDetect) {
		t.Fatalf("want ErrAutoDetect, got %v", err)
	}
	if _, err := b.Add(context.Background(), AddRequest{Target: "x"}); err == nil {
		t.Fatal("want error without a type")
	}
}

func TestAddThumbnailFailureIsNonFatal(t *testing.T) {
	b, repo, ex := newTestBuilder(t)
	ex.failThumbs = true
	dir := t.TempDir()
	writeFiles(t, dir, "movie.mkv")

	graph, err := b.Add(context.Background(), AddRequest{
		Target: filepath.Join(dir, "movie.mkv"),
		Type:   model.ContentTypeMovie,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(repo.graphs) != 1 {
		t.Fatal("build must still commit")
	}
	if graph.Record.ThumbnailID != nil || graph.Videos[0].ThumbnailID != nil {
		t.Fatal("failed thumbnails must leave ids unset")
	}
	if len(graph.Thumbnails) != 0 {
		t.Fatalf("no thumbnail rows expected, got %d", len(graph.Thumbnails))
	}
}

func TestRemove(t *testing.T) {
	b, repo, _ := newTestBuilder(t)
	repo.videoCounts["rec1"] = 3
	repo.videoCounts["rec2"] = 1

	results, err := b.Remove(context.Background(), []string{"rec1", "rec2"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Videos != 3 || results[1].Videos != 1 {
		t.Fatalf("unexpected dry-run results: %+v", results)
	}
	if len(repo.deleted) != 0 {
		t.Fatal("dry run must not delete")
	}

	if _, err := b.Remove(context.Background(), []string{"rec1", "rec2"}, false); err != nil {
		t.Fatal(err)
	}
	if len(repo.deleted) != 2 {
		t.Fatalf("want 2 deletions, got %d", len(repo.deleted))
	}
}
