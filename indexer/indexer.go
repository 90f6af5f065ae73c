// Package indexer builds catalogue records from a filesystem tree:
// it classifies a target by content type, probes its video files,
// generates thumbnails and commits the resulting entity graph to the
// content store in a single transaction.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/erikbos/flux-server/database"
	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/extract"
	"github.com/erikbos/flux-server/idhash"
)

// ErrAutoDetect is returned when a build is requested without an
// explicit content type.
var ErrAutoDetect = errors.New("content-type auto-detection is not available, pass an explicit type")

// StructuralError reports a target that does not satisfy the minimum
// shape for its declared content type. Nothing was written.
type StructuralError struct {
	Target string
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("rejected %q: %s", e.Target, e.Reason)
}

type Options struct {
	Repo database.Repository
	// Extract runs the external probing and thumbnailing tools.
	Extract extract.Extractor
	// ThumbnailDir is the index directory thumbnail files go into.
	ThumbnailDir string
	// Workers bounds parallel probe invocations.
	Workers int
	Verbose bool
}

type Builder struct {
	repo         database.Repository
	extract      extract.Extractor
	thumbnailDir string
	workers      int
	verbose      bool
}

func New(o *Options) *Builder {
	workers := o.Workers
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		repo:         o.Repo,
		extract:      o.Extract,
		thumbnailDir: o.ThumbnailDir,
		workers:      workers,
		verbose:      o.Verbose,
	}
}

// AddRequest describes one index-build invocation.
type AddRequest struct {
	// Target file (movie) or directory (series, collection).
	Target string
	Type   model.ContentType
	// Auto requests content-type detection, which is not implemented.
	Auto bool
	// Name and Description override the derived record metadata.
	Name        string
	Description string
	// DryRun runs the full scan/classify/probe pipeline and reports
	// intended actions without writing to storage or disk.
	DryRun bool
}

// Add builds one record from the target and commits it. The scan and
// all tool invocations happen outside any transaction; the assembled
// graph is written in one transaction afterwards. Thumbnail files hit
// the disk before the commit, so a failed commit can leave orphaned
// files behind; those are reclaimed by CleanupThumbnails.
func (b *Builder) Add(ctx context.Context, req AddRequest) (*model.RecordGraph, error) {
	if req.Type == "" {
		if req.Auto {
			return nil, ErrAutoDetect
		}
		return nil, errors.New("no content type given")
	}

	target, err := filepath.Abs(req.Target)
	if err != nil {
		return nil, err
	}

	var graph *model.RecordGraph
	switch req.Type {
	case model.ContentTypeMovie:
		graph, err = b.buildMovie(ctx, target)
	case model.ContentTypeSeries:
		graph, err = b.buildSeries(ctx, target)
	case model.ContentTypeCollection:
		graph, err = b.buildCollection(ctx, target)
	default:
		return nil, fmt.Errorf("unknown content type %q", req.Type)
	}
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		graph.Record.Name = req.Name
	}
	if req.Description != "" {
		graph.Record.Description = req.Description
	}

	if req.DryRun {
		return graph, nil
	}

	if err := b.generateThumbnails(ctx, graph); err != nil {
		return nil, err
	}
	if err := b.repo.InsertRecordGraph(ctx, graph); err != nil {
		return nil, fmt.Errorf("commit %q: %w", target, err)
	}
	return graph, nil
}

// RemoveResult reports one removed record.
type RemoveResult struct {
	RecordID string
	Videos   int
}

// Remove deletes records from the index. Seasons, videos and tracks
// cascade away in the store. With dryRun set it only reports what
// would be removed.
func (b *Builder) Remove(ctx context.Context, recordIDs []string, dryRun bool) ([]RemoveResult, error) {
	results := make([]RemoveResult, 0, len(recordIDs))
	for _, recordID := range recordIDs {
		videos, err := b.repo.CountVideos(ctx, recordID)
		if err != nil {
			return nil, err
		}
		results = append(results, RemoveResult{RecordID: recordID, Videos: videos})
	}
	if dryRun {
		return results, nil
	}
	for _, recordID := range recordIDs {
		if err := b.repo.DeleteRecord(ctx, recordID); err != nil {
			return nil, fmt.Errorf("remove %s: %w", recordID, err)
		}
	}
	return results, nil
}

// CleanupThumbnails removes thumbnail rows nothing references anymore
// and deletes their files. This is the explicit reclaim pass for files
// orphaned by rolled-back builds or metadata updates.
func (b *Builder) CleanupThumbnails(ctx context.Context) (int, error) {
	orphans, err := b.repo.CleanupThumbnails(ctx)
	if err != nil {
		return 0, err
	}
	for _, thumb := range orphans {
		filename := filepath.Join(b.thumbnailDir, thumb.Path)
		if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
			log.Printf("cleanup: cannot remove %s: %s", filename, err)
		}
	}
	return len(orphans), nil
}

// generateThumbnails extracts a still frame per video and assigns the
// record-level default thumbnail. Failures are logged and leave the
// item without a thumbnail; they never abort the build.
func (b *Builder) generateThumbnails(ctx context.Context, graph *model.RecordGraph) error {
	if err := os.MkdirAll(b.thumbnailDir, 0o755); err != nil {
		return err
	}

	trackByVideo := make(map[string]*model.Track, len(graph.Tracks))
	for i := range graph.Tracks {
		trackByVideo[graph.Tracks[i].VideoID] = &graph.Tracks[i]
	}

	for i := range graph.Videos {
		video := &graph.Videos[i]
		track, ok := trackByVideo[video.ID]
		if !ok {
			continue
		}
		thumbID := idhash.NewRandomID()
		filename := thumbID + ".jpg"
		seek := seekFor(track)
		if err := b.extract.Thumbnail(ctx, track.Path,
			filepath.Join(b.thumbnailDir, filename), seek); err != nil {
			log.Printf("no thumbnail for %s: %s", video.Name, err)
			continue
		}
		graph.Thumbnails = append(graph.Thumbnails, model.Thumbnail{
			ID:   thumbID,
			Path: filename,
		})
		video.ThumbnailID = &thumbID
	}

	if graph.Record.ThumbnailID == nil {
		graph.Record.ThumbnailID = defaultRecordThumbnail(graph)
	}
	return nil
}

// defaultRecordThumbnail picks the record-level thumbnail: the first
// season's first episode, else the first special, else the first
// member of the record, whichever exists and has one.
func defaultRecordThumbnail(graph *model.RecordGraph) *string {
	// Videos are ordered season-by-season with specials and members
	// last, so the first video with a thumbnail is the right pick.
	for i := range graph.Videos {
		if graph.Videos[i].ThumbnailID != nil {
			return graph.Videos[i].ThumbnailID
		}
	}
	return nil
}
