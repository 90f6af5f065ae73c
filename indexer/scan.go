package indexer

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/djherbis/times"

	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/extract"
	"github.com/erikbos/flux-server/idhash"
)

// scanItem is one candidate video file found during the scan.
type scanItem struct {
	// name is the display name, the file name without extension.
	name string
	path string
	// created is the file birth time, falling back to mtime.
	created time.Time
	// meta is nil until probed, and stays nil for unprobeable files.
	meta *extract.Metadata
}

// scanDir lists the immediate entries of dir in lexicographic order,
// split into subdirectories and candidate files. Hidden entries are
// skipped. Re-running a scan against an unchanged tree yields the
// same ordering.
func scanDir(dir string) (subdirs []string, files []*scanItem, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	// os.ReadDir sorts by name already; keep the sort explicit since
	// position values must reflect exactly this ordering.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}
		files = append(files, newScanItem(filepath.Join(dir, name)))
	}
	return subdirs, files, nil
}

func newScanItem(path string) *scanItem {
	item := &scanItem{
		name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		path: path,
	}
	if ts, err := times.Stat(path); err == nil {
		if ts.HasBirthTime() {
			item.created = ts.BirthTime()
		} else {
			item.created = ts.ModTime()
		}
	}
	return item
}

// probeAll probes the items on a bounded worker pool. Items failing
// the probe keep a nil meta. Order of the slice is not disturbed.
func (b *Builder) probeAll(ctx context.Context, items []*scanItem) {
	sem := make(chan struct{}, b.workers)
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(item *scanItem) {
			defer wg.Done()
			defer func() { <-sem }()
			item.meta = b.extract.Probe(ctx, item.path)
		}(item)
	}
	wg.Wait()
}

// logScan reports every scanned file with its birth time and probe
// outcome when verbose output is on.
func (b *Builder) logScan(items []*scanItem) {
	if !b.verbose {
		return
	}
	for _, item := range items {
		status := "ok"
		if item.meta == nil {
			status = "skipped, not a video"
		}
		log.Printf("scan: %s (created %s): %s",
			item.path, item.created.Format(time.RFC3339), status)
	}
}

// probed filters items down to the ones that passed the probe,
// preserving order.
func probed(items []*scanItem) []*scanItem {
	valid := make([]*scanItem, 0, len(items))
	for _, item := range items {
		if item.meta != nil {
			valid = append(valid, item)
		}
	}
	return valid
}

// buildMovie builds the graph for a single movie file: one record,
// one video, one track.
func (b *Builder) buildMovie(ctx context.Context, target string) (*model.RecordGraph, error) {
	fi, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, &StructuralError{Target: target, Reason: "movie target must be a file"}
	}

	item := newScanItem(target)
	item.meta = b.extract.Probe(ctx, target)
	b.logScan([]*scanItem{item})
	if item.meta == nil {
		return nil, &StructuralError{Target: target, Reason: "not a probeable video file"}
	}

	graph := &model.RecordGraph{
		Record: model.Record{
			ID:   idhash.NewRandomID(),
			Type: model.ContentTypeMovie,
			Name: item.name,
		},
	}
	appendVideo(graph, item, nil, 1)
	return graph, nil
}

// buildSeries builds the graph for a series directory: immediate
// subdirectories become seasons, their files episodes, season-less
// top-level files become specials. Seasons without any valid episode
// are silently omitted; a series without seasons and specials is
// rejected without side effects.
func (b *Builder) buildSeries(ctx context.Context, target string) (*model.RecordGraph, error) {
	subdirs, topFiles, err := scanDir(target)
	if err != nil {
		return nil, err
	}

	type seasonScan struct {
		name  string
		files []*scanItem
	}
	seasons := make([]seasonScan, 0, len(subdirs))
	var all []*scanItem
	for _, subdir := range subdirs {
		_, files, err := scanDir(filepath.Join(target, subdir))
		if err != nil {
			return nil, err
		}
		seasons = append(seasons, seasonScan{name: subdir, files: files})
		all = append(all, files...)
	}
	all = append(all, topFiles...)

	b.probeAll(ctx, all)
	b.logScan(all)

	graph := &model.RecordGraph{
		Record: model.Record{
			ID:   idhash.NewRandomID(),
			Type: model.ContentTypeSeries,
			Name: filepath.Base(target),
		},
	}

	seasonPosition := 0
	for _, season := range seasons {
		episodes := probed(season.files)
		if len(episodes) == 0 {
			// A season directory with zero valid episodes is omitted.
			continue
		}
		seasonPosition++
		seasonID := idhash.NewRandomID()
		graph.Seasons = append(graph.Seasons, model.Season{
			ID:       seasonID,
			RecordID: graph.Record.ID,
			Name:     season.name,
			Position: seasonPosition,
		})
		for i, episode := range episodes {
			appendVideo(graph, episode, &seasonID, i+1)
		}
	}

	specials := probed(topFiles)
	for i, special := range specials {
		appendVideo(graph, special, nil, i+1)
	}

	if len(graph.Seasons) == 0 && len(specials) == 0 {
		return nil, &StructuralError{Target: target, Reason: "no seasons or specials found"}
	}
	return graph, nil
}

// buildCollection builds the graph for a collection directory: the
// immediate files become member videos, positioned by name for
// determinism.
func (b *Builder) buildCollection(ctx context.Context, target string) (*model.RecordGraph, error) {
	_, files, err := scanDir(target)
	if err != nil {
		return nil, err
	}
	b.probeAll(ctx, files)
	b.logScan(files)

	members := probed(files)
	if len(members) == 0 {
		return nil, &StructuralError{Target: target, Reason: "no playable members found"}
	}

	graph := &model.RecordGraph{
		Record: model.Record{
			ID:   idhash.NewRandomID(),
			Type: model.ContentTypeCollection,
			Name: filepath.Base(target),
		},
	}
	for i, member := range members {
		appendVideo(graph, member, nil, i+1)
	}
	return graph, nil
}

// appendVideo adds a video and its primary track to the graph.
func appendVideo(graph *model.RecordGraph, item *scanItem, seasonID *string, position int) {
	videoID := idhash.NewRandomID()
	graph.Videos = append(graph.Videos, model.Video{
		ID:       videoID,
		RecordID: graph.Record.ID,
		SeasonID: seasonID,
		Name:     item.name,
		Position: position,
	})
	graph.Tracks = append(graph.Tracks, model.Track{
		ID:           idhash.NewRandomID(),
		VideoID:      videoID,
		Path:         item.path,
		MetadataJSON: item.meta.FilteredJSON(),
		IsPrimary:    true,
	})
}

// seekFor computes the thumbnail offset for a track, 10% into the
// probed duration.
func seekFor(track *model.Track) time.Duration {
	var meta model.TrackMeta
	if err := json.Unmarshal([]byte(track.MetadataJSON), &meta); err != nil {
		return 0
	}
	duration, err := strconv.ParseFloat(meta.Duration, 64)
	if err != nil {
		return 0
	}
	return time.Duration(duration/10) * time.Second
}
