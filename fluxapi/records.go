package fluxapi

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/jpeg"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gorilla/mux"

	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/database/sqlite"
	"github.com/erikbos/flux-server/idhash"
)

const (
	entityRecord = sqlite.EntityRecord
	entityVideo  = sqlite.EntityVideo

	// rescaleWidth is the width oversized thumbnail uploads are
	// scaled down to.
	rescaleWidth = 720
)

// recordsHandler lists records, filtered by the query parameters
// search, type, range (start-end, half open) and continue.
func (f *FluxAPI) recordsHandler(w http.ResponseWriter, r *http.Request) {
	user := f.requireUser(w, r)
	if user == nil {
		return
	}

	q := r.URL.Query()
	filter := model.ListFilter{
		Search:   q.Get("search"),
		Username: user.Username,
	}
	if t := q.Get("type"); t != "" {
		contentType, ok := model.ParseContentType(t)
		if !ok {
			f.apiError(w, http.StatusBadRequest, fmt.Sprintf("unknown type %q", t))
			return
		}
		filter.Type = contentType
	}
	if rng := q.Get("range"); rng != "" {
		pageRange, err := parseRange(rng)
		if err != nil {
			f.apiError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Range = pageRange
	}
	if q.Get("continue") == "true" {
		filter.Continue = true
	}

	list, err := f.repo.ListRecords(r.Context(), filter)
	if err != nil {
		f.internalError(w, err)
		return
	}
	serveJSON(w, "ok", list)
}

// parseRange parses a half-open "start-end" pagination window.
func parseRange(s string) (*model.PageRange, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return nil, errors.New("range must be start-end")
	}
	a, err1 := strconv.Atoi(start)
	b, err2 := strconv.Atoi(end)
	if err1 != nil || err2 != nil || a < 0 || b < a {
		return nil, fmt.Errorf("invalid range %q", s)
	}
	return &model.PageRange{Start: a, End: b}, nil
}

func (f *FluxAPI) recordHandler(w http.ResponseWriter, r *http.Request) {
	if f.requireUser(w, r) == nil {
		return
	}
	info, err := f.repo.GetRecordInfo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		f.repoError(w, err)
		return
	}
	serveJSON(w, "ok", recordInfoResponse(info))
}

func (f *FluxAPI) videoHandler(w http.ResponseWriter, r *http.Request) {
	if f.requireUser(w, r) == nil {
		return
	}
	video, err := f.repo.GetVideo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		f.repoError(w, err)
		return
	}
	serveJSON(w, "ok", video)
}

// currentVideoHandler returns the video playback of a record would
// resume at, with its timestamp. Purely informational, no state is
// created.
func (f *FluxAPI) currentVideoHandler(w http.ResponseWriter, r *http.Request) {
	user := f.requireUser(w, r)
	if user == nil {
		return
	}
	video, timestamp, err := f.repo.GetCurrentVideo(r.Context(),
		mux.Vars(r)["id"], user.Username)
	if err != nil {
		f.repoError(w, err)
		return
	}
	serveJSON(w, "ok", currentVideo{Video: video, Timestamp: timestamp})
}

type currentVideo struct {
	Video     *model.VideoInfo `json:"video"`
	Timestamp int64            `json:"timestamp"`
}

// searchHandler serves fuzzy title search. Results are full record
// payloads, best match first.
func (f *FluxAPI) searchHandler(w http.ResponseWriter, r *http.Request) {
	if f.requireUser(w, r) == nil {
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		f.apiError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	size := 20
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 100 {
			f.apiError(w, http.StatusBadRequest, "invalid size")
			return
		}
		size = n
	}

	ids, err := f.search.Search(r.Context(), query, size)
	if err != nil {
		f.internalError(w, err)
		return
	}
	records := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		info, err := f.repo.GetRecordInfo(r.Context(), id)
		if err != nil {
			// The search index may lag behind a removal.
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			f.internalError(w, err)
			return
		}
		records = append(records, info.Record)
	}
	serveJSON(w, "ok", model.RecordList{Count: len(records), Records: records})
}

// metadataUpdate is the PUT body for record and video metadata.
// Thumbnail carries a base64 encoded image.
type metadataUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Thumbnail   *string `json:"thumbnail"`
}

// updateMetadataHandler updates the editable fields of a record or
// video. Admin only. Uploaded thumbnails above the rescale limit are
// scaled down before they are stored.
func (f *FluxAPI) updateMetadataHandler(kind sqlite.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if f.requireAdmin(w, r) == nil {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, int64(f.cfg.Thumbnails.UploadSizeLimit))

		var update metadataUpdate
		if err := decodeJSONBody(r, &update); err != nil {
			f.apiError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}

		fields := make(map[sqlite.MetadataField]string)
		if update.Name != nil {
			fields[sqlite.FieldName] = *update.Name
		}
		if update.Description != nil {
			fields[sqlite.FieldDescription] = *update.Description
		}

		var thumb *model.Thumbnail
		if update.Thumbnail != nil {
			t, err := f.storeThumbnail(*update.Thumbnail)
			if err != nil {
				f.apiError(w, http.StatusBadRequest, err.Error())
				return
			}
			thumb = t
			fields[sqlite.FieldThumbnailID] = t.ID
		}
		if len(fields) == 0 {
			f.apiError(w, http.StatusBadRequest, "no fields to update")
			return
		}

		id := mux.Vars(r)["id"]
		if err := f.repo.UpdateMetadata(r.Context(), kind, id, fields, thumb); err != nil {
			f.repoError(w, err)
			return
		}
		serveJSON(w, "updated", nil)
	}
}

// storeThumbnail decodes an uploaded image and writes it into the
// thumbnail directory, rescaling it first when it exceeds the size
// limit. The database row is written by the metadata update
// transaction; a failed update leaves an orphaned file for the gc
// pass.
func (f *FluxAPI) storeThumbnail(encoded string) (*model.Thumbnail, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("thumbnail is not valid base64")
	}

	if len(data) > f.cfg.Thumbnails.RescaleAbove {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, errors.New("thumbnail is not a decodable image")
		}
		if img.Bounds().Dx() > rescaleWidth {
			img = imaging.Resize(img, rescaleWidth, 0, imaging.Lanczos)
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, fmt.Errorf("rescale thumbnail: %w", err)
		}
		data = buf.Bytes()
	}

	thumbID := idhash.NewRandomID()
	filename := thumbID + ".jpg"
	if err := os.MkdirAll(f.cfg.ThumbnailPath(), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(f.cfg.ThumbnailPath(), filename), data, 0o644); err != nil {
		return nil, err
	}
	return &model.Thumbnail{ID: thumbID, Path: filename}, nil
}

// recordInfo is the typed content payload of one record.
type recordInfo struct {
	model.Record
	Content any `json:"content"`
}

func recordInfoResponse(info *model.RecordInfo) recordInfo {
	out := recordInfo{Record: info.Record}
	switch info.Type {
	case model.ContentTypeMovie:
		out.Content = info.Movie
	case model.ContentTypeSeries:
		out.Content = info.Series
	case model.ContentTypeCollection:
		out.Content = info.Collection
	}
	return out
}
