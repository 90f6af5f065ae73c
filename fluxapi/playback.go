package fluxapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/erikbos/flux-server/database/model"
)

// playbackUpdate is the POST body for a resume position.
type playbackUpdate struct {
	VideoID   string `json:"videoId"`
	Timestamp int64  `json:"timestamp"`
}

// upsertPlaybackHandler stores the resume position of the user for a
// record, replacing any earlier one.
func (f *FluxAPI) upsertPlaybackHandler(w http.ResponseWriter, r *http.Request) {
	user := f.requireUser(w, r)
	if user == nil {
		return
	}
	var update playbackUpdate
	if err := decodeJSONBody(r, &update); err != nil {
		f.apiError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if update.VideoID == "" || update.Timestamp < 0 {
		f.apiError(w, http.StatusBadRequest, "videoId and a non-negative timestamp required")
		return
	}

	recordID := mux.Vars(r)["recordID"]

	// The video must belong to the record, otherwise current-video
	// would resume the wrong content.
	info, err := f.repo.GetRecordInfo(r.Context(), recordID)
	if err != nil {
		f.repoError(w, err)
		return
	}
	if !recordHasVideo(info, update.VideoID) {
		f.apiError(w, http.StatusBadRequest, "video does not belong to record")
		return
	}

	err = f.repo.UpsertPlayback(r.Context(), model.Playback{
		Username:  user.Username,
		RecordID:  recordID,
		VideoID:   update.VideoID,
		Timestamp: update.Timestamp,
	})
	if err != nil {
		f.repoError(w, err)
		return
	}
	serveJSON(w, "updated", nil)
}

// deletePlaybackHandler reverts a record to unwatched for the user.
// Deleting an absent playback is not an error.
func (f *FluxAPI) deletePlaybackHandler(w http.ResponseWriter, r *http.Request) {
	user := f.requireUser(w, r)
	if user == nil {
		return
	}
	if err := f.repo.DeletePlayback(r.Context(), user.Username, mux.Vars(r)["recordID"]); err != nil {
		f.repoError(w, err)
		return
	}
	serveJSON(w, "deleted", nil)
}

func recordHasVideo(info *model.RecordInfo, videoID string) bool {
	switch info.Type {
	case model.ContentTypeMovie:
		return info.Movie != nil && info.Movie.ID == videoID
	case model.ContentTypeSeries:
		for _, season := range info.Series.Seasons {
			for _, episode := range season.Episodes {
				if episode.ID == videoID {
					return true
				}
			}
		}
		for _, special := range info.Series.Specials {
			if special.ID == videoID {
				return true
			}
		}
	case model.ContentTypeCollection:
		for _, member := range info.Collection {
			if member.ID == videoID {
				return true
			}
		}
	}
	return false
}
