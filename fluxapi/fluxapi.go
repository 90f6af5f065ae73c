// Package fluxapi is the HTTP serving layer of the catalogue: record
// listing and retrieval, playback state, metadata editing, search and
// user sessions. It is a thin layer over the repository; all catalogue
// semantics live in the storage and indexer packages.
package fluxapi

import (
	"net/http"
	"path"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/erikbos/flux-server/config"
	"github.com/erikbos/flux-server/database"
	"github.com/erikbos/flux-server/search"
)

type Options struct {
	Repo   database.Repository
	Search *search.Search
	Config *config.Config
}

type FluxAPI struct {
	repo   database.Repository
	search *search.Search
	cfg    *config.Config
}

func New(o *Options) *FluxAPI {
	return &FluxAPI{
		repo:   o.Repo,
		search: o.Search,
		cfg:    o.Config,
	}
}

func (f *FluxAPI) RegisterHandlers(r *mux.Router) {
	gzip := handlers.CompressHandler

	s := r.PathPrefix("/api/v0/").Subrouter()

	s.Handle("/index/records", gzip(http.HandlerFunc(f.recordsHandler))).Methods("GET")
	s.HandleFunc("/index/record/{id}", f.recordHandler).Methods("GET")
	s.HandleFunc("/index/record/{id}", f.updateMetadataHandler(entityRecord)).Methods("PUT")
	s.HandleFunc("/index/record/{id}/current-video", f.currentVideoHandler).Methods("GET")
	s.HandleFunc("/index/video/{id}", f.videoHandler).Methods("GET")
	s.HandleFunc("/index/video/{id}", f.updateMetadataHandler(entityVideo)).Methods("PUT")
	s.HandleFunc("/index/search", f.searchHandler).Methods("GET")

	s.HandleFunc("/playback/{recordID}", f.upsertPlaybackHandler).Methods("POST")
	s.HandleFunc("/playback/{recordID}", f.deletePlaybackHandler).Methods("DELETE")

	s.HandleFunc("/user/login", f.loginHandler).Methods("POST")
	s.HandleFunc("/user/logout", f.logoutHandler).Methods("POST")
	s.HandleFunc("/user/settings", f.getSettingsHandler).Methods("GET")
	s.HandleFunc("/user/settings", f.updateSettingsHandler).Methods("PUT")

	r.PathPrefix("/thumbnails/").Handler(
		http.StripPrefix("/thumbnails/",
			http.FileServer(http.Dir(f.cfg.ThumbnailPath()))))

	if f.cfg.Appdir != "" {
		r.PathPrefix("/").HandlerFunc(f.indexHandler)
	}
}

func (f *FluxAPI) indexHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, path.Join(f.cfg.Appdir, "index.html"))
}
