package fluxapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/idhash"
)

// response is the uniform reply envelope: message carries human
// readable status, content the payload.
type response struct {
	Message string `json:"message"`
	Content any    `json:"content"`
}

func serveJSON(w http.ResponseWriter, message string, content any) {
	w.Header().Set("Content-Type", "application/json")
	j := json.NewEncoder(w)
	j.SetIndent("", "  ")
	j.Encode(response{Message: message, Content: content})
}

// apiError writes an error envelope. Client errors pass their message
// through. Unexpected errors are logged with a correlation token; in
// prod mode the response only carries the token, not the cause.
func (f *FluxAPI) apiError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response{Message: msg})
}

func (f *FluxAPI) internalError(w http.ResponseWriter, err error) {
	token := idhash.NewRandomID()
	log.Printf("internal error [%s]: %s", token, err)
	msg := "internal error, reference " + token
	if f.cfg.Mode == "dev" {
		msg = err.Error() + " [" + token + "]"
	}
	f.apiError(w, http.StatusInternalServerError, msg)
}

// repoError maps a repository error onto the right response.
func (f *FluxAPI) repoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		f.apiError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrAlreadyExists):
		f.apiError(w, http.StatusConflict, "already exists")
	default:
		f.internalError(w, err)
	}
}

// decodeJSONBody decodes a request body, rejecting unknown fields.
func decodeJSONBody(r *http.Request, into any) error {
	d := json.NewDecoder(r.Body)
	d.DisallowUnknownFields()
	return d.Decode(into)
}
