package fluxapi

import (
	"errors"
	"net/http"

	"github.com/erikbos/flux-server/database/model"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginHandler validates credentials and sets the session cookie.
func (f *FluxAPI) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		f.apiError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	user, err := f.repo.ValidateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidPassword) {
			f.apiError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		f.internalError(w, err)
		return
	}

	sessionID, err := f.repo.CreateSession(r.Context(), user.Username)
	if err != nil {
		f.internalError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     f.cfg.Session.CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	serveJSON(w, "ok", user)
}

// logoutHandler deletes the session and clears the cookie.
func (f *FluxAPI) logoutHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(f.cfg.Session.CookieName)
	if err == nil {
		if err := f.repo.DeleteSession(r.Context(), cookie.Value); err != nil {
			f.internalError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     f.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	serveJSON(w, "ok", nil)
}

func (f *FluxAPI) getSettingsHandler(w http.ResponseWriter, r *http.Request) {
	user := f.requireUser(w, r)
	if user == nil {
		return
	}
	serveJSON(w, "ok", user)
}

type settingsUpdate struct {
	Volume   float64 `json:"volume"`
	Muted    bool    `json:"muted"`
	Autoplay bool    `json:"autoplay"`
}

func (f *FluxAPI) updateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	user := f.requireUser(w, r)
	if user == nil {
		return
	}
	var update settingsUpdate
	if err := decodeJSONBody(r, &update); err != nil {
		f.apiError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if update.Volume < 0 || update.Volume > 1 {
		f.apiError(w, http.StatusBadRequest, "volume must be between 0 and 1")
		return
	}
	err := f.repo.UpdateUserSettings(r.Context(), user.Username,
		update.Volume, update.Muted, update.Autoplay)
	if err != nil {
		f.repoError(w, err)
		return
	}
	serveJSON(w, "updated", nil)
}
