package fluxapi

import (
	"errors"
	"net/http"

	"github.com/erikbos/flux-server/database/model"
)

// currentUser resolves the session cookie to a user. A missing cookie,
// an unknown session or a deleted user all yield ErrNotFound.
func (f *FluxAPI) currentUser(r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(f.cfg.Session.CookieName)
	if err != nil {
		return nil, model.ErrNotFound
	}
	session, err := f.repo.GetSession(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	return f.repo.GetUser(r.Context(), session.Username)
}

// requireUser authenticates the request, writing the 401 itself when
// it fails.
func (f *FluxAPI) requireUser(w http.ResponseWriter, r *http.Request) *model.User {
	user, err := f.currentUser(r)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			f.apiError(w, http.StatusUnauthorized, "not logged in")
		} else {
			f.internalError(w, err)
		}
		return nil
	}
	return user
}

// requireAdmin is requireUser plus the admin flag.
func (f *FluxAPI) requireAdmin(w http.ResponseWriter, r *http.Request) *model.User {
	user := f.requireUser(w, r)
	if user == nil {
		return nil
	}
	if !user.IsAdmin {
		f.apiError(w, http.StatusForbidden, "admin required")
		return nil
	}
	return user
}
