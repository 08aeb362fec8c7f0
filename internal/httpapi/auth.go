package httpapi

import (
	"net/http"
	"time"

	"pantry.app/internal/ids"
)

func (a *API) authLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"url": a.sessions.LoginURL(ids.New()),
	})
}

func (a *API) authCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeMessage(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	token, err := a.sessions.Callback(r.Context(), code, r.UserAgent(), ClientIP(r))
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Authentication required.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *API) authValidate(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	userID, err := a.sessions.Validate(r.Context(), cookie.Value, r.UserAgent(), ClientIP(r))
	if err != nil {
		clearSessionCookie(w)
		writeMessage(w, http.StatusUnauthorized, "Authentication required.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"message": "Session is valid.",
	})
}

func (a *API) authLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		_ = a.sessions.Logout(r.Context(), cookie.Value)
	}
	clearSessionCookie(w)
	writeMessage(w, http.StatusOK, "Logged out.")
}
