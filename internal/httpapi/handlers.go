// Package httpapi is the HTTP layer: route wiring, middleware, the JSON
// envelope, and the session gate in front of the data endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pantry.app/internal/db"
	"pantry.app/internal/jobqueue"
	"pantry.app/internal/obs"
	"pantry.app/internal/recipes"
	"pantry.app/internal/session"
)

const sessionCookie = "session_token"

// API owns the router and the services the handlers call into.
type API struct {
	router   chi.Router
	manager  *db.Manager
	sessions *session.Service
	recipes  *recipes.Service
	queue    *jobqueue.Queue
	mapsPath string
	version  string
	log      *zap.Logger
}

// New wires every route. The crud and custom groups sit behind the session
// gate; auth, health and metrics stay open.
func New(manager *db.Manager, sessions *session.Service, recipeSvc *recipes.Service, queue *jobqueue.Queue, mapsPath, version string, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	a := &API{
		router:   chi.NewRouter(),
		manager:  manager,
		sessions: sessions,
		recipes:  recipeSvc,
		queue:    queue,
		mapsPath: mapsPath,
		version:  version,
		log:      log,
	}

	r := a.router
	r.Use(RequestLogger(log))
	r.Use(SecurityHeaders)
	r.Use(CORS)
	r.Use(MaxBodyBytes(1 << 20))
	r.Use(RateLimit(20, 10))

	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", a.authLogin)
		r.Get("/callback", a.authCallback)
		r.Get("/validate", a.authValidate)
		r.Get("/logout", a.authLogout)
	})

	r.Route("/crud", func(r chi.Router) {
		r.Use(a.sessionGate)
		r.Post("/insert", a.crudInsert)
		r.Post("/select", a.crudSelect)
		r.Put("/update", a.crudUpdate)
		r.Delete("/delete", a.crudDelete)
		r.Post("/bulk_update", a.crudBulkUpdate)
	})

	r.Route("/custom", func(r chi.Router) {
		r.Use(a.sessionGate)
		r.Get("/maps", a.customMaps)
		r.Post("/upsert_recipe", a.customUpsertRecipe)
		r.Delete("/delete_recipe", a.customDeleteRecipe)
	})

	return a
}

// Handler returns the instrumented root handler.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "pantry-api",
		"version": a.version,
	})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.manager.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// sessionGate validates the session cookie and clears it on rejection, so a
// dead token never survives on the client.
func (a *API) sessionGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		if _, err := a.sessions.Validate(r.Context(), cookie.Value, r.UserAgent(), ClientIP(r)); err != nil {
			clearSessionCookie(w)
			writeMessage(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- envelope helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"message": message})
}

// writeResult renders a Result as the {data, message} envelope. 204 carries
// no body at all.
func writeResult(w http.ResponseWriter, res db.Result) {
	if res.StatusCode == http.StatusNoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var data any
	if len(res.Content) > 0 {
		data = res.First().Records()
	}
	writeJSON(w, res.StatusCode, map[string]any{
		"data":    data,
		"message": res.Message,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return false
	}
	return true
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
