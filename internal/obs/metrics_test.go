package obs

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInstrumentPreservesStatus(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crud/select", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestBuildInfoExposedOnScrape(t *testing.T) {
	InitBuildInfo("1.2.3", "abc1234")
	InitBuildInfo("1.2.3", "abc1234") // second call must not re-register

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `build_info{commit="abc1234",version="1.2.3"} 1`) {
		t.Fatalf("build_info metric missing from scrape:\n%s", rec.Body.String())
	}
}

func TestInstrumentDefaultsTo200(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
