package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) result {
	t.Helper()
	var res result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res
}

func TestHealthzAlwaysOK(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if res := decodeResult(t, rec); res.Status != "ok" {
		t.Errorf("body status = %q", res.Status)
	}
}

func TestReadyzAllPass(t *testing.T) {
	h := New(
		Checker{Name: "database", Check: func(context.Context) error { return nil }},
		Checker{Name: "stt", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Status != "ok" || res.Checks["database"] != "ok" || res.Checks["stt"] != "ok" {
		t.Errorf("body = %+v", res)
	}
}

func TestReadyzFailingChecker(t *testing.T) {
	h := New(
		Checker{Name: "database", Check: func(context.Context) error { return errors.New("connection refused") }},
		Checker{Name: "stt", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest("GET", "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Status != "fail" {
		t.Errorf("body status = %q", res.Status)
	}
	if res.Checks["database"] != "fail: connection refused" {
		t.Errorf("database check = %q", res.Checks["database"])
	}
	if res.Checks["stt"] != "ok" {
		t.Errorf("stt check = %q", res.Checks["stt"])
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestStoreChecker(t *testing.T) {
	ok := StoreChecker("database", fakePinger{})
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("healthy pinger: %v", err)
	}

	bad := StoreChecker("database", fakePinger{err: errors.New("down")})
	if err := bad.Check(context.Background()); err == nil {
		t.Error("expected error from failing pinger")
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New().Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
