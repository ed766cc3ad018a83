package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sonara-health/sonara/internal/auth"
	"github.com/sonara-health/sonara/internal/insights"
	mailermock "github.com/sonara-health/sonara/internal/mailer/mock"
	"github.com/sonara-health/sonara/internal/session"
	"github.com/sonara-health/sonara/internal/transcribe"
	"github.com/sonara-health/sonara/pkg/audio"
	analysismock "github.com/sonara-health/sonara/pkg/provider/analysis/mock"
	embedmock "github.com/sonara-health/sonara/pkg/provider/embeddings/mock"
	sttmock "github.com/sonara-health/sonara/pkg/provider/stt/mock"
	"github.com/sonara-health/sonara/pkg/store"
	storemock "github.com/sonara-health/sonara/pkg/store/mock"
)

type testEnv struct {
	server   *Server
	handler  http.Handler
	store    *storemock.Store
	stt      *sttmock.Provider
	analysis *analysismock.Provider
	embed    *embedmock.Provider
	mail     *mailermock.Mailer
	signer   *auth.TokenSigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := storemock.New()
	sttProv := &sttmock.Provider{Results: []string{"hello from the session"}}
	anProv := &analysismock.Provider{Responses: map[string]string{
		"sentiment":   "Calm and hopeful overall.",
		"speaking":    `{"Therapist": 40, "Patient": 60}`,
		"summarizing": "The client discussed progress at work.",
		"translator":  "Already English.",
	}}
	embProv := &embedmock.Provider{}
	mail := &mailermock.Mailer{}

	signer, err := auth.NewTokenSigner([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	srv := NewServer(Deps{
		Normalizer:  audio.NewNormalizer(),
		Transcriber: transcribe.New(sttProv),
		Extractor:   insights.NewExtractor(anProv),
		Embedder:    embProv,
		Recorder:    session.NewRecorder(st),
		Store:       st,
		Signer:      signer,
		Mailer:      mail,
	})

	return &testEnv{
		server:   srv,
		handler:  srv.Routes(),
		store:    st,
		stt:      sttProv,
		analysis: anProv,
		embed:    embProv,
		mail:     mail,
		signer:   signer,
	}
}

// token returns a signed bearer token for the given subject and role.
func (e *testEnv) token(t *testing.T, subject string, role store.Role) string {
	t.Helper()
	tok, err := e.signer.Issue(subject, role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

// do runs a JSON request through the full handler tree.
func (e *testEnv) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestAuthGuards(t *testing.T) {
	env := newTestEnv(t)
	patient := env.token(t, "pat@example.com", store.RolePatient)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		want   int
	}{
		{"no token", http.MethodPost, "/api/insights", "", http.StatusUnauthorized},
		{"garbage token", http.MethodPost, "/api/insights", "not.a.token", http.StatusUnauthorized},
		{"patient blocked from pipeline", http.MethodPost, "/api/insights", patient, http.StatusForbidden},
		{"patient blocked from commit", http.MethodPost, "/api/sessions", patient, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.target, tt.token, map[string]string{"text": "hi"})
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestCookieAuthenticates(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "doc@example.com", store.RoleTherapist)

	req := httptest.NewRequest(http.MethodPost, "/api/insights", strings.NewReader(`{"text":"hello"}`))
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok})
	rr := httptest.NewRecorder()
	env.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rr.Code, rr.Body.String())
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":       "doc@example.com",
		"password":    "correct horse",
		"displayName": "Dr. Example",
		"role":        "therapist",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register status = %d (%s)", rr.Code, rr.Body.String())
	}

	sent := env.mail.Sent()
	if len(sent) != 1 || sent[0].To != "doc@example.com" {
		t.Fatalf("verification mail = %+v, want one to doc@example.com", sent)
	}

	// Login before verification must be refused.
	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "doc@example.com", "password": "correct horse",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unverified login status = %d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/auth/verify?token="+sent[0].Token, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status = %d (%s)", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "doc@example.com", "password": "correct horse",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d (%s)", rr.Code, rr.Body.String())
	}

	var out struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	decodeBody(t, rr, &out)
	if out.Role != "therapist" {
		t.Fatalf("role = %q, want therapist", out.Role)
	}
	claims, err := env.signer.Verify(out.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Subject != "doc@example.com" || claims.Role != store.RoleTherapist {
		t.Fatalf("claims = %+v", claims)
	}

	var gotCookie bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == TokenCookie {
			gotCookie = true
			if !c.HttpOnly {
				t.Error("session cookie is not HttpOnly")
			}
		}
	}
	if !gotCookie {
		t.Errorf("login did not set %s cookie", TokenCookie)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"password": "longenough", "role": "patient"}},
		{"bad role", map[string]string{"email": "a@b.c", "password": "longenough", "role": "admin"}},
		{"short password", map[string]string{"email": "a@b.c", "password": "short", "role": "patient"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{
		"email": "doc@example.com", "password": "correct horse", "role": "therapist",
	}

	if rr := env.do(t, http.MethodPost, "/api/auth/register", "", body); rr.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/api/auth/register", "", body); rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rr.Code)
	}
}

func TestLoginUniformFailure(t *testing.T) {
	env := newTestEnv(t)

	// Unknown account and wrong password must be indistinguishable.
	rr1 := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "whatever123",
	})

	reg := map[string]string{"email": "doc@example.com", "password": "correct horse", "role": "therapist"}
	env.do(t, http.MethodPost, "/api/auth/register", "", reg)
	rr2 := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "doc@example.com", "password": "wrong password",
	})

	if rr1.Code != http.StatusUnauthorized || rr2.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d, %d, want both 401", rr1.Code, rr2.Code)
	}
	if rr1.Body.String() != rr2.Body.String() {
		t.Fatalf("login failure bodies differ: %q vs %q", rr1.Body.String(), rr2.Body.String())
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/auth/verify?token=deadbeef", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestHealthAndMetricsExposed(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := env.do(t, http.MethodGet, target, "", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", target, rr.Code)
		}
	}
}
