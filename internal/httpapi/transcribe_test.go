package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/sonara-health/sonara/pkg/store"
)

// multipartUpload builds a multipart body with a single "audio" part of
// the given MIME type.
func multipartUpload(t *testing.T, field, mimeType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="recording"`)
	hdr.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) upload(t *testing.T, field, mimeType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartUpload(t, field, mimeType, data)
	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+e.token(t, "doc@example.com", store.RoleTherapist))
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestTranscribeRejectsUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "audio", "text/plain", []byte("not audio"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", rr.Code, rr.Body.String())
	}
	if env.stt.CallCount() != 0 {
		t.Fatalf("stt provider called %d times for rejected upload", env.stt.CallCount())
	}
}

func TestTranscribeRequiresAudioField(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "recording", "audio/wav", []byte{0, 0})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", rr.Code, rr.Body.String())
	}
}

func TestTranscribeRejectsOversizedUpload(t *testing.T) {
	env := newTestEnv(t)
	env.server.maxUploadBytes = 1024

	rr := env.upload(t, "audio", "audio/wav", make([]byte, 4096))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", rr.Code, rr.Body.String())
	}
	if env.stt.CallCount() != 0 {
		t.Fatalf("stt provider called %d times for oversized upload", env.stt.CallCount())
	}
}
