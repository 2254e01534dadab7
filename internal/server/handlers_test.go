package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/triage/internal/config"
	"github.com/hyperjump/triage/internal/dispatch"
	"github.com/hyperjump/triage/internal/embedding"
	"github.com/hyperjump/triage/internal/metrics"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/personal"
	"github.com/hyperjump/triage/internal/profile"
	"github.com/hyperjump/triage/internal/storage"
	"github.com/hyperjump/triage/internal/triage"
)

type stubTriage struct {
	resp  *models.EmergencyResponse
	err   error
	panic bool
	got   models.EmergencyRequest
}

func (s *stubTriage) Run(ctx context.Context, req models.EmergencyRequest) (*models.EmergencyResponse, error) {
	if s.panic {
		panic("unexpected")
	}
	s.got = req
	resp := s.resp
	if resp == nil {
		resp = &models.EmergencyResponse{Status: "error", State: "failed"}
	}
	return resp, s.err
}

type stubIndex struct{ st models.IndexStatus }

func (s stubIndex) Status() models.IndexStatus { return s.st }

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, audio)
	return s.text, s.err
}

func newTestServer(t *testing.T, tr Triager) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "triage.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	arena, err := personal.NewArena(filepath.Join(dir, "personal"), embedding.NewHashEmbedder(4), nil)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(Deps{
		Triage:      tr,
		Profiles:    profile.NewService(store, arena, nil),
		Index:       stubIndex{st: models.IndexStatus{Name: "pubmed_index", Ready: true, Records: 3, Vectors: 3, Dimensions: 4}},
		Transcriber: stubTranscriber{text: "my chest hurts"},
		Metrics:     metrics.New(nil),
		DataPaths:   []string{filepath.Join(dir, "triage.db")},
	}, &config.ServerConfig{Port: 7860, RequestTimeout: 5}, nil)
	return srv, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	return out
}

func TestHandleEmergency_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"not found", fmt.Errorf("%w: ghost", triage.ErrProfileNotFound), http.StatusNotFound},
		{"unmatched", dispatch.ErrUnmatched, http.StatusUnprocessableEntity},
		{"downstream", &dispatch.Error{Route: models.RouteAmbulance, StatusCode: 500}, http.StatusBadGateway},
		{"no decision", fmt.Errorf("%w: timeout", triage.ErrDecisionUnavailable), http.StatusServiceUnavailable},
		{"fault", &triage.Fault{State: triage.StateDecisionRequested, Cause: "boom"}, http.StatusInternalServerError},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTriage{err: tt.err, resp: &models.EmergencyResponse{Status: "success", State: "routed"}}
			_, h := newTestServer(t, stub)
			w := do(t, h, http.MethodPost, "/api/v1/emergency", `{"user_id": " u1 ", "voice_text": "chest pain"}`)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			body := decodeBody(t, w)
			if tt.want == http.StatusInternalServerError {
				if body["status"] != "error" || body["detail"] != "Processing failure" {
					t.Errorf("unexpected 500 body %v", body)
				}
			}
			if stub.got.UserID != "u1" {
				t.Errorf("user id should be trimmed, got %q", stub.got.UserID)
			}
		})
	}
}

func TestHandleEmergency_BadRequest(t *testing.T) {
	_, h := newTestServer(t, &stubTriage{})
	if w := do(t, h, http.MethodPost, "/api/v1/emergency", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/emergency", `{"voice_text": "x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing user: status = %d", w.Code)
	}
}

func TestHandleEmergency_PanicIsJSON500(t *testing.T) {
	_, h := newTestServer(t, &stubTriage{panic: true})
	w := do(t, h, http.MethodPost, "/api/v1/emergency", `{"user_id": "u1"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["detail"] != "Processing failure" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestProfileEndpoints(t *testing.T) {
	_, h := newTestServer(t, &stubTriage{})
	body := `{"user_id": "u1", "name": "Ana", "dob": "1990-01-01", "allergies": "penicillin",
		"emergency_contact": {"name": "Ben", "phone": "0400"}}`

	w := do(t, h, http.MethodPost, "/api/v1/profile", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body = %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, "/api/v1/profile", body)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d", w.Code)
	}
	out := decodeBody(t, w)
	result, _ := out["result"].(map[string]interface{})
	if result["vectors"] != float64(2) {
		t.Errorf("expected 2 personal vectors, got %v", result["vectors"])
	}

	w = do(t, h, http.MethodGet, "/api/v1/profile/u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	var p models.Profile
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "Ana" || len(p.Allergies) != 1 || p.EmergencyContact.String() != "Ben - 0400" {
		t.Errorf("unexpected profile %+v", p)
	}

	if w := do(t, h, http.MethodGet, "/api/v1/profile/nobody", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown profile: status = %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/profile", `{"name": "no id"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing user id: status = %d", w.Code)
	}
}

func audioRequest(t *testing.T, contentType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="clip.wav"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("RIFF....WAVE"))
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestHandleTranscribe(t *testing.T) {
	srv, h := newTestServer(t, &stubTriage{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, audioRequest(t, "audio/wav"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if body := decodeBody(t, w); body["transcription"] != "my chest hurts" {
		t.Errorf("unexpected body %v", body)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, audioRequest(t, "video/mp4"))
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("unsupported type: status = %d", w.Code)
	}

	srv.deps.Transcriber = stubTranscriber{text: ""}
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, audioRequest(t, "audio/mpeg"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty transcript: status = %d", w.Code)
	}
}

func TestHandleIndexStatus(t *testing.T) {
	_, h := newTestServer(t, &stubTriage{})
	w := do(t, h, http.MethodGet, "/api/v1/index/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	idx, _ := body["index"].(map[string]interface{})
	if idx["ready"] != true || idx["records"] != float64(3) {
		t.Errorf("unexpected index status %v", idx)
	}
	if _, ok := body["disk_usage_bytes"]; !ok {
		t.Error("disk usage should be reported")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, h := newTestServer(t, &stubTriage{})
	if w := do(t, h, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
		t.Errorf("health: status = %d", w.Code)
	}
	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("metrics: status = %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route: status = %d", w.Code)
	}
}
