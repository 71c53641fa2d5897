// ABOUTME: Tests for the HTTP API
// ABOUTME: Exercises every route through httptest against an in-memory service
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harper/askdocs/internal/logging"
	"github.com/harper/askdocs/internal/models"
	"github.com/harper/askdocs/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *testutil.Fixture) {
	t.Helper()
	fx := testutil.NewService(t)
	return New(fx.Service, logging.Discard()), fx
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestDocumentsThenChat(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/documents", map[string]interface{}{
		"documents": []map[string]interface{}{
			{"id": "leave", "text": "Employees get 20 days of paid leave per year.", "metadata": map[string]string{"source": "handbook.txt"}},
			{"id": "office", "text": "The office opens at nine in the morning."},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /documents status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ingest struct {
		Status      string `json:"status"`
		Mode        string `json:"mode"`
		Documents   int    `json:"documents"`
		TotalChunks int    `json:"total_chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ingest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ingest.Status != "indexed" || ingest.Mode != "append" || ingest.Documents != 2 || ingest.TotalChunks != 2 {
		t.Errorf("ingest response = %+v", ingest)
	}

	rec = doJSON(t, s, http.MethodPost, "/chat", map[string]string{
		"chat_id": "user-1",
		"message": "How many days of paid leave do employees get?",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /chat status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var chat chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if chat.Answer == "" || len(chat.Sources) != 2 {
		t.Fatalf("chat = %+v", chat)
	}
	if chat.Sources[0].Metadata[models.MetaDocumentID] != "leave" {
		t.Errorf("top source = %+v, want the leave document", chat.Sources[0])
	}

	rec = doJSON(t, s, http.MethodGet, "/sessions/user-1/history", nil)
	var history struct {
		SessionID string        `json:"session_id"`
		Turns     []models.Turn `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(history.Turns) != 2 || history.Turns[1].Text != chat.Answer {
		t.Errorf("history = %+v", history)
	}
}

func TestChat_EmptyIndex(t *testing.T) {
	s, fx := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/chat", map[string]string{"message": "Anything there?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"sources":[]`) {
		t.Errorf("body = %s, want empty sources array", rec.Body.String())
	}
	if fx.Embedder.Calls() != 0 {
		t.Errorf("embedder called %d times for an empty index", fx.Embedder.Calls())
	}
	if got, _ := fx.Service.History("default"); len(got) != 2 {
		t.Errorf("default session has %d turns, want 2", len(got))
	}
}

func TestChat_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		llmErr     error
		wantStatus int
		wantKind   string
	}{
		{"missing message", `{"chat_id":"x"}`, nil, http.StatusBadRequest, "invalid_request"},
		{"malformed json", `{"message":`, nil, http.StatusBadRequest, "invalid_request"},
		{"generation failure", `{"message":"hello?"}`, errors.New("upstream down"), http.StatusBadGateway, "answer_generation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, fx := newTestServer(t)
			fx.LLM.Err = tt.llmErr

			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if body := decodeError(t, rec); body.Error.Kind != tt.wantKind || body.Error.Message == "" {
				t.Errorf("error = %+v, want kind %s", body.Error, tt.wantKind)
			}
		})
	}
}

func TestDocuments_Errors(t *testing.T) {
	s, fx := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/documents", map[string]interface{}{"documents": []interface{}{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty documents status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/documents", map[string]interface{}{
		"documents": []map[string]string{{"text": "hello"}},
		"mode":      "merge",
	})
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Error.Kind != "invalid_request" {
		t.Errorf("unknown mode status = %d, body = %s", rec.Code, rec.Body.String())
	}

	fx.Embedder.Err = errors.New("embedding service unavailable")
	rec = doJSON(t, s, http.MethodPost, "/documents", map[string]interface{}{
		"documents": []map[string]string{{"text": "hello"}},
	})
	if rec.Code != http.StatusUnprocessableEntity || decodeError(t, rec).Error.Kind != "ingestion_error" {
		t.Errorf("embed failure status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if fx.Service.Stats().Chunks != 0 {
		t.Error("failed ingestion changed the index")
	}
}

func newUpload(t *testing.T, mode string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if mode != "" {
		if err := w.WriteField("mode", mode); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	s, fx := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, newUpload(t, "", map[string]string{
		"handbook.txt": "Employees get 20 days of paid leave per year.",
		"notes.md":     "# Notes\nThe office opens at nine.",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := fx.Service.Stats().Chunks; got != 2 {
		t.Fatalf("Chunks = %d, want 2", got)
	}

	sources := map[string]bool{}
	for _, item := range fx.Service.Index().Snapshot().Items() {
		sources[item.Chunk.Metadata[models.MetaSource]] = true
	}
	if !sources["handbook.txt"] || !sources["notes.md"] {
		t.Errorf("source metadata = %v", sources)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, newUpload(t, "rebuild", map[string]string{"only.txt": "A single replacement."}))
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := fx.Service.Stats().Chunks; got != 1 {
		t.Errorf("Chunks after rebuild upload = %d, want 1", got)
	}
}

func TestUpload_RejectsUnsupportedType(t *testing.T) {
	s, fx := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, newUpload(t, "", map[string]string{
		"ok.txt":     "fine",
		"report.pdf": "%PDF-1.4",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if decodeError(t, rec).Error.Kind != "invalid_request" {
		t.Errorf("body = %s", rec.Body.String())
	}
	if fx.Service.Stats().Chunks != 0 {
		t.Error("rejected upload indexed documents")
	}
}

func TestClearSession(t *testing.T) {
	s, fx := newTestServer(t)

	if _, err := fx.Service.Ask(context.Background(), "gone", "hello?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	rec := doJSON(t, s, http.MethodDelete, "/sessions/gone", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	for _, id := range fx.Service.Sessions() {
		if id == "gone" {
			t.Error("session still listed after DELETE")
		}
	}
}

func TestSessionHistory_UnknownSessionNotCreated(t *testing.T) {
	s, fx := newTestServer(t)

	if _, err := fx.Service.Ask(context.Background(), "kept", "hello?"); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	rec := doJSON(t, s, http.MethodGet, "/sessions/someone-else/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		SessionID string        `json:"session_id"`
		Turns     []interface{} `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SessionID != "someone-else" || body.Turns == nil || len(body.Turns) != 0 {
		t.Errorf("body = %s", rec.Body.String())
	}

	sessions := fx.Service.Sessions()
	if len(sessions) != 1 || sessions[0] != "kept" {
		t.Errorf("sessions after history lookup = %v, want [kept]", sessions)
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t)
	doJSON(t, s, http.MethodPost, "/documents", map[string]interface{}{
		"documents": []map[string]string{{"text": "alpha beta"}},
	})

	rec := doJSON(t, s, http.MethodGet, "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"chunks":1`) || !strings.Contains(rec.Body.String(), testutil.EmbeddingModel) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
