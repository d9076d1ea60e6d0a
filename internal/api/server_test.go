package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/castor/internal/session"
)

const testEOS int32 = 257

// testModel is a scripted session.Model: it tokenizes bytes and, per
// decoded token, favours the next token in transitions (or the stop token).
type testModel struct {
	transitions map[int32]int32
	mem         testMemory
}

type testMemory struct{}

func (testMemory) RemoveRange(seq, p0, p1 int32)       {}
func (testMemory) ShiftRange(seq, p0, p1, delta int32) {}
func (testMemory) Clear()                              {}

func (m *testModel) Tokenize(text string) ([]int32, error) {
	ids := make([]int32, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int32(text[i])
	}
	return ids, nil
}

func (m *testModel) Piece(id int32) []byte {
	if id < 0 || id >= 256 {
		return nil
	}
	return []byte{byte(id)}
}

func (m *testModel) IsStopToken(id int32) bool { return id == testEOS }
func (m *testModel) VocabSize() int            { return 258 }

func (m *testModel) Decode(b session.Batch) ([]float32, error) {
	last := b[len(b)-1]
	if !last.WantLogits {
		return nil, nil
	}
	lg := make([]float32, 258)
	for i := range lg {
		lg[i] = -100
	}
	if next, ok := m.transitions[last.Token]; ok {
		lg[next] = 100
	} else {
		lg[testEOS] = 100
	}
	return lg, nil
}

func (m *testModel) Memory() session.Memory { return m.mem }
func (m *testModel) Close() error           { return nil }

func newTestEcho(t *testing.T) *echo.Echo {
	t.Helper()
	model := &testModel{transitions: map[int32]int32{
		'i': 'o', // prompt "hi" -> "ok"
		'o': 'k',
		'k': testEOS,
	}}
	ctrl, err := session.New(model, session.Options{Capacity: 64, BatchLimit: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(ctrl, nil)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodGet, "/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestGenerateSync(t *testing.T) {
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hi","max_tokens":10,"seed":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	if !strings.HasPrefix(resp.ID, "gen-") {
		t.Fatalf("unexpected id: %q", resp.ID)
	}
	if resp.Object != "generation" {
		t.Fatalf("unexpected object: %q", resp.Object)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.StopReason != "stop" {
		t.Fatalf("unexpected stop reason: %q", resp.StopReason)
	}
	if resp.TokensGenerated != 2 {
		t.Fatalf("unexpected token count: %d", resp.TokensGenerated)
	}
}

func TestGenerateStream(t *testing.T) {
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hi","max_tokens":10,"seed":1,"stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("stream status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", got)
	}

	body := rec.Body.String()
	events := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %s", len(events), body)
	}
	for i, want := range []string{`"delta":"o"`, `"delta":"k"`, `"done":true`} {
		if !strings.Contains(events[i], want) {
			t.Fatalf("event %d missing %s: %s", i, want, events[i])
		}
	}
	if !strings.Contains(events[2], `"stop_reason":"stop"`) {
		t.Fatalf("final event missing stop reason: %s", events[2])
	}
}

func TestGenerateStreamErrorRespondsJSON(t *testing.T) {
	model := &testModel{}
	ctrl, err := session.New(model, session.Options{Capacity: 64}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatal(err)
	}
	server := NewServer(ctrl, nil)
	e := echo.New()
	server.Register(e)

	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"hi","stream":true}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d body=%s", rec.Code, rec.Body.String())
	}
	ct := rec.Header().Get(echo.HeaderContentType)
	if !strings.Contains(ct, "application/json") {
		t.Fatalf("expected JSON error response, got content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "model_unavailable") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestGenerateValidation(t *testing.T) {
	e := newTestEcho(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank prompt, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "prompt is required") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/generate", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTokenize(t *testing.T) {
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", `{"text":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("tokenize status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp TokenizeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode tokenize response: %v", err)
	}
	if resp.Count != 2 || len(resp.Tokens) != 2 {
		t.Fatalf("unexpected token count: %+v", resp)
	}
	if resp.Tokens[0] != 'h' || resp.Tokens[1] != 'i' {
		t.Fatalf("unexpected tokens: %v", resp.Tokens)
	}
}

func TestTokenizeEmptyText(t *testing.T) {
	e := newTestEcho(t)
	rec := doJSON(t, e, http.MethodPost, "/v1/tokenize", `{"text":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("tokenize status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"tokens":[]`) {
		t.Fatalf("expected empty token array: %s", rec.Body.String())
	}
}
