package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// InferenceServer is an OpenAI-compatible stub answering every chat
// completion with a fixed description.
type InferenceServer struct {
	*httptest.Server
	completions atomic.Int32
}

// NewInferenceServer starts a stub that serves /v1/models and
// /v1/chat/completions. It is closed on test cleanup.
func NewInferenceServer(t testing.TB, description string) *InferenceServer {
	t.Helper()
	s := &InferenceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/models"):
			_, _ = w.Write([]byte(`{"data":[{"id":"test-model"}]}`))
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			s.completions.Add(1)
			payload := map[string]any{
				"choices": []any{
					map[string]any{"message": map[string]any{"content": description}, "finish_reason": "stop"},
				},
			}
			_ = json.NewEncoder(w).Encode(payload)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

// Completions reports how many chat completion requests were served.
func (s *InferenceServer) Completions() int {
	return int(s.completions.Load())
}
