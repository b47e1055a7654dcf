package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/coding-agent-server/internal/stubserver"
	"github.com/nachoal/coding-agent-server/internal/styles"
)

func startStub(t *testing.T, opts stubserver.Options) string {
	t.Helper()
	srv := httptest.NewServer(stubserver.New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRun_AllPass(t *testing.T) {
	coderURL := startStub(t, stubserver.Options{Models: []string{"coder-model"}})
	vlmURL := startStub(t, stubserver.Options{Models: []string{"vlm-model"}})

	results := NewRunner().Run(context.Background(), []Target{
		{Name: "coder", URL: coderURL, Model: "coder-model", Stream: true},
		{Name: "vlm", URL: vlmURL + "/", Model: "vlm-model"},
	})

	require.Len(t, results, 7)
	for _, r := range results {
		assert.Equal(t, StatusPass, r.Status, "%s %s: %s", r.Target, r.Check, r.Detail)
	}
	assert.Equal(t, "coder", results[0].Target)
	assert.Equal(t, CheckStream, results[3].Check)
	assert.Equal(t, "vlm", results[4].Target)
	assert.False(t, Failed(results))
}

func TestRun_MissingURLSkips(t *testing.T) {
	results := NewRunner().Run(context.Background(), []Target{{Name: "vlm", Model: "m"}})

	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StatusSkip, r.Status)
	}
	assert.False(t, Failed(results))
}

func TestRun_Failures(t *testing.T) {
	url := startStub(t, stubserver.Options{Models: []string{"other-model"}, Unhealthy: true})

	results := NewRunner().Run(context.Background(), []Target{{Name: "vlm", URL: url, Model: "vlm-model"}})

	require.Len(t, results, 3)
	assert.Equal(t, StatusFail, results[0].Status, "health")
	assert.Equal(t, StatusFail, results[1].Status, "model missing from list")
	assert.Contains(t, results[1].Detail, "vlm-model")
	assert.Equal(t, StatusPass, results[2].Status, "chat still answers")
	assert.True(t, Failed(results))
}

// brokenStreamServer answers health, models and plain chat normally but serves
// streaming requests with body as-is.
func brokenStreamServer(t *testing.T, model, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/v1/models":
			fmt.Fprintf(w, `{"object":"list","data":[{"id":%q}]}`, model)
		case "/v1/chat/completions":
			var req struct {
				Stream bool `json:"stream"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			if !req.Stream {
				fmt.Fprint(w, `{"choices":[{"message":{"content":"hello"}}]}`)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRun_StreamCheckRequiresDoneAndChunks(t *testing.T) {
	cases := map[string]struct {
		body   string
		detail string
	}{
		"no done marker": {
			body:   "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"delta\":{\"content\":\"def\"}}]}\n\n",
			detail: "[DONE]",
		},
		"wrong object": {
			body:   "data: {\"object\":\"error\",\"choices\":[]}\n\n",
			detail: `"error"`,
		},
		"done without chunks": {
			body:   "data: [DONE]\n\n",
			detail: "no chunks",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			url := brokenStreamServer(t, "coder-model", tc.body)

			results := NewRunner().Run(context.Background(), []Target{{Name: "coder", URL: url, Model: "coder-model", Stream: true}})

			require.Len(t, results, 4)
			stream := results[3]
			assert.Equal(t, CheckStream, stream.Check)
			assert.Equal(t, StatusFail, stream.Status)
			assert.Contains(t, stream.Detail, tc.detail)
			assert.Equal(t, StatusPass, results[2].Status, "plain chat is unaffected")
			assert.True(t, Failed(results))
		})
	}
}

func TestRender(t *testing.T) {
	out := Render([]Result{
		{Target: "coder", Check: CheckHealth, Status: StatusPass},
		{Target: "vlm", Check: CheckChat, Status: StatusFail, Detail: "remote API error: status 502"},
		{Target: "vlm", Check: CheckModels, Status: StatusSkip},
	}, styles.Default())

	assert.Contains(t, out, "coder health")
	assert.Contains(t, out, "status 502")
	assert.Contains(t, out, "1 passed, 1 failed, 1 skipped")
}
