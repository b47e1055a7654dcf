package stubserver

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/coding-agent-server/llm"
)

func solidPNG(t *testing.T, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestColorResponder(t *testing.T) {
	cases := map[string]color.Color{
		"red":   color.RGBA{255, 0, 0, 255},
		"blue":  color.RGBA{10, 10, 240, 255},
		"white": color.White,
	}
	for want, c := range cases {
		req := &llm.ChatRequest{Messages: []llm.Message{
			llm.UserParts(llm.ImagePart("image/png", solidPNG(t, c)), llm.TextPart("What color is this?")),
		}}
		assert.Equal(t, want, ColorResponder(req))
	}
}

func TestColorResponder_EchoesTextWithoutImage(t *testing.T) {
	req := &llm.ChatRequest{Messages: []llm.Message{
		{Role: llm.RoleSystem, Content: llm.StringPtr("system")},
		{Role: llm.RoleUser, Content: llm.StringPtr("Say hello.")},
	}}
	assert.Equal(t, "Say hello.", ColorResponder(req))
	assert.Equal(t, "Say hello.", EchoResponder(req))
}

func TestServer_Routes(t *testing.T) {
	s := New(Options{Models: []string{"Qwen/Qwen3-VL-32B-Thinking-FP8"}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/models")
	require.NoError(t, err)
	var models struct {
		Data []llm.Model `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&models))
	resp.Body.Close()
	require.Len(t, models.Data, 1)
	assert.Equal(t, "Qwen/Qwen3-VL-32B-Thinking-FP8", models.Data[0].ID)

	resp, err = http.Post(srv.URL+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"model":"m","messages":[{"role":"user","content":[{"type":"text","text":"ping"}]}]}`))
	require.NoError(t, err)
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "ping", out.Choices[0].Message.Content)

	assert.EqualValues(t, 3, s.Requests())
}

func TestServer_RejectsEmptyMessages(t *testing.T) {
	srv := httptest.NewServer(New(Options{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat/completions", "application/json", strings.NewReader(`{"model":"m","messages":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(New(Options{Unhealthy: true}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
