package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/nachoal/coding-agent-server/internal/stubserver"
	"github.com/nachoal/coding-agent-server/internal/toolinit"
	"github.com/nachoal/coding-agent-server/llm"
	"github.com/nachoal/coding-agent-server/llm/openai"
	"github.com/nachoal/coding-agent-server/tools/registry"
	"github.com/nachoal/coding-agent-server/vision"
)

func newRegistry(t *testing.T, baseURL string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	analyzer := vision.NewAnalyzer(openai.NewClient(llm.WithBaseURL(baseURL)))
	if err := toolinit.RegisterAll(reg, analyzer); err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func call(t *testing.T, reg *registry.Registry, name string, args interface{}) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := Handler(reg, name)(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestHandler_CompareCountErrorsAreToolResults(t *testing.T) {
	stub := stubserver.New(stubserver.Options{})
	srv := httptest.NewServer(stub.Handler())
	defer srv.Close()
	reg := newRegistry(t, srv.URL+"/v1")

	res := call(t, reg, "compare_images", map[string]interface{}{"image_paths": []string{"a.png"}, "prompt": "x"})
	if !res.IsError || resultText(t, res) != "need at least 2 images to compare (got 1)" {
		t.Fatalf("unexpected result: %+v", res)
	}

	six := []string{"1", "2", "3", "4", "5", "6"}
	res = call(t, reg, "compare_images", map[string]interface{}{"image_paths": six, "prompt": "x"})
	if !res.IsError || resultText(t, res) != "maximum 5 images per request (server limit) (got 6)" {
		t.Fatalf("unexpected result: %+v", res)
	}

	if stub.Requests() != 0 {
		t.Fatalf("expected no remote requests, got %d", stub.Requests())
	}
}

func TestHandler_MissingFile(t *testing.T) {
	stub := stubserver.New(stubserver.Options{})
	srv := httptest.NewServer(stub.Handler())
	defer srv.Close()
	reg := newRegistry(t, srv.URL+"/v1")

	missing := filepath.Join(t.TempDir(), "nope.png")
	res := call(t, reg, "analyze_image", map[string]interface{}{"image_path": missing, "prompt": "x"})
	if !res.IsError {
		t.Fatalf("expected error result")
	}
	if got := resultText(t, res); got != "image not found: "+missing {
		t.Fatalf("unexpected message %q", got)
	}
	if stub.Requests() != 0 {
		t.Fatalf("expected no remote requests, got %d", stub.Requests())
	}
}

func TestHandler_UnconfiguredEndpoint(t *testing.T) {
	reg := newRegistry(t, "")

	res := call(t, reg, "analyze_image", map[string]interface{}{"image_path": "a.png", "prompt": "x"})
	if !res.IsError || resultText(t, res) != "VLM endpoint is not configured (set VLM_ENDPOINT)" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandler_QuotedArgumentsAccepted(t *testing.T) {
	reg := newRegistry(t, "")

	res := call(t, reg, "compare_images", `{"image_paths":[],"prompt":"x"}`)
	if !res.IsError || resultText(t, res) != "need at least 2 images to compare (got 0)" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestNew_ListsToolsWithSchemas(t *testing.T) {
	s, err := New(newRegistry(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	tools := gjson.GetBytes(raw, "result.tools")
	if len(tools.Array()) != 2 {
		t.Fatalf("expected two tools, got %s", raw)
	}
	compare := gjson.GetBytes(raw, `result.tools.#(name=="compare_images")`)
	if compare.Get("inputSchema.properties.image_paths.maxItems").Int() != 5 {
		t.Fatalf("expected maxItems=5 in schema, got %s", compare.Raw)
	}
}
