// Package stubserver is a small OpenAI-compatible stand-in for the vLLM endpoints,
// used by tests and for offline development of the tool bridge.
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/nachoal/coding-agent-server/llm"
)

// Responder produces the assistant text for a chat request
type Responder func(req *llm.ChatRequest) string

// Options configures the stub
type Options struct {
	// Models listed by GET /v1/models; the first one is reported when a request omits the model
	Models []string
	// Responder defaults to ColorResponder
	Responder Responder
	// Unhealthy makes /health answer 503
	Unhealthy bool
}

// Server serves /health, /v1/models and /v1/chat/completions
type Server struct {
	opts     Options
	engine   *gin.Engine
	requests atomic.Int64
}

// New builds the stub and its routes
func New(opts Options) *Server {
	if opts.Responder == nil {
		opts.Responder = ColorResponder
	}
	if len(opts.Models) == 0 {
		opts.Models = []string{"stub-model"}
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{opts: opts, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.count)

	s.engine.GET("/health", s.health)
	v1 := s.engine.Group("/v1")
	v1.GET("/models", s.listModels)
	v1.POST("/chat/completions", s.chatCompletions)

	return s
}

// Handler exposes the router, e.g. for httptest.NewServer
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Requests reports how many HTTP requests the stub has received
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Run listens on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	logger := klog.FromContext(ctx)
	srv := &http.Server{Addr: addr, Handler: s.engine}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting stub server", "addr", addr, "models", s.opts.Models)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("Stub server stopped")
	return nil
}

func (s *Server) count(c *gin.Context) {
	s.requests.Add(1)
	c.Next()
}

func (s *Server) health(c *gin.Context) {
	if s.opts.Unhealthy {
		c.String(http.StatusServiceUnavailable, "Service Unavailable\n")
		return
	}
	c.String(http.StatusOK, "OK\n")
}

func (s *Server) listModels(c *gin.Context) {
	data := make([]llm.Model, 0, len(s.opts.Models))
	for _, m := range s.opts.Models {
		data = append(data, llm.Model{ID: m, Object: "model", OwnedBy: "vllm", Root: m})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

func (s *Server) chatCompletions(c *gin.Context) {
	var req llm.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		apiError(c, http.StatusBadRequest, "messages must not be empty")
		return
	}
	if req.Model == "" {
		req.Model = s.opts.Models[0]
	}

	content := s.opts.Responder(&req)
	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()

	if req.Stream {
		s.stream(c, id, created, req.Model, content)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":      id,
		"object":  "chat.completion",
		"created": created,
		"model":   req.Model,
		"choices": []gin.H{{
			"index":         0,
			"message":       gin.H{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": gin.H{
			"prompt_tokens":     0,
			"completion_tokens": len(strings.Fields(content)),
			"total_tokens":      len(strings.Fields(content)),
		},
	})
}

func (s *Server) stream(c *gin.Context, id string, created int64, model, content string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	chunk := func(delta gin.H, finish interface{}) {
		c.SSEvent("", gin.H{
			"id":      id,
			"object":  "chat.completion.chunk",
			"created": created,
			"model":   model,
			"choices": []gin.H{{"index": 0, "delta": delta, "finish_reason": finish}},
		})
		c.Writer.Flush()
	}

	chunk(gin.H{"role": "assistant"}, nil)
	for _, word := range strings.SplitAfter(content, " ") {
		if word != "" {
			chunk(gin.H{"content": word}, nil)
		}
	}
	chunk(gin.H{}, "stop")

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

func apiError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": gin.H{"message": msg, "type": "invalid_request_error"}})
}
