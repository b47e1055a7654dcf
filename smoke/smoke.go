// Package smoke runs post-deploy checks against the coder and VLM endpoints.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/nachoal/coding-agent-server/llm"
	"github.com/nachoal/coding-agent-server/llm/openai"
)

// Status of a single check
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Check names
const (
	CheckHealth = "health"
	CheckModels = "models"
	CheckChat   = "chat"
	CheckStream = "stream"
)

// Target is one deployed endpoint
type Target struct {
	Name string
	// URL is the server root, without /v1
	URL    string
	Model  string
	Stream bool
}

// Result is the outcome of one check
type Result struct {
	Target  string
	Check   string
	Status  Status
	Detail  string
	Elapsed time.Duration
}

// ClientFactory builds the client used for a target
type ClientFactory func(t Target) llm.Client

// Runner runs checks; targets are checked concurrently, checks within a target in order
type Runner struct {
	newClient ClientFactory
	prompt    string
	maxTokens int
}

// Option configures a Runner
type Option func(*Runner)

// WithClientFactory replaces the default OpenAI-compatible client
func WithClientFactory(f ClientFactory) Option {
	return func(r *Runner) {
		r.newClient = f
	}
}

// WithHeaders attaches headers (proxy auth) to every request of the default client
func WithHeaders(headers map[string]string) Option {
	return func(r *Runner) {
		r.newClient = defaultFactory(headers)
	}
}

// NewRunner creates a runner
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		newClient: defaultFactory(nil),
		prompt:    "Say hello.",
		maxTokens: 32,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultFactory(headers map[string]string) ClientFactory {
	return func(t Target) llm.Client {
		return openai.NewClient(
			llm.WithBaseURL(strings.TrimRight(t.URL, "/")+"/v1"),
			llm.WithModel(t.Model),
			llm.WithTimeout(2*time.Minute),
			llm.WithHeaders(headers),
		)
	}
}

// Run checks every target and returns results grouped by target in input order
func (r *Runner) Run(ctx context.Context, targets []Target) []Result {
	perTarget := make([][]Result, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		g.Go(func() error {
			perTarget[i] = r.runTarget(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	var results []Result
	for _, rs := range perTarget {
		results = append(results, rs...)
	}
	return results
}

func (r *Runner) runTarget(ctx context.Context, t Target) []Result {
	checks := []string{CheckHealth, CheckModels, CheckChat}
	if t.Stream {
		checks = append(checks, CheckStream)
	}

	if t.URL == "" {
		results := make([]Result, 0, len(checks))
		for _, c := range checks {
			results = append(results, Result{Target: t.Name, Check: c, Status: StatusSkip, Detail: "endpoint URL not set"})
		}
		return results
	}

	client := r.newClient(t)
	defer client.Close()

	logger := klog.FromContext(ctx).WithValues("target", t.Name)
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		start := time.Now()
		detail, err := r.runCheck(ctx, client, t, c)

		res := Result{Target: t.Name, Check: c, Status: StatusPass, Detail: detail, Elapsed: time.Since(start)}
		if err != nil {
			res.Status = StatusFail
			res.Detail = err.Error()
		}
		logger.V(1).Info("Smoke check finished", "check", c, "status", res.Status, "elapsed", res.Elapsed)
		results = append(results, res)
	}
	return results
}

func (r *Runner) runCheck(ctx context.Context, client llm.Client, t Target, check string) (string, error) {
	switch check {
	case CheckHealth:
		return "", client.Health(ctx)

	case CheckModels:
		models, err := client.ListModels(ctx)
		if err != nil {
			return "", err
		}
		ids := make([]string, 0, len(models))
		for _, m := range models {
			ids = append(ids, m.ID)
		}
		if !slices.Contains(ids, t.Model) {
			return "", fmt.Errorf("expected %s in %v", t.Model, ids)
		}
		return t.Model, nil

	case CheckChat:
		resp, err := client.Chat(ctx, r.request(t))
		if err != nil {
			return "", err
		}
		if resp.Content == "" {
			return "", errors.New("expected non-empty response content")
		}
		return fmt.Sprintf("%d chars", len(resp.Content)), nil

	case CheckStream:
		// Cancelling releases the reader goroutine when we stop early
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		events, err := client.ChatStream(ctx, r.request(t))
		if err != nil {
			return "", err
		}
		chunks := 0
		done := false
		var text strings.Builder
		for ev := range events {
			switch {
			case ev.Err != nil:
				return "", ev.Err
			case ev.Done:
				done = true
				continue
			case ev.Object != llm.ChunkObject:
				return "", fmt.Errorf("unexpected stream object %q after %d chunks", ev.Object, chunks)
			}
			chunks++
			for _, c := range ev.Choices {
				text.WriteString(c.Delta.Content)
			}
		}
		if !done {
			return "", llm.ErrStreamTruncated
		}
		if chunks == 0 {
			return "", errors.New("stream produced no chunks")
		}
		return fmt.Sprintf("%d chunks, %d chars", chunks, text.Len()), nil
	}
	return "", fmt.Errorf("unknown check %q", check)
}

func (r *Runner) request(t Target) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:     t.Model,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: llm.StringPtr(r.prompt)}},
		MaxTokens: r.maxTokens,
	}
}

// Failed reports whether any check failed. Skips are not failures.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}
