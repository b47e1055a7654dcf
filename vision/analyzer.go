package vision

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/nachoal/coding-agent-server/llm"
)

// Image count bounds for comparison. The upper bound mirrors the engine's
// --limit-mm-per-prompt image=5 setting.
const (
	MinCompareImages = 2
	MaxCompareImages = 5
)

var (
	ErrTooFewImages  = errors.New("need at least 2 images to compare")
	ErrTooManyImages = errors.New("maximum 5 images per request (server limit)")
)

// ChatClient is the part of llm.Client the analyzer needs
type ChatClient interface {
	Chat(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error)
}

// baseURLer is implemented by clients that know their endpoint before dialing
type baseURLer interface {
	BaseURL() string
}

// Analyzer turns local images plus an instruction into one chat completion
type Analyzer struct {
	client    ChatClient
	maxTokens int
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithMaxTokens bounds the generated output; zero leaves the client default
func WithMaxTokens(n int) Option {
	return func(a *Analyzer) {
		a.maxTokens = n
	}
}

// NewAnalyzer creates an analyzer over client
func NewAnalyzer(client ChatClient, opts ...Option) *Analyzer {
	a := &Analyzer{client: client}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeImage sends one image followed by the prompt
func (a *Analyzer) AnalyzeImage(ctx context.Context, imagePath, prompt string) (string, error) {
	if err := a.checkConfigured(); err != nil {
		return "", err
	}

	img, err := EncodeImage(imagePath)
	if err != nil {
		return "", err
	}

	klog.FromContext(ctx).V(1).Info("Analyzing image", "path", img.Path, "mediaType", img.MediaType)
	return a.request(ctx, BuildBlocks([]Image{img}, prompt))
}

// CompareImages sends 2-5 images in input order followed by the prompt
func (a *Analyzer) CompareImages(ctx context.Context, imagePaths []string, prompt string) (string, error) {
	if err := ValidateCompareCount(len(imagePaths)); err != nil {
		return "", err
	}
	if err := a.checkConfigured(); err != nil {
		return "", err
	}

	images := make([]Image, 0, len(imagePaths))
	for _, p := range imagePaths {
		img, err := EncodeImage(p)
		if err != nil {
			return "", err
		}
		images = append(images, img)
	}

	klog.FromContext(ctx).V(1).Info("Comparing images", "count", len(images))
	return a.request(ctx, BuildBlocks(images, prompt))
}

// ValidateCompareCount enforces MinCompareImages <= n <= MaxCompareImages
func ValidateCompareCount(n int) error {
	switch {
	case n < MinCompareImages:
		return fmt.Errorf("%w (got %d)", ErrTooFewImages, n)
	case n > MaxCompareImages:
		return fmt.Errorf("%w (got %d)", ErrTooManyImages, n)
	}
	return nil
}

// BuildBlocks puts image blocks first and exactly one trailing text block
func BuildBlocks(images []Image, prompt string) []llm.ContentPart {
	parts := make([]llm.ContentPart, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, llm.ImagePart(img.MediaType, img.Data))
	}
	return append(parts, llm.TextPart(prompt))
}

func (a *Analyzer) checkConfigured() error {
	if b, ok := a.client.(baseURLer); ok && b.BaseURL() == "" {
		return llm.ErrEndpointNotConfigured
	}
	return nil
}

func (a *Analyzer) request(ctx context.Context, parts []llm.ContentPart) (string, error) {
	resp, err := a.client.Chat(ctx, &llm.ChatRequest{
		Messages:  []llm.Message{llm.UserParts(parts...)},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
