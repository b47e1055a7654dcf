package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults match the VLM endpoint deployed by this repository
const (
	DefaultModel     = "Qwen/Qwen3-VL-32B-Thinking-FP8"
	DefaultTimeout   = 300 // seconds
	DefaultMaxTokens = 2048
	AppName          = "coding-agent-server"
)

// Config represents the bridge configuration. Built once at startup and passed to
// constructors; nothing below cmd/ reads the environment.
type Config struct {
	// Endpoint is the VLM base URL including /v1; empty means unconfigured
	Endpoint  string
	Model     string
	Timeout   time.Duration
	MaxTokens int

	// Modal proxy auth, sent only when both are set
	ProxyTokenID     string
	ProxyTokenSecret string

	// Root URLs used by smoke checks
	CoderURL string
	VLMURL   string
}

// Bindings from viper keys to environment variables
var envBindings = map[string]string{
	"endpoint":           "VLM_ENDPOINT",
	"model":              "VLM_MODEL",
	"timeout":            "VLM_TIMEOUT",
	"max-tokens":         "VLM_MAX_TOKENS",
	"proxy-token-id":     "MODAL_PROXY_TOKEN_ID",
	"proxy-token-secret": "MODAL_PROXY_TOKEN_SECRET",
	"coder-url":          "ENDPOINT_URL",
	"vlm-url":            "VLM_ENDPOINT_URL",
	"workspace":          "MODAL_WORKSPACE",
}

// NewViper returns a viper instance with defaults and environment bindings applied
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("model", DefaultModel)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("max-tokens", DefaultMaxTokens)

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load builds a Config from v (flags, env, defaults in viper's precedence order)
func Load(v *viper.Viper) (*Config, error) {
	timeoutSecs := v.GetFloat64("timeout")
	if timeoutSecs <= 0 {
		return nil, fmt.Errorf("invalid timeout %q: must be a positive number of seconds", v.GetString("timeout"))
	}

	maxTokens := v.GetInt("max-tokens")
	if maxTokens <= 0 {
		return nil, fmt.Errorf("invalid max tokens %q: must be positive", v.GetString("max-tokens"))
	}

	cfg := &Config{
		Endpoint:         strings.TrimSpace(v.GetString("endpoint")),
		Model:            v.GetString("model"),
		Timeout:          time.Duration(timeoutSecs * float64(time.Second)),
		MaxTokens:        maxTokens,
		ProxyTokenID:     v.GetString("proxy-token-id"),
		ProxyTokenSecret: v.GetString("proxy-token-secret"),
		CoderURL:         strings.TrimRight(v.GetString("coder-url"), "/"),
		VLMURL:           strings.TrimRight(v.GetString("vlm-url"), "/"),
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	if ws := strings.TrimSpace(v.GetString("workspace")); ws != "" {
		if cfg.CoderURL == "" {
			cfg.CoderURL = WorkspaceURL(ws, "serve-coder")
		}
		if cfg.VLMURL == "" {
			cfg.VLMURL = WorkspaceURL(ws, "serve-vlm")
		}
	}

	return cfg, nil
}

// WorkspaceURL derives a deployed web endpoint root from a Modal workspace name
func WorkspaceURL(workspace, function string) string {
	return fmt.Sprintf("https://%s--%s-%s.modal.run", workspace, AppName, function)
}

// ProxyHeaders returns Modal proxy auth headers when both token parts are set
func (c *Config) ProxyHeaders() map[string]string {
	if c.ProxyTokenID == "" || c.ProxyTokenSecret == "" {
		return nil
	}
	return map[string]string{
		"Modal-Key":    c.ProxyTokenID,
		"Modal-Secret": c.ProxyTokenSecret,
	}
}
