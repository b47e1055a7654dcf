package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, env := range envBindings {
		t.Setenv(env, "")
	}

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Endpoint != "" {
		t.Fatalf("expected unconfigured endpoint, got %q", cfg.Endpoint)
	}
	if cfg.Model != DefaultModel || cfg.Timeout != 300*time.Second || cfg.MaxTokens != DefaultMaxTokens {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProxyHeaders() != nil {
		t.Fatalf("expected no proxy headers")
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("VLM_ENDPOINT", " https://ws--coding-agent-server-serve-vlm.modal.run/v1 ")
	t.Setenv("VLM_MODEL", "other/model")
	t.Setenv("VLM_TIMEOUT", "12.5")
	t.Setenv("VLM_MAX_TOKENS", "512")
	t.Setenv("MODAL_PROXY_TOKEN_ID", "wk-1")
	t.Setenv("MODAL_PROXY_TOKEN_SECRET", "ws-1")
	t.Setenv("ENDPOINT_URL", "")
	t.Setenv("VLM_ENDPOINT_URL", "http://localhost:8000/")
	t.Setenv("MODAL_WORKSPACE", "acme")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Endpoint != "https://ws--coding-agent-server-serve-vlm.modal.run/v1" {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.Model != "other/model" || cfg.Timeout != 12500*time.Millisecond || cfg.MaxTokens != 512 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if h := cfg.ProxyHeaders(); h["Modal-Key"] != "wk-1" || h["Modal-Secret"] != "ws-1" {
		t.Fatalf("unexpected proxy headers: %v", h)
	}
	if cfg.CoderURL != "https://acme--coding-agent-server-serve-coder.modal.run" {
		t.Fatalf("expected coder URL derived from workspace, got %q", cfg.CoderURL)
	}
	if cfg.VLMURL != "http://localhost:8000" {
		t.Fatalf("expected explicit VLM URL to win, got %q", cfg.VLMURL)
	}
}

func TestLoad_RejectsBadNumbers(t *testing.T) {
	t.Setenv("VLM_TIMEOUT", "-1")
	if _, err := Load(NewViper()); err == nil {
		t.Fatalf("expected error for negative timeout")
	}

	t.Setenv("VLM_TIMEOUT", "30")
	t.Setenv("VLM_MAX_TOKENS", "0")
	if _, err := Load(NewViper()); err == nil {
		t.Fatalf("expected error for zero max tokens")
	}
}
