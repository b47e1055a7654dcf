package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/nachoal/coding-agent-server/config"
	"github.com/nachoal/coding-agent-server/internal/toolinit"
	"github.com/nachoal/coding-agent-server/llm"
	"github.com/nachoal/coding-agent-server/llm/openai"
	"github.com/nachoal/coding-agent-server/mcpserver"
	"github.com/nachoal/coding-agent-server/tools"
	"github.com/nachoal/coding-agent-server/tools/registry"
	"github.com/nachoal/coding-agent-server/vision"
)

var (
	v = config.NewViper()

	// Flags
	comparePrompt string

	// Root command
	rootCmd = &cobra.Command{
		Use:   "coding-agent-server",
		Short: "Vision tools for coding agents, backed by a self-hosted VLM",
		Long: "coding-agent-server exposes analyze_image and compare_images to agent runtimes over MCP stdio,\n" +
			"and carries the helpers used to deploy and check the vLLM endpoints behind them.",
		SilenceUsage: true,
		RunE:         runMCP,
	}

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve the vision tools over MCP stdio (default)",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}

	// One-shot commands
	analyzeCmd = &cobra.Command{
		Use:   "analyze <image> [prompt]",
		Short: "Analyze one image and print the model's answer",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runAnalyze,
	}

	compareCmd = &cobra.Command{
		Use:   "compare <image> <image>...",
		Short: "Compare 2-5 images and print the model's answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCompare,
	}

	// Tools command
	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "Tool management commands",
	}

	listToolsCmd = &cobra.Command{
		Use:   "list",
		Short: "List available tools",
		RunE:  listTools,
	}
)

func init() {
	// klog flags (-v, --vmodule, ...) go on the root; logs always go to stderr
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.PersistentFlags().String("endpoint", "", "VLM base URL including /v1 (env VLM_ENDPOINT)")
	rootCmd.PersistentFlags().String("model", config.DefaultModel, "Served model name (env VLM_MODEL)")
	rootCmd.PersistentFlags().Float64("timeout", config.DefaultTimeout, "Per-request timeout in seconds (env VLM_TIMEOUT)")
	rootCmd.PersistentFlags().Int("max-tokens", config.DefaultMaxTokens, "Output length bound (env VLM_MAX_TOKENS)")
	for _, key := range []string{"endpoint", "model", "timeout", "max-tokens"} {
		_ = v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}

	compareCmd.Flags().StringVarP(&comparePrompt, "prompt", "p", "", "Question or instruction about the images")

	rootCmd.AddCommand(mcpCmd, analyzeCmd, compareCmd, toolsCmd)
	toolsCmd.AddCommand(listToolsCmd)
	addDeployCommands(rootCmd)
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		klog.ErrorS(err, "Error loading .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	klog.Flush()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads flags, environment and defaults into a Config
func loadConfig() (*config.Config, error) {
	return config.Load(v)
}

func newVLMClient(cfg *config.Config) *openai.Client {
	return openai.NewClient(
		llm.WithBaseURL(cfg.Endpoint),
		llm.WithModel(cfg.Model),
		llm.WithTimeout(cfg.Timeout),
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithHeaders(cfg.ProxyHeaders()),
	)
}

// newRegistry wires config, client, analyzer and tools together. An unconfigured endpoint is
// not an error here; each tool call reports it instead.
func newRegistry(cfg *config.Config) (*registry.Registry, func(), error) {
	client := newVLMClient(cfg)
	analyzer := vision.NewAnalyzer(client, vision.WithMaxTokens(cfg.MaxTokens))

	reg := registry.New()
	if err := toolinit.RegisterAll(reg, analyzer); err != nil {
		client.Close()
		return nil, nil, err
	}
	return reg, func() { client.Close() }, nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := klog.FromContext(cmd.Context())
	if cfg.Endpoint == "" {
		logger.Info("VLM_ENDPOINT is not set; tool calls will fail until it is configured")
	}
	logger.V(1).Info("Configuration loaded", "endpoint", cfg.Endpoint, "model", cfg.Model, "timeout", cfg.Timeout)

	reg, closeFn, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	s, err := mcpserver.New(reg)
	if err != nil {
		return err
	}

	return cleanExit(cmd.Context(), mcpserver.ServeStdio(cmd.Context(), s, os.Stdin, os.Stdout))
}

// cleanExit drops errors caused by the user stopping the command (Ctrl-C, SIGTERM):
// a cancelled context, or a child process killed because of it.
func cleanExit(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	return err
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	params := map[string]interface{}{"image_path": args[0]}
	if len(args) > 1 {
		params["prompt"] = args[1]
	} else {
		params["prompt"] = "Describe this image in detail."
	}
	return runTool(cmd, tools.AnalyzeImageName, params)
}

func runCompare(cmd *cobra.Command, args []string) error {
	prompt := comparePrompt
	if prompt == "" {
		prompt = "Compare these images. What is similar and what is different?"
	}
	return runTool(cmd, tools.CompareImagesName, map[string]interface{}{
		"image_paths": args,
		"prompt":      prompt,
	})
}

// runTool executes a tool the way an MCP call would and prints its text
func runTool(cmd *cobra.Command, name string, params map[string]interface{}) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, closeFn, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	out, err := reg.Execute(cmd.Context(), name, raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func listTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, closeFn, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Available tools:")
	for _, name := range reg.List() {
		tool, err := reg.Get(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "  🔧 %-15s - %s\n", name, tool.Description())
	}
	return nil
}
