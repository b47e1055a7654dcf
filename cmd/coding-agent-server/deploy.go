package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/nachoal/coding-agent-server/deploy"
	"github.com/nachoal/coding-agent-server/internal/stubserver"
	"github.com/nachoal/coding-agent-server/internal/styles"
	"github.com/nachoal/coding-agent-server/llm"
	"github.com/nachoal/coding-agent-server/llm/openai"
	"github.com/nachoal/coding-agent-server/smoke"
)

var (
	deployFile string
	stubPort   int
	stubModels []string
)

func addDeployCommands(root *cobra.Command) {
	vllmArgsCmd := &cobra.Command{
		Use:   "vllm-args <endpoint>",
		Short: "Print the vLLM serve command for an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lookupSpec(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(deploy.VLLMArgs(spec), " "))
			return nil
		},
	}

	manifestCmd := &cobra.Command{
		Use:   "manifest <endpoint>",
		Short: "Print Kubernetes manifests for an endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lookupSpec(args[0])
			if err != nil {
				return err
			}
			out, err := deploy.Manifests(spec)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	launchCmd := &cobra.Command{
		Use:   "launch <endpoint>",
		Short: "Start the vLLM engine locally and wait until it is healthy",
		Args:  cobra.ExactArgs(1),
		RunE:  runLaunch,
	}

	smokeCmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run health, model list and chat checks against deployed endpoints",
		Args:  cobra.NoArgs,
		RunE:  runSmoke,
	}

	stubCmd := &cobra.Command{
		Use:   "stub-server",
		Short: "Run a local OpenAI-compatible stub for offline development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := stubserver.New(stubserver.Options{Models: stubModels})
			return s.Run(cmd.Context(), fmt.Sprintf("127.0.0.1:%d", stubPort))
		},
	}
	stubCmd.Flags().IntVar(&stubPort, "port", 8000, "Port to listen on")
	stubCmd.Flags().StringSliceVar(&stubModels, "models", []string{deploy.Defaults()[deploy.VLM].Model}, "Model names to report")

	for _, c := range []*cobra.Command{vllmArgsCmd, manifestCmd, launchCmd} {
		c.Flags().StringVarP(&deployFile, "file", "f", "", "YAML file overriding the built-in endpoint specs")
	}

	root.AddCommand(vllmArgsCmd, manifestCmd, launchCmd, smokeCmd, stubCmd)
}

func lookupSpec(name string) (deploy.EndpointSpec, error) {
	specs := deploy.Defaults()
	if deployFile != "" {
		var err error
		if specs, err = deploy.LoadFile(deployFile); err != nil {
			return deploy.EndpointSpec{}, err
		}
	}

	spec, ok := specs[name]
	if !ok {
		return deploy.EndpointSpec{}, fmt.Errorf("unknown endpoint %q (available: %s)", name, strings.Join(deploy.Names(specs), ", "))
	}
	return spec, nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	spec, err := lookupSpec(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// A failed health wait cancels gctx, which kills the engine
	g, gctx := errgroup.WithContext(ctx)

	// Engine output goes to stderr; stdout stays clean
	proc, err := deploy.Launch(gctx, spec, os.Stderr)
	if err != nil {
		return err
	}

	client := openai.NewClient(llm.WithBaseURL(fmt.Sprintf("http://127.0.0.1:%d/v1", spec.Port)), llm.WithTimeout(10*time.Second))
	defer client.Close()

	g.Go(proc.Wait)
	g.Go(func() error {
		if err := deploy.WaitHealthy(gctx, client, spec.StartupTimeout); err != nil {
			return err
		}
		klog.FromContext(ctx).Info("Endpoint ready", "endpoint", spec.Name, "pid", proc.PID(), "url", client.BaseURL())
		return nil
	})
	return cleanExit(ctx, g.Wait())
}

func runSmoke(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	specs := deploy.Defaults()
	runner := smoke.NewRunner(smoke.WithHeaders(cfg.ProxyHeaders()))
	results := runner.Run(cmd.Context(), []smoke.Target{
		{Name: deploy.Coder, URL: cfg.CoderURL, Model: specs[deploy.Coder].Model, Stream: true},
		{Name: deploy.VLM, URL: cfg.VLMURL, Model: specs[deploy.VLM].Model},
	})

	fmt.Fprint(cmd.OutOrStdout(), smoke.Render(results, styles.Default()))
	if smoke.Failed(results) {
		return fmt.Errorf("smoke checks failed")
	}
	return nil
}
