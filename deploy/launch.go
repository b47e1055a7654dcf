package deploy

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// healthPollInterval is how often WaitHealthy re-probes a starting server
const healthPollInterval = 5 * time.Second

// HealthChecker is satisfied by llm.Client
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Process is a running model server
type Process struct {
	Spec EndpointSpec
	cmd  *exec.Cmd
}

// Launch starts the engine for spec. Engine output goes to logs, never stdout.
func Launch(ctx context.Context, spec EndpointSpec, logs io.Writer) (*Process, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	args := VLLMArgs(spec)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = logs
	cmd.Stderr = logs

	klog.FromContext(ctx).Info("Launching model server", "endpoint", spec.Name, "model", spec.Model, "port", spec.Port)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	return &Process{Spec: spec, cmd: cmd}, nil
}

// Wait blocks until the engine exits
func (p *Process) Wait() error {
	return p.cmd.Wait()
}

// PID of the engine process
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// WaitHealthy polls checker until it reports healthy or timeout elapses
func WaitHealthy(ctx context.Context, checker HealthChecker, timeout time.Duration) error {
	logger := klog.FromContext(ctx)
	attempts := 0

	err := wait.PollUntilContextTimeout(ctx, healthPollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		attempts++
		if err := checker.Health(ctx); err != nil {
			logger.V(1).Info("Server not ready yet", "attempt", attempts, "err", err)
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("server not healthy after %s (%d probes): %w", timeout, attempts, err)
	}
	logger.Info("Server healthy", "probes", attempts)
	return nil
}
