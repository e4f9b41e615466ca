package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// orphaned children after the process itself is killed.
const waitDelay = 2 * time.Second

// Invocation describes a single local process execution.
// Dir is always explicit; an empty Dir runs in the invoker's BaseDir,
// never in whatever the process cwd happens to be.
type Invocation struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

func (inv Invocation) String() string {
	return strings.TrimSpace(inv.Name + " " + strings.Join(inv.Args, " "))
}

// Result holds the outcome of a command. Success is false for a non-zero
// exit or a timeout; neither is reported as an error.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
}

// Invoker runs local processes. Tests can substitute a fake.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// Executor runs a shell command on a named host.
type Executor interface {
	Run(ctx context.Context, host, command string) (*Result, error)
}

// ExecInvoker runs processes with os/exec.
type ExecInvoker struct {
	// BaseDir is used when an Invocation carries no Dir.
	BaseDir string
	// BaseEnv replaces os.Environ() as the inherited environment when set.
	BaseEnv []string
}

// Invoke runs inv and captures stdout and stderr separately. Only a failure
// to start the process is returned as an error.
func (e *ExecInvoker) Invoke(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	if cmd.Dir == "" {
		cmd.Dir = e.BaseDir
	}
	cmd.Env = e.buildEnv(inv.Env)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code, signaled, err := exitStatus(cmd.Run())
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", inv.Name, err)
	}

	res := &Result{
		Success:  code == 0,
		ExitCode: code,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.Success = false
		res.Stderr = strings.TrimSpace(res.Stderr + "\n" + fmt.Sprintf("command timed out after %s", inv.Timeout))
	case signaled:
		res.Stderr = strings.TrimSpace(res.Stderr + "\nkilled by signal")
	}
	return res, nil
}

// buildEnv returns the inherited environment with extra appended.
// Later entries win, so extra overrides inherited values.
func (e *ExecInvoker) buildEnv(extra map[string]string) []string {
	base := e.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	if len(extra) == 0 {
		return base
	}
	result := make([]string, len(base), len(base)+len(extra))
	copy(result, base)
	for k, v := range extra {
		result = append(result, k+"="+v)
	}
	return result
}
