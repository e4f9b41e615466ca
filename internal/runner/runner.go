// Package runner executes saved distribution plans and rolling workflows
// against fleet hosts.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/fleet/internal/dispatch"
	"github.com/jorge-barreto/fleet/internal/state"
	"github.com/jorge-barreto/fleet/internal/ux"
)

// ErrRunFailed is returned when at least one host did not finish cleanly.
var ErrRunFailed = errors.New("run failed")

const defaultConcurrency = 8

// Runner drives plan execution and file workflows. Hosts run
// concurrently; each host's tasks run in order.
type Runner struct {
	Executor dispatch.Executor
	// Transfer copies files for Backup and Sync.
	Transfer Transferrer
	// PlanDir receives run records, timing and per-host logs.
	PlanDir     string
	Concurrency int
	// ContinueOnError keeps running a host's remaining tasks after one fails.
	ContinueOnError bool
	Logger          *zap.Logger
	// Sleep waits between rolling steps; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Options narrows a plan run.
type Options struct {
	// Hosts, when non-empty, restricts the run to these plan hosts.
	Hosts []string
}

// RunPlan executes every assignment in p and records the outcome under
// PlanDir. The returned Run is non-nil whenever execution started.
func (r *Runner) RunPlan(ctx context.Context, p *state.Plan, opts Options) (*state.Run, error) {
	hosts := selectHosts(p.Hosts, opts.Hosts)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("plan %s: no hosts to run", p.ID)
	}
	if err := state.EnsureDir(r.PlanDir); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	run := state.NewRun(runID, p.ID, hosts)
	timing := &state.Timing{}
	log := r.logger().With(zap.String("run_id", runID), zap.String("plan_id", p.ID))
	log.Info("starting plan run", zap.Int("hosts", len(hosts)), zap.Int("tasks", p.TaskCount()))

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(r.concurrency())
	for _, host := range hosts {
		g.Go(func() error {
			r.runHost(ctx, log, run, timing, runID, host, p)
			return nil
		})
	}
	_ = g.Wait()

	status := run.Finish()
	if err := run.Save(r.PlanDir); err != nil {
		ux.Warn("failed to save run record: %v", err)
	}
	if err := timing.Flush(state.TimingPath(r.PlanDir, runID)); err != nil {
		ux.Warn("failed to flush timing: %v", err)
	}

	failed := run.FailedHosts()
	ux.RunSummary(status, len(hosts), len(failed), time.Since(start))
	log.Info("plan run finished", zap.String("status", status), zap.Strings("failed", failed))

	switch status {
	case state.StatusCompleted:
		return run, nil
	case state.StatusInterrupted:
		if ctx.Err() != nil {
			return run, ctx.Err()
		}
		return run, fmt.Errorf("%w: interrupted", ErrRunFailed)
	default:
		ux.RerunHint(p.ID, failed)
		return run, fmt.Errorf("%w: %s", ErrRunFailed, strings.Join(failed, ", "))
	}
}

func (r *Runner) runHost(ctx context.Context, log *zap.Logger, run *state.Run, timing *state.Timing, runID, host string, p *state.Plan) {
	tasks := p.Assignments[host]
	ux.HostStart(host, len(tasks))
	timing.AddStart(host)
	defer timing.AddEnd(host)

	status := state.StatusCompleted
	for i, task := range tasks {
		if ctx.Err() != nil {
			status = state.StatusInterrupted
			break
		}
		command := dispatch.ExpandVars(task.Command, dispatch.TaskVars(host, p.Group, i))

		t0 := time.Now()
		res, err := r.Executor.Run(ctx, host, command)
		took := time.Since(t0)

		tr := state.TaskRun{Command: command, Duration: state.FormatDuration(took)}
		switch {
		case err != nil:
			tr.Error = err.Error()
		default:
			tr.Success = res.Success
			tr.ExitCode = res.ExitCode
			if !res.Success {
				tr.Error = failureReason(res)
			}
		}
		run.RecordTask(host, tr)
		r.appendLog(runID, host, command, res, err)

		if tr.Success {
			ux.TaskComplete(host, command, took)
			continue
		}
		ux.TaskFail(host, command, tr.Error)
		log.Warn("task failed", zap.String("host", host), zap.String("command", command), zap.String("error", tr.Error))
		if ctx.Err() != nil {
			status = state.StatusInterrupted
			break
		}
		status = state.StatusFailed
		if !r.ContinueOnError {
			if rest := len(tasks) - i - 1; rest > 0 {
				ux.HostSkip(host, fmt.Sprintf("%d remaining tasks after failure", rest))
			}
			break
		}
	}
	run.SetHostStatus(host, status)
}

func (r *Runner) appendLog(runID, host, command string, res *dispatch.Result, err error) {
	var b strings.Builder
	fmt.Fprintf(&b, "$ %s\n", command)
	if err != nil {
		fmt.Fprintf(&b, "error: %v\n", err)
	} else {
		b.WriteString(res.Stdout)
		if res.Stderr != "" {
			fmt.Fprintf(&b, "[stderr]\n%s", res.Stderr)
		}
		fmt.Fprintf(&b, "[exit %d]\n", res.ExitCode)
	}
	if werr := state.AppendHostLog(r.PlanDir, runID, host, b.String()); werr != nil {
		r.logger().Warn("writing host log", zap.String("host", host), zap.Error(werr))
	}
}

func failureReason(res *dispatch.Result) string {
	if msg := lastLine(res.Stderr); msg != "" {
		return msg
	}
	return fmt.Sprintf("exit code %d", res.ExitCode)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// selectHosts keeps the plan's host order, filtered to only when set.
func selectHosts(planHosts, only []string) []string {
	if len(only) == 0 {
		return planHosts
	}
	want := make(map[string]bool, len(only))
	for _, h := range only {
		want[h] = true
	}
	var out []string
	for _, h := range planHosts {
		if want[h] {
			out = append(out, h)
		}
	}
	return out
}

func (r *Runner) concurrency() int {
	if r.Concurrency <= 0 {
		return defaultConcurrency
	}
	return r.Concurrency
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
