package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/state"
	"github.com/jorge-barreto/fleet/internal/ux"
)

const (
	DefaultRestartWait = 30 * time.Second
	DefaultSettleDelay = 5 * time.Second
)

var serviceRe = regexp.MustCompile(`^[A-Za-z0-9@._-]+$`)

// RestartOptions configures a rolling restart.
type RestartOptions struct {
	Service string
	// Wait is the pause between hosts; DefaultRestartWait when zero.
	Wait time.Duration
	// Settle is the pause between restart and health check;
	// DefaultSettleDelay when zero.
	Settle time.Duration
	// StopOnFailure aborts the remaining hosts after the first failure.
	StopOnFailure bool
}

// HostRestart is the outcome of restarting one host.
type HostRestart struct {
	Host     string `json:"host"`
	Status   string `json:"status"`
	Healthy  bool   `json:"healthy"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// RestartReport summarizes a rolling restart.
type RestartReport struct {
	Group     string        `json:"group"`
	Service   string        `json:"service"`
	Hosts     []HostRestart `json:"hosts"`
	Restarted int           `json:"restarted"`
	Failed    int           `json:"failed"`
	Duration  string        `json:"duration"`
}

// RestartCommand restarts service with systemd, falling back to SysV init.
func RestartCommand(service string) string {
	return fmt.Sprintf("sudo systemctl restart %s || sudo service %s restart", service, service)
}

// HealthCommand checks that service is running.
func HealthCommand(service string) string {
	return fmt.Sprintf("sudo systemctl is-active %s || sudo service %s status", service, service)
}

// RollingRestart restarts a service on hosts one at a time, health-checking
// each before moving on.
func (r *Runner) RollingRestart(ctx context.Context, group string, hosts []string, opts RestartOptions) (*RestartReport, error) {
	if !serviceRe.MatchString(opts.Service) {
		return nil, fmt.Errorf("%w: invalid service name %q", config.ErrValidation, opts.Service)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("group %s has no hosts", group)
	}
	wait := opts.Wait
	if wait <= 0 {
		wait = DefaultRestartWait
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	log := r.logger().With(zap.String("group", group), zap.String("service", opts.Service))
	ux.StepHeader(fmt.Sprintf("Rolling restart of %s on %s (%d hosts)", opts.Service, group, len(hosts)))

	rep := &RestartReport{Group: group, Service: opts.Service}
	start := time.Now()
loop:
	for i, host := range hosts {
		if ctx.Err() != nil {
			rep.Hosts = append(rep.Hosts, HostRestart{Host: host, Status: state.StatusInterrupted})
			continue
		}
		t0 := time.Now()
		hr := r.restartHost(ctx, host, opts.Service, settle)
		took := time.Since(t0)
		hr.Duration = state.FormatDuration(took)
		rep.Hosts = append(rep.Hosts, hr)
		switch hr.Status {
		case state.StatusCompleted:
			rep.Restarted++
			ux.TaskComplete(host, "restart "+opts.Service, took)
			log.Info("restarted", zap.String("host", host))
		case state.StatusInterrupted:
			ux.HostSkip(host, "interrupted")
		default:
			rep.Failed++
			ux.TaskFail(host, "restart "+opts.Service, hr.Error)
			log.Warn("restart failed", zap.String("host", host), zap.String("error", hr.Error))
			if opts.StopOnFailure {
				for _, rest := range hosts[i+1:] {
					rep.Hosts = append(rep.Hosts, HostRestart{Host: rest, Status: state.StatusSkipped})
					ux.HostSkip(rest, "stopped after failure")
				}
				break loop
			}
		}

		if i < len(hosts)-1 {
			ux.Waiting(wait, hosts[i+1])
			_ = r.sleep(ctx, wait)
		}
	}
	d := time.Since(start)
	rep.Duration = state.FormatDuration(d)

	status := state.StatusCompleted
	if rep.Failed > 0 {
		status = state.StatusFailed
	} else if ctx.Err() != nil {
		status = state.StatusInterrupted
	}
	ux.RunSummary(status, len(hosts), rep.Failed, d)

	switch {
	case rep.Failed > 0:
		return rep, fmt.Errorf("%w: %d of %d hosts failed to restart", ErrRunFailed, rep.Failed, len(hosts))
	case ctx.Err() != nil:
		return rep, ctx.Err()
	}
	return rep, nil
}

func (r *Runner) restartHost(ctx context.Context, host, service string, settle time.Duration) HostRestart {
	hr := HostRestart{Host: host, Status: state.StatusFailed}

	res, err := r.Executor.Run(ctx, host, RestartCommand(service))
	if err != nil {
		hr.Error = err.Error()
		return hr
	}
	if !res.Success {
		hr.Error = "restart: " + failureReason(res)
		return hr
	}

	if err := r.sleep(ctx, settle); err != nil {
		hr.Status = state.StatusInterrupted
		hr.Error = err.Error()
		return hr
	}

	health, err := r.Executor.Run(ctx, host, HealthCommand(service))
	if err != nil {
		hr.Error = "health check: " + err.Error()
		return hr
	}
	hr.Output = strings.TrimSpace(health.Stdout)
	if !health.Success {
		hr.Error = "health check: " + failureReason(health)
		return hr
	}
	hr.Healthy = true
	hr.Status = state.StatusCompleted
	return hr
}
