// Package doctor diagnoses why fleet hosts cannot be reached or why a plan
// run failed.
package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/fleet/internal/dispatch"
	"github.com/jorge-barreto/fleet/internal/state"
	"github.com/jorge-barreto/fleet/internal/tailscale"
	"github.com/jorge-barreto/fleet/internal/ux"
)

const (
	maxLogLines = 200
	echoToken   = "fleet-doctor-ok"
	pingTimeout = 5 * time.Second
)

// Tailnet is the subset of the tailscale client the doctor needs.
type Tailnet interface {
	Status(ctx context.Context) (*tailscale.Status, error)
	Ping(ctx context.Context, host string, timeout time.Duration) (*tailscale.PingResult, error)
}

// Check is one diagnostic step.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// HostReport collects the checks run against one host.
type HostReport struct {
	Host         string        `json:"host"`
	Checks       []Check       `json:"checks"`
	Latency      time.Duration `json:"latency,omitempty"`
	LatencyClass string        `json:"latency_class,omitempty"`
	Advice       string        `json:"advice,omitempty"`
}

// Healthy reports whether every check passed.
func (r HostReport) Healthy() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return len(r.Checks) > 0
}

// Doctor runs connectivity checks.
type Doctor struct {
	Tailnet     Tailnet
	Executor    dispatch.Executor
	Concurrency int
	Logger      *zap.Logger
	// Binaries are checked on PATH by Environment.
	Binaries []string
}

// ClassifyLatency buckets a round-trip time.
func ClassifyLatency(d time.Duration) (string, string) {
	ms := d.Milliseconds()
	switch {
	case ms < 50:
		return "excellent", "Ideal for interactive tasks"
	case ms < 100:
		return "good", "Suitable for most operations"
	case ms < 200:
		return "fair", "May impact interactive workflows"
	default:
		return "poor", "Investigate network issues"
	}
}

// Environment checks that each required binary is installed.
func (d *Doctor) Environment() []Check {
	var checks []Check
	for _, bin := range d.Binaries {
		c := Check{Name: "binary " + bin, OK: true}
		if err := dispatch.Preflight(bin); err != nil {
			c.OK = false
			c.Detail = "not found in PATH"
		}
		checks = append(checks, c)
	}
	return checks
}

// Diagnose checks every host concurrently, returning reports in host order.
func (d *Doctor) Diagnose(ctx context.Context, hosts []string) []HostReport {
	var st *tailscale.Status
	var stErr error
	if d.Tailnet != nil {
		st, stErr = d.Tailnet.Status(ctx)
		if stErr != nil {
			d.logger().Warn("tailscale status unavailable", zap.Error(stErr))
		}
	}

	reports := make([]HostReport, len(hosts))
	var g errgroup.Group
	limit := d.Concurrency
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)
	for i, host := range hosts {
		g.Go(func() error {
			reports[i] = d.diagnoseHost(ctx, host, st, stErr)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (d *Doctor) diagnoseHost(ctx context.Context, host string, st *tailscale.Status, stErr error) HostReport {
	rep := HostReport{Host: host}

	if d.Tailnet != nil {
		if stErr != nil {
			rep.Checks = append(rep.Checks, Check{Name: "tailscale", Detail: stErr.Error()})
			rep.Advice = "Start tailscale (tailscale up) or check that the daemon is running."
			return rep
		}
		if !d.checkTailnet(ctx, &rep, st) {
			return rep
		}
	}

	if d.Executor != nil {
		c := Check{Name: "ssh"}
		res, err := d.Executor.Run(ctx, host, "echo "+echoToken)
		switch {
		case err != nil:
			c.Detail = err.Error()
			rep.Advice = "Add the host to ~/.ssh/config or sshsync groups."
		case !res.Success || !strings.Contains(res.Stdout, echoToken):
			c.Detail = strings.TrimSpace(res.Stderr)
			if c.Detail == "" {
				c.Detail = fmt.Sprintf("exit code %d", res.ExitCode)
			}
			rep.Advice = "Check ssh keys and that BatchMode login works: ssh " + host + " true"
		default:
			c.OK = true
		}
		rep.Checks = append(rep.Checks, c)
	}
	return rep
}

// checkTailnet records the peer and ping checks. It returns false when the
// host is known to be unreachable and ssh should not be attempted.
func (d *Doctor) checkTailnet(ctx context.Context, rep *HostReport, st *tailscale.Status) bool {
	peer, err := tailscale.FindPeer(st.Peers, rep.Host)
	if err != nil {
		rep.Checks = append(rep.Checks, Check{Name: "tailnet peer", Detail: "not found in tailnet"})
		return true
	}
	if !peer.Online {
		rep.Checks = append(rep.Checks, Check{Name: "tailnet peer", Detail: peer.Hostname + " is offline"})
		rep.Advice = fmt.Sprintf("Host %s is offline in Tailscale; power it on or re-authenticate it.", rep.Host)
		return false
	}
	rep.Checks = append(rep.Checks, Check{Name: "tailnet peer", OK: true, Detail: peer.IP})

	pr, err := d.Tailnet.Ping(ctx, rep.Host, pingTimeout)
	switch {
	case err != nil:
		rep.Checks = append(rep.Checks, Check{Name: "tailscale ping", Detail: err.Error()})
	case !pr.Reachable:
		rep.Checks = append(rep.Checks, Check{Name: "tailscale ping", Detail: "no pong"})
		rep.Advice = fmt.Sprintf("Cannot ping %s via Tailscale; check ACLs and firewall.", rep.Host)
		return false
	default:
		rep.Checks = append(rep.Checks, Check{Name: "tailscale ping", OK: true})
		if pr.Latency > 0 {
			rep.Latency = pr.Latency
			rep.LatencyClass, _ = ClassifyLatency(pr.Latency)
		}
	}
	return true
}

func (d *Doctor) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Render prints environment checks and host reports.
func Render(env []Check, reports []HostReport) {
	if len(env) > 0 {
		fmt.Printf("%sEnvironment:%s\n", ux.Bold, ux.Reset)
		for _, c := range env {
			printCheck("  ", c)
		}
		fmt.Println()
	}
	healthy := 0
	for _, r := range reports {
		color := ux.Red
		if r.Healthy() {
			color = ux.Green
			healthy++
		}
		line := fmt.Sprintf("%s%s%s", color, r.Host, ux.Reset)
		if r.LatencyClass != "" {
			_, desc := ClassifyLatency(r.Latency)
			line += fmt.Sprintf("  %s%dms %s: %s%s", ux.Dim, r.Latency.Milliseconds(), r.LatencyClass, desc, ux.Reset)
		}
		fmt.Println(line)
		for _, c := range r.Checks {
			printCheck("    ", c)
		}
		if r.Advice != "" {
			fmt.Printf("    %shint:%s %s\n", ux.Yellow, ux.Reset, r.Advice)
		}
	}
	if len(reports) > 0 {
		fmt.Printf("\n%s%d/%d hosts healthy%s\n", ux.Bold, healthy, len(reports), ux.Reset)
	}
}

func printCheck(indent string, c Check) {
	mark := ux.Green + "✓" + ux.Reset
	if !c.OK {
		mark = ux.Red + "✗" + ux.Reset
	}
	detail := ""
	if c.Detail != "" {
		detail = fmt.Sprintf(" %s(%s)%s", ux.Dim, c.Detail, ux.Reset)
	}
	fmt.Printf("%s%s %s%s\n", indent, mark, c.Name, detail)
}

// RunFailures prints the failed tasks of a run together with the tail of
// each failed host's log.
func RunFailures(planDir string, run *state.Run) {
	failed := run.FailedHosts()
	if len(failed) == 0 {
		fmt.Printf("Run %s has no failed hosts.\n", run.ID)
		return
	}
	fmt.Printf("\n%s%s══ Doctor: run %s, %d failed hosts ══%s\n", ux.Bold, ux.Cyan, run.ID, len(failed), ux.Reset)
	for _, h := range failed {
		fmt.Printf("\n%s%s%s\n", ux.Bold, h, ux.Reset)
		for _, t := range run.Hosts[h].Tasks {
			if !t.Success {
				fmt.Printf("  %s✗ %s%s: %s\n", ux.Red, t.Command, ux.Reset, t.Error)
			}
		}
		fmt.Printf("%s%s%s\n", ux.Dim, gatherLog(planDir, run.ID, h), ux.Reset)
	}
	fmt.Println()
	ux.RerunHint(run.PlanID, failed)
}

func gatherLog(planDir, runID, host string) string {
	data, err := os.ReadFile(state.LogPath(planDir, runID, host))
	if err != nil {
		return "(no log file found)"
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
		return fmt.Sprintf("... (truncated to last %d lines)\n%s", maxLogLines, strings.Join(lines, "\n"))
	}
	return strings.Join(lines, "\n")
}
