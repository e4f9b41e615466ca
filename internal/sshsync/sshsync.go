// Package sshsync wraps the sshsync CLI for fleet-wide status, bulk
// execution and file transfer.
package sshsync

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/dispatch"
)

const (
	DefaultBinary = "sshsync"

	listTimeout     = 30 * time.Second
	execGrace       = 30 * time.Second
	transferTimeout = 300 * time.Second
)

// GroupSource supplies group membership for filtering host listings.
type GroupSource interface {
	Groups() (map[string][]string, error)
}

// Client runs sshsync subcommands through an Invoker.
type Client struct {
	Invoker dispatch.Invoker
	// Binary defaults to "sshsync".
	Binary  string
	WorkDir string
	Groups  GroupSource
	// KnownHosts, when set, restricts Pull to these aliases.
	KnownHosts func() ([]string, error)
	// DryRun makes every mutating call return the command it would run.
	DryRun bool
	// AllowDangerous skips the destructive-command check.
	AllowDangerous bool
}

// HostStatus is one row of `sshsync ls --with-status`.
type HostStatus struct {
	Host   string `json:"host"`
	Online bool   `json:"online"`
	Status string `json:"status"`
}

// Summary counts online and offline hosts.
type Summary struct {
	Total           int     `json:"total"`
	Online          int     `json:"online"`
	Offline         int     `json:"offline"`
	AvailabilityPct float64 `json:"availability_pct"`
}

// Listing is the parsed result of ListHosts.
type Listing struct {
	Hosts   []HostStatus `json:"hosts"`
	Summary Summary      `json:"summary"`
}

// Outcome is the result of a bulk command or transfer. When DryRun is set
// nothing was executed and Command shows what would have run.
type Outcome struct {
	Command string `json:"command"`
	DryRun  bool   `json:"dry_run,omitempty"`
	Success bool   `json:"success"`
	Stdout  string `json:"stdout,omitempty"`
	Stderr  string `json:"stderr,omitempty"`
}

// ListHosts returns host reachability as reported by sshsync, restricted to
// members of group when group is non-empty.
func (c *Client) ListHosts(ctx context.Context, group string) (*Listing, error) {
	res, err := c.invoke(ctx, []string{"ls", "--with-status"}, listTimeout)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("sshsync ls failed: %s", strings.TrimSpace(res.Stderr))
	}

	hosts := ParseStatus(res.Stdout)
	if group != "" {
		members, err := c.groupMembers(group)
		if err != nil {
			return nil, err
		}
		in := make(map[string]bool, len(members))
		for _, h := range members {
			in[h] = true
		}
		filtered := hosts[:0]
		for _, h := range hosts {
			if in[h.Host] {
				filtered = append(filtered, h)
			}
		}
		hosts = filtered
	}
	return &Listing{Hosts: hosts, Summary: Summarize(hosts)}, nil
}

// ExecuteOnAll runs command on every configured host.
func (c *Client) ExecuteOnAll(ctx context.Context, command string, timeout time.Duration) (*Outcome, error) {
	cmd, err := c.checkExec(command, timeout)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, []string{"all", timeoutFlag(timeout), cmd}, timeout+execGrace)
}

// ExecuteOnGroup runs command on every member of group.
func (c *Client) ExecuteOnGroup(ctx context.Context, group, command string, timeout time.Duration) (*Outcome, error) {
	group, err := config.ValidateGroup(group, c.groupNames())
	if err != nil {
		return nil, err
	}
	cmd, err := c.checkExec(command, timeout)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, []string{"group", timeoutFlag(timeout), group, cmd}, timeout+execGrace)
}

// PushRequest copies a local path to remote hosts. Hosts takes precedence
// over Group; with neither set the push goes to all hosts.
type PushRequest struct {
	Local   string
	Remote  string
	Hosts   []string
	Group   string
	Recurse bool
}

// Push copies files to hosts.
func (c *Client) Push(ctx context.Context, req PushRequest) (*Outcome, error) {
	if _, err := os.Stat(req.Local); err != nil {
		return nil, fmt.Errorf("%w: local path %s: %v", config.ErrValidation, req.Local, err)
	}
	if strings.TrimSpace(req.Remote) == "" {
		return nil, fmt.Errorf("%w: remote path cannot be empty", config.ErrValidation)
	}

	args := []string{"push"}
	switch {
	case len(req.Hosts) > 0:
		for _, h := range req.Hosts {
			args = append(args, "--host", h)
		}
	case req.Group != "":
		args = append(args, "--group", req.Group)
	default:
		args = append(args, "--all")
	}
	if req.Recurse {
		args = append(args, "--recurse")
	}
	args = append(args, req.Local, req.Remote)
	return c.run(ctx, args, transferTimeout)
}

// PullRequest copies a remote path from one host.
type PullRequest struct {
	Host    string
	Remote  string
	Local   string
	Recurse bool
}

// Pull copies files from a host.
func (c *Client) Pull(ctx context.Context, req PullRequest) (*Outcome, error) {
	var known []string
	if c.KnownHosts != nil {
		var err error
		if known, err = c.KnownHosts(); err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
	}
	host, err := config.ValidateHost(req.Host, known)
	if err != nil {
		return nil, err
	}

	args := []string{"pull", "--host", host}
	if req.Recurse {
		args = append(args, "--recurse")
	}
	args = append(args, req.Remote, req.Local)
	return c.run(ctx, args, transferTimeout)
}

func (c *Client) checkExec(command string, timeout time.Duration) (string, error) {
	cmd, err := config.ValidateCommand(command, c.AllowDangerous)
	if err != nil {
		return "", err
	}
	if err := config.ValidateTimeout(timeout); err != nil {
		return "", err
	}
	return cmd, nil
}

func (c *Client) run(ctx context.Context, args []string, timeout time.Duration) (*Outcome, error) {
	inv := c.invocation(args, timeout)
	if c.DryRun {
		return &Outcome{Command: inv.String(), DryRun: true}, nil
	}
	res, err := c.invoker().Invoke(ctx, inv)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Command: inv.String(),
		Success: res.Success,
		Stdout:  res.Stdout,
		Stderr:  res.Stderr,
	}, nil
}

func (c *Client) invoke(ctx context.Context, args []string, timeout time.Duration) (*dispatch.Result, error) {
	return c.invoker().Invoke(ctx, c.invocation(args, timeout))
}

func (c *Client) invocation(args []string, timeout time.Duration) dispatch.Invocation {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	return dispatch.Invocation{Name: bin, Args: args, Dir: c.WorkDir, Timeout: timeout}
}

func (c *Client) invoker() dispatch.Invoker {
	if c.Invoker == nil {
		return &dispatch.ExecInvoker{}
	}
	return c.Invoker
}

func (c *Client) groupMembers(group string) ([]string, error) {
	if c.Groups == nil {
		return nil, nil
	}
	groups, err := c.Groups.Groups()
	if err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}
	return groups[group], nil
}

// groupNames returns the configured group names, or nil when they cannot
// be loaded, which disables the membership check.
func (c *Client) groupNames() []string {
	if c.Groups == nil {
		return nil
	}
	groups, err := c.Groups.Groups()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func timeoutFlag(d time.Duration) string {
	return fmt.Sprintf("--timeout=%d", int(d.Seconds()))
}
