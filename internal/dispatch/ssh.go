package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownHost is returned when a host has no entry in the known host set.
var ErrUnknownHost = errors.New("unknown host")

// DefaultTimeout bounds a single remote command.
const DefaultTimeout = 10 * time.Second

// sshGrace is added on top of ConnectTimeout so ssh can report its own
// connect failure before the process is killed.
const sshGrace = 5 * time.Second

// SSH runs commands on remote hosts through the ssh binary.
type SSH struct {
	Invoker Invoker
	// Binary defaults to "ssh".
	Binary string
	// Timeout bounds each command; DefaultTimeout when zero.
	Timeout time.Duration
	// KnownHosts, when non-nil, restricts Run to these aliases. An empty
	// list means no hosts are declared and disables the check.
	KnownHosts func() ([]string, error)
	// WorkDir is the local working directory for the ssh process.
	WorkDir string
}

// Run executes command on host. Command failures and timeouts are reported
// through Result; an error means the command could not be issued at all.
func (s *SSH) Run(ctx context.Context, host, command string) (*Result, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("ssh: empty host")
	}
	if s.KnownHosts != nil {
		known, err := s.KnownHosts()
		if err != nil {
			return nil, fmt.Errorf("ssh: loading known hosts: %w", err)
		}
		if len(known) > 0 && !containsFold(known, host) {
			return nil, fmt.Errorf("ssh: %w: %s", ErrUnknownHost, host)
		}
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	bin := s.Binary
	if bin == "" {
		bin = "ssh"
	}

	inv := Invocation{
		Name: bin,
		Args: []string{
			"-o", fmt.Sprintf("ConnectTimeout=%d", int(timeout.Seconds())),
			"-o", "BatchMode=yes",
			host, command,
		},
		Dir:     s.WorkDir,
		Timeout: timeout + sshGrace,
	}
	return s.invoker().Invoke(ctx, inv)
}

func (s *SSH) invoker() Invoker {
	if s.Invoker == nil {
		return &ExecInvoker{}
	}
	return s.Invoker
}

// Local runs commands on this machine through sh, ignoring the host name.
type Local struct {
	Invoker Invoker
	Timeout time.Duration
	WorkDir string
}

// Run executes command with sh -c.
func (l *Local) Run(ctx context.Context, host, command string) (*Result, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	inv := Invocation{
		Name:    "sh",
		Args:    []string{"-c", command},
		Dir:     l.WorkDir,
		Env:     map[string]string{"FLEET_HOST": host},
		Timeout: timeout,
	}
	if l.Invoker == nil {
		return (&ExecInvoker{}).Invoke(ctx, inv)
	}
	return l.Invoker.Invoke(ctx, inv)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
