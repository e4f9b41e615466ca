package sshsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/dispatch"
)

type fakeInvoker struct {
	calls []dispatch.Invocation
	res   *dispatch.Result
	err   error
}

func (f *fakeInvoker) Invoke(ctx context.Context, inv dispatch.Invocation) (*dispatch.Result, error) {
	f.calls = append(f.calls, inv)
	if f.err != nil {
		return nil, f.err
	}
	if f.res != nil {
		return f.res, nil
	}
	return &dispatch.Result{Success: true}, nil
}

type staticGroups map[string][]string

func (s staticGroups) Groups() (map[string][]string, error) { return s, nil }

const lsOutput = `Host          Status
-----------   -------
web-01        online
web-02        offline
db-01         reachable
cache-01      ✓
bogus
`

func TestParseStatus(t *testing.T) {
	hosts := ParseStatus(lsOutput)
	want := []HostStatus{
		{Host: "web-01", Online: true, Status: "online"},
		{Host: "web-02", Online: false, Status: "offline"},
		{Host: "db-01", Online: true, Status: "reachable"},
		{Host: "cache-01", Online: true, Status: "✓"},
	}
	assert.Equal(t, want, hosts)
}

func TestParseStatus_HostNamedLikeHeader(t *testing.T) {
	hosts := ParseStatus("Host Status\n------\nHostA-web online\nweb-02 offline")
	want := []HostStatus{
		{Host: "HostA-web", Online: true, Status: "online"},
		{Host: "web-02", Online: false, Status: "offline"},
	}
	assert.Equal(t, want, hosts)
}

func TestSummarize(t *testing.T) {
	s := Summarize(ParseStatus(lsOutput))
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.Online)
	assert.Equal(t, 1, s.Offline)
	assert.InDelta(t, 75.0, s.AvailabilityPct, 1e-9)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestListHosts_FiltersByGroup(t *testing.T) {
	inv := &fakeInvoker{res: &dispatch.Result{Success: true, Stdout: lsOutput}}
	c := &Client{Invoker: inv, WorkDir: "/work", Groups: staticGroups{"web": {"web-01", "web-02"}}}

	l, err := c.ListHosts(context.Background(), "web")
	require.NoError(t, err)

	require.Len(t, l.Hosts, 2)
	assert.Equal(t, "web-01", l.Hosts[0].Host)
	assert.Equal(t, "web-02", l.Hosts[1].Host)
	assert.InDelta(t, 50.0, l.Summary.AvailabilityPct, 1e-9)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, "sshsync ls --with-status", inv.calls[0].String())
	assert.Equal(t, "/work", inv.calls[0].Dir)
}

func TestListHosts_CommandFails(t *testing.T) {
	inv := &fakeInvoker{res: &dispatch.Result{Success: false, ExitCode: 1, Stderr: "config not found\n"}}
	c := &Client{Invoker: inv}

	_, err := c.ListHosts(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config not found")
}

func TestListHosts_LaunchError(t *testing.T) {
	c := &Client{Invoker: &fakeInvoker{err: errors.New("exec: sshsync not found")}}
	_, err := c.ListHosts(context.Background(), "")
	assert.Error(t, err)
}

func TestExecuteOnAll(t *testing.T) {
	inv := &fakeInvoker{res: &dispatch.Result{Success: true, Stdout: "ok"}}
	c := &Client{Invoker: inv}

	out, err := c.ExecuteOnAll(context.Background(), " uptime ", 15*time.Second)
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "ok", out.Stdout)
	require.Len(t, inv.calls, 1)
	assert.Equal(t, []string{"all", "--timeout=15", "uptime"}, inv.calls[0].Args)
	assert.Equal(t, 45*time.Second, inv.calls[0].Timeout)
}

func TestExecuteOnGroup(t *testing.T) {
	inv := &fakeInvoker{}
	c := &Client{Invoker: inv, Groups: staticGroups{"production": {"web-01"}}}

	_, err := c.ExecuteOnGroup(context.Background(), "Production", "df -h", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"group", "--timeout=10", "production", "df -h"}, inv.calls[0].Args)

	_, err = c.ExecuteOnGroup(context.Background(), "staging", "df -h", 10*time.Second)
	assert.True(t, errors.Is(err, config.ErrValidation))
	assert.Len(t, inv.calls, 1)
}

func TestExecute_Validation(t *testing.T) {
	inv := &fakeInvoker{}
	c := &Client{Invoker: inv}

	_, err := c.ExecuteOnAll(context.Background(), "rm -rf /", 10*time.Second)
	assert.True(t, errors.Is(err, config.ErrValidation), "got %v", err)

	_, err = c.ExecuteOnAll(context.Background(), "uptime", 700*time.Second)
	assert.True(t, errors.Is(err, config.ErrValidation), "got %v", err)

	assert.Empty(t, inv.calls)

	c.AllowDangerous = true
	_, err = c.ExecuteOnAll(context.Background(), "rm -rf /", 10*time.Second)
	assert.NoError(t, err)
}

func TestExecute_DryRun(t *testing.T) {
	inv := &fakeInvoker{}
	c := &Client{Invoker: inv, DryRun: true}

	out, err := c.ExecuteOnAll(context.Background(), "uptime", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.Equal(t, "sshsync all --timeout=10 uptime", out.Command)
	assert.Empty(t, inv.calls)
}

func TestPush_Targets(t *testing.T) {
	local := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.Mkdir(local, 0755))

	cases := []struct {
		name string
		req  PushRequest
		want []string
	}{
		{"hosts", PushRequest{Local: local, Remote: "/srv", Hosts: []string{"a", "b"}, Group: "ignored"},
			[]string{"push", "--host", "a", "--host", "b", local, "/srv"}},
		{"group", PushRequest{Local: local, Remote: "/srv", Group: "web", Recurse: true},
			[]string{"push", "--group", "web", "--recurse", local, "/srv"}},
		{"all", PushRequest{Local: local, Remote: "/srv"},
			[]string{"push", "--all", local, "/srv"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &fakeInvoker{}
			c := &Client{Invoker: inv}
			_, err := c.Push(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, inv.calls[0].Args)
			assert.Equal(t, 300*time.Second, inv.calls[0].Timeout)
		})
	}
}

func TestPush_MissingLocal(t *testing.T) {
	c := &Client{Invoker: &fakeInvoker{}}
	_, err := c.Push(context.Background(), PushRequest{Local: filepath.Join(t.TempDir(), "nope"), Remote: "/srv"})
	assert.True(t, errors.Is(err, config.ErrValidation), "got %v", err)
}

func TestPull(t *testing.T) {
	inv := &fakeInvoker{}
	c := &Client{Invoker: inv, KnownHosts: func() ([]string, error) { return []string{"web-01"}, nil }}

	_, err := c.Pull(context.Background(), PullRequest{Host: "web-01", Remote: "/var/log/nginx", Local: "./logs", Recurse: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"pull", "--host", "web-01", "--recurse", "/var/log/nginx", "./logs"}, inv.calls[0].Args)

	_, err = c.Pull(context.Background(), PullRequest{Host: "db-09", Remote: "/x", Local: "."})
	assert.True(t, errors.Is(err, config.ErrValidation), "got %v", err)
	assert.Len(t, inv.calls, 1)
}
