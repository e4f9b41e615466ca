package runner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/sshsync"
	"github.com/jorge-barreto/fleet/internal/state"
	"github.com/jorge-barreto/fleet/internal/ux"
)

// backupStamp names per-host backup directories: <dest>/<host>_<stamp>.
const backupStamp = "20060102_150405"

// Transferrer copies files between this machine and fleet hosts.
// *sshsync.Client satisfies it.
type Transferrer interface {
	Push(ctx context.Context, req sshsync.PushRequest) (*sshsync.Outcome, error)
	Pull(ctx context.Context, req sshsync.PullRequest) (*sshsync.Outcome, error)
}

// PathTransfer is the outcome of copying one path.
type PathTransfer struct {
	Path    string `json:"path"`
	Command string `json:"command,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HostBackup lists what was pulled from one host.
type HostBackup struct {
	Host    string         `json:"host"`
	Dest    string         `json:"dest"`
	Paths   []PathTransfer `json:"paths"`
	Success bool           `json:"success"`
}

// BackupReport summarizes a backup. A host counts as backed up only when
// every path was pulled.
type BackupReport struct {
	Hosts    []HostBackup `json:"hosts"`
	BackedUp int          `json:"backed_up_hosts"`
	Failed   int          `json:"failed_hosts"`
	Duration string       `json:"duration"`
}

// Backup pulls paths from every host into dest/<host>_<timestamp>.
// Hosts run concurrently; paths on one host are pulled in order.
func (r *Runner) Backup(ctx context.Context, hosts, paths []string, dest string) (*BackupReport, error) {
	if r.Transfer == nil {
		return nil, fmt.Errorf("backup: no transfer client configured")
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: no hosts to back up", config.ErrValidation)
	}
	paths, err := cleanPaths(paths)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dest) == "" {
		return nil, fmt.Errorf("%w: backup destination cannot be empty", config.ErrValidation)
	}

	stamp := time.Now().Format(backupStamp)
	log := r.logger().With(zap.String("dest", dest))
	ux.StepHeader(fmt.Sprintf("Backup of %d paths from %d hosts", len(paths), len(hosts)))

	start := time.Now()
	rep := &BackupReport{Hosts: make([]HostBackup, len(hosts))}
	var g errgroup.Group
	g.SetLimit(r.concurrency())
	for i, host := range hosts {
		g.Go(func() error {
			rep.Hosts[i] = r.backupHost(ctx, host, paths, filepath.Join(dest, host+"_"+stamp))
			return nil
		})
	}
	_ = g.Wait()

	for _, hb := range rep.Hosts {
		if hb.Success {
			rep.BackedUp++
		} else {
			rep.Failed++
		}
	}
	d := time.Since(start)
	rep.Duration = state.FormatDuration(d)
	log.Info("backup finished", zap.Int("backed_up", rep.BackedUp), zap.Int("failed", rep.Failed))

	status := state.StatusCompleted
	if rep.Failed > 0 {
		status = state.StatusFailed
	}
	ux.RunSummary(status, len(hosts), rep.Failed, d)
	if rep.Failed > 0 {
		return rep, fmt.Errorf("%w: %d of %d hosts not fully backed up", ErrRunFailed, rep.Failed, len(hosts))
	}
	return rep, ctx.Err()
}

func (r *Runner) backupHost(ctx context.Context, host string, paths []string, dest string) HostBackup {
	hb := HostBackup{Host: host, Dest: dest, Success: true}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		hb.Success = false
		for _, p := range paths {
			hb.Paths = append(hb.Paths, PathTransfer{Path: p, Error: err.Error()})
		}
		ux.TaskFail(host, "backup", err.Error())
		return hb
	}
	for _, p := range paths {
		t0 := time.Now()
		out, err := r.Transfer.Pull(ctx, sshsync.PullRequest{Host: host, Remote: p, Local: dest, Recurse: true})
		pt := transferResult(p, out, err)
		hb.Paths = append(hb.Paths, pt)
		if pt.Success {
			ux.TaskComplete(host, "pull "+p, time.Since(t0))
			continue
		}
		hb.Success = false
		ux.TaskFail(host, "pull "+p, pt.Error)
		r.logger().Warn("backup pull failed", zap.String("host", host), zap.String("path", p), zap.String("error", pt.Error))
	}
	return hb
}

// PathSync is the outcome of syncing one path from the source host.
type PathSync struct {
	Path    string        `json:"path"`
	Pull    *PathTransfer `json:"pull"`
	Push    *PathTransfer `json:"push,omitempty"`
	Success bool          `json:"success"`
}

// SyncReport summarizes a sync from one host to a group.
type SyncReport struct {
	Source   string     `json:"source"`
	Group    string     `json:"group"`
	Paths    []PathSync `json:"paths"`
	Synced   int        `json:"synced"`
	Failed   int        `json:"failed"`
	Duration string     `json:"duration"`
}

// Sync copies each path from source into a scratch directory and pushes
// it to the same path on every member of group. A failed pull skips the
// push for that path.
func (r *Runner) Sync(ctx context.Context, source, group string, paths []string) (*SyncReport, error) {
	if r.Transfer == nil {
		return nil, fmt.Errorf("sync: no transfer client configured")
	}
	group, err := config.ValidateGroup(group, nil)
	if err != nil {
		return nil, err
	}
	if paths, err = cleanPaths(paths); err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "fleet-sync-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	log := r.logger().With(zap.String("source", source), zap.String("group", group))
	ux.StepHeader(fmt.Sprintf("Sync of %d paths from %s to %s", len(paths), source, group))

	start := time.Now()
	rep := &SyncReport{Source: source, Group: group}
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		ps := r.syncPath(ctx, source, group, p, filepath.Join(scratch, path.Base(p)))
		rep.Paths = append(rep.Paths, ps)
		if ps.Success {
			rep.Synced++
		} else {
			rep.Failed++
		}
	}
	d := time.Since(start)
	rep.Duration = state.FormatDuration(d)
	log.Info("sync finished", zap.Int("synced", rep.Synced), zap.Int("failed", rep.Failed))

	status := state.StatusCompleted
	if rep.Failed > 0 {
		status = state.StatusFailed
	}
	ux.RunSummary(status, 1, rep.Failed, d)
	if rep.Failed > 0 {
		return rep, fmt.Errorf("%w: %d of %d paths failed to sync", ErrRunFailed, rep.Failed, len(paths))
	}
	return rep, ctx.Err()
}

func (r *Runner) syncPath(ctx context.Context, source, group, remote, local string) PathSync {
	ps := PathSync{Path: remote}

	t0 := time.Now()
	out, err := r.Transfer.Pull(ctx, sshsync.PullRequest{Host: source, Remote: remote, Local: local, Recurse: true})
	pull := transferResult(remote, out, err)
	ps.Pull = &pull
	if !pull.Success {
		pull.Error = "pull from source failed: " + pull.Error
		ux.TaskFail(source, "pull "+remote, pull.Error)
		return ps
	}
	ux.TaskComplete(source, "pull "+remote, time.Since(t0))

	t0 = time.Now()
	out, err = r.Transfer.Push(ctx, sshsync.PushRequest{Local: local, Remote: remote, Group: group, Recurse: true})
	push := transferResult(remote, out, err)
	ps.Push = &push
	ps.Success = push.Success
	if push.Success {
		ux.TaskComplete(group, "push "+remote, time.Since(t0))
	} else {
		ux.TaskFail(group, "push "+remote, push.Error)
	}
	return ps
}

func transferResult(p string, out *sshsync.Outcome, err error) PathTransfer {
	pt := PathTransfer{Path: p}
	switch {
	case err != nil:
		pt.Error = err.Error()
	case out.Success:
		pt.Command = out.Command
		pt.Success = true
	default:
		pt.Command = out.Command
		if pt.Error = lastLine(out.Stderr); pt.Error == "" {
			pt.Error = "transfer failed"
		}
	}
	return pt
}

func cleanPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if path.Base(p) == "/" {
			return nil, fmt.Errorf("%w: refusing to transfer the root directory", config.ErrValidation)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one path is required", config.ErrValidation)
	}
	return out, nil
}
