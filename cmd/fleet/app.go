package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/dispatch"
	"github.com/jorge-barreto/fleet/internal/logging"
	"github.com/jorge-barreto/fleet/internal/metrics"
	"github.com/jorge-barreto/fleet/internal/runner"
	"github.com/jorge-barreto/fleet/internal/sshsync"
	"github.com/jorge-barreto/fleet/internal/tailscale"
)

// app holds the components shared by every command.
type app struct {
	settings  *config.Settings
	logger    *zap.Logger
	groups    config.GroupFile
	invoker   dispatch.Invoker
	ssh       *dispatch.SSH
	registry  *prometheus.Registry
	collector *metrics.Collector
	balancer  *balancer.Balancer
	json      bool
}

func newApp(cmd *cli.Command) (*app, error) {
	settings, err := config.LoadSettings(cmd.String("env-file"))
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(settings.LogLevel, cmd.Bool("verbose"))
	if err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	a := &app{
		settings: settings,
		logger:   logger,
		groups:   config.GroupFile{Path: settings.SSHSyncConfig},
		invoker:  &dispatch.ExecInvoker{BaseDir: wd},
		registry: prometheus.NewRegistry(),
		json:     cmd.Bool("json"),
	}
	a.ssh = &dispatch.SSH{
		Invoker:    a.invoker,
		Binary:     settings.SSHBinary,
		Timeout:    settings.Timeout,
		KnownHosts: a.knownHosts,
		WorkDir:    wd,
	}
	a.collector = metrics.NewCollector(a.ssh, logger)
	a.collector.Cores = settings.Cores
	a.collector.Recorder = metrics.NewRecorder(a.registry)
	a.balancer = balancer.New(a.collector, a.groups, logger)
	a.balancer.Concurrency = settings.Concurrency
	return a, nil
}

// knownHosts returns the ssh config aliases, or nil when the ssh config
// declares none so that any syntactically valid host is accepted.
func (a *app) knownHosts() ([]string, error) {
	hosts, err := config.SSHHosts(a.settings.SSHConfig)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, nil
	}
	return hosts, nil
}

func (a *app) syncClient() *sshsync.Client {
	return &sshsync.Client{
		Invoker:    a.invoker,
		WorkDir:    a.ssh.WorkDir,
		Groups:     a.groups,
		KnownHosts: a.knownHosts,
	}
}

func (a *app) tailnet() *tailscale.Client {
	return &tailscale.Client{Invoker: a.invoker, WorkDir: a.ssh.WorkDir}
}

func (a *app) planRunner() *runner.Runner {
	return &runner.Runner{
		Executor:    a.ssh,
		Transfer:    a.syncClient(),
		PlanDir:     a.settings.PlanDir,
		Concurrency: a.settings.Concurrency,
		Logger:      a.logger,
	}
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// groupNames returns the sorted names of every configured group.
func (a *app) groupNames() ([]string, map[string][]string, error) {
	groups, err := a.groups.Groups()
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, groups, nil
}

// groupHosts validates group and returns its members.
func (a *app) groupHosts(group string) ([]string, error) {
	names, groups, err := a.groupNames()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s (no groups configured in %s)", balancer.ErrGroupNotFound, group, a.groups.Path)
	}
	group, err = config.ValidateGroup(group, names)
	if err != nil {
		return nil, err
	}
	hosts := config.HostsInGroup(group, groups)
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: %s has no hosts", balancer.ErrGroupNotFound, group)
	}
	return hosts, nil
}

// resolveHosts turns positional hosts or a --group flag into a host list.
// With neither, every host in every group is used.
func (a *app) resolveHosts(args []string, group string) ([]string, error) {
	switch {
	case len(args) > 0 && group != "":
		return nil, fmt.Errorf("%w: pass hosts or --group, not both", config.ErrValidation)
	case len(args) > 0:
		known, err := a.knownHosts()
		if err != nil {
			return nil, err
		}
		var hosts []string
		for _, arg := range args {
			hs, err := config.ValidateHosts(arg, known)
			if err != nil {
				return nil, err
			}
			hosts = append(hosts, hs...)
		}
		return hosts, nil
	case group != "":
		return a.groupHosts(group)
	default:
		_, groups, err := a.groupNames()
		if err != nil {
			return nil, err
		}
		hosts := config.AllHosts(groups)
		if len(hosts) == 0 {
			return nil, fmt.Errorf("no hosts: pass hosts, --group, or define groups in %s", a.groups.Path)
		}
		return hosts, nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
