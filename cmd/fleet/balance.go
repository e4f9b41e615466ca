package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/metrics"
	"github.com/jorge-barreto/fleet/internal/runner"
	"github.com/jorge-barreto/fleet/internal/state"
	"github.com/jorge-barreto/fleet/internal/ux"
)

func loadCmd() *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Measure CPU, memory, and disk load of hosts",
		ArgsUsage: "[host...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Measure every host in this group"},
			&cli.BoolFlag{Name: "local", Usage: "Measure this machine instead of remote hosts"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Bool("local") {
				m := metrics.SampleLocal(ctx)
				if a.json {
					return printJSON(m)
				}
				ux.RenderLoad([]metrics.MachineMetrics{m}, nil)
				return nil
			}

			hosts, err := a.resolveHosts(cmd.Args().Slice(), cmd.String("group"))
			if err != nil {
				return err
			}
			measured, excluded := a.balancer.Probe(ctx, hosts)
			if a.json {
				return printJSON(struct {
					Hosts    []metrics.MachineMetrics `json:"hosts"`
					Excluded []balancer.Exclusion     `json:"excluded,omitempty"`
				}{measured, excluded})
			}
			ux.RenderLoad(measured, excluded)
			if len(measured) == 0 {
				return balancer.ErrNoMetrics
			}
			return nil
		},
	}
}

func pickCmd() *cli.Command {
	return &cli.Command{
		Name:      "pick",
		Usage:     "Select the least loaded host",
		ArgsUsage: "[host...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Choose among this group's hosts"},
			&cli.StringFlag{Name: "prefer", Usage: "Prefer this group when its best host is within the prefer window"},
			&cli.FloatFlag{Name: "window", Value: balancer.DefaultPreferWindow, Usage: "Prefer window as a multiple of the best score"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Print only the host name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			hosts, err := a.resolveHosts(cmd.Args().Slice(), cmd.String("group"))
			if err != nil {
				return err
			}
			prefer := cmd.String("prefer")
			if prefer != "" {
				names, _, err := a.groupNames()
				if err != nil {
					return err
				}
				if prefer, err = config.ValidateGroup(prefer, names); err != nil {
					return err
				}
			}
			window := cmd.Float("window")
			if err := config.ValidatePreferWindow(window); err != nil {
				return err
			}
			a.balancer.PreferWindow = window

			sel := a.balancer.SelectOptimalHost(ctx, hosts, prefer)
			switch {
			case a.json:
				if err := printJSON(sel); err != nil {
					return err
				}
			case cmd.Bool("quiet"):
				if sel.Found() {
					fmt.Println(sel.Host)
				}
			default:
				ux.RenderSelection(sel)
			}
			if !sel.Found() {
				return fmt.Errorf("%w: none of %d candidates could be measured", balancer.ErrNoMetrics, len(hosts))
			}
			return nil
		},
	}
}

func capacityCmd() *cli.Command {
	return &cli.Command{
		Name:      "capacity",
		Usage:     "Summarize the average load of a group",
		ArgsUsage: "<group>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			group := cmd.Args().First()
			if group == "" {
				return fmt.Errorf("group argument is required")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			names, _, err := a.groupNames()
			if err != nil {
				return err
			}
			if group, err = config.ValidateGroup(group, names); err != nil {
				return err
			}

			c, err := a.balancer.GroupCapacity(ctx, group)
			if err != nil && !errors.Is(err, balancer.ErrNoMetrics) {
				return err
			}
			if a.json {
				if jerr := printJSON(c); jerr != nil {
					return jerr
				}
			} else if err == nil {
				ux.RenderCapacity(c)
			} else {
				ux.RenderExclusions(c.Excluded)
			}
			return err
		},
	}
}

func distributeCmd() *cli.Command {
	return &cli.Command{
		Name:      "distribute",
		Usage:     "Assign weighted tasks to the least loaded hosts",
		ArgsUsage: "[host...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tasks", Aliases: []string{"t"}, Usage: "YAML task file"},
			&cli.StringSliceFlag{Name: "command", Aliases: []string{"c"}, Usage: "Ad-hoc task with weight 1 (repeatable)"},
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Distribute across this group's hosts"},
			&cli.BoolFlag{Name: "allow-dangerous", Usage: "Skip the destructive command check"},
			&cli.BoolFlag{Name: "save", Usage: "Save the distribution as a plan for run-plan"},
			&cli.StringFlag{Name: "name", Usage: "Plan name (defaults to the task file name)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			tf, err := loadTaskInput(cmd.String("tasks"), cmd.StringSlice("command"))
			if err != nil {
				return err
			}
			allow := tf.AllowDangerous || cmd.Bool("allow-dangerous")
			for i, t := range tf.Tasks {
				if _, err := config.ValidateCommand(t.Command, allow); err != nil {
					return fmt.Errorf("task %d: %w", i+1, err)
				}
			}

			group := cmd.String("group")
			hosts, err := a.resolveHosts(cmd.Args().Slice(), group)
			if err != nil {
				return err
			}

			d := a.balancer.DistributeTasks(ctx, tf.Tasks, hosts)
			if a.json {
				if err := printJSON(d); err != nil {
					return err
				}
			} else {
				ux.RenderDistribution(d)
			}
			if len(d.Hosts) == 0 {
				return fmt.Errorf("%w: no host could take tasks", balancer.ErrNoMetrics)
			}

			if cmd.Bool("save") {
				name := cmd.String("name")
				if name == "" {
					name = tf.Name
				}
				p := state.NewPlan(name, d)
				p.Group = strings.ToLower(group)
				path, err := p.Save(a.settings.PlanDir)
				if err != nil {
					return fmt.Errorf("saving plan: %w", err)
				}
				if !a.json {
					fmt.Printf("\n%sSaved plan %s%s → %s\n", ux.Green, p.ID, ux.Reset, path)
					fmt.Printf("  Run it with %sfleet run-plan %s%s\n", ux.Cyan, p.ID[:8], ux.Reset)
				}
			}
			return nil
		},
	}
}

func loadTaskInput(path string, commands []string) (*config.TaskFile, error) {
	switch {
	case path != "" && len(commands) > 0:
		return nil, fmt.Errorf("%w: pass --tasks or --command, not both", config.ErrValidation)
	case path != "":
		return config.LoadTasks(path)
	case len(commands) > 0:
		tf := &config.TaskFile{Name: "ad-hoc"}
		for _, c := range commands {
			tf.Tasks = append(tf.Tasks, config.Task{Command: c})
		}
		if err := config.ValidateTaskFile(tf); err != nil {
			return nil, err
		}
		return tf, nil
	default:
		return nil, fmt.Errorf("%w: --tasks or --command is required", config.ErrValidation)
	}
}

func runPlanCmd() *cli.Command {
	return &cli.Command{
		Name:      "run-plan",
		Usage:     "Execute a saved plan",
		ArgsUsage: "[plan id|prefix|path|latest]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the plan without executing"},
			&cli.BoolFlag{Name: "only-failed", Usage: "Rerun only hosts that failed in the last run of this plan"},
			&cli.BoolFlag{Name: "continue-on-error", Usage: "Run a host's remaining tasks after one fails"},
			&cli.StringSliceFlag{Name: "host", Usage: "Restrict the run to these hosts (repeatable)"},
			&cli.BoolFlag{Name: "last", Usage: "Show the outcome of the last run instead of running"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			dir := a.settings.PlanDir
			p, err := state.FindPlan(dir, cmd.Args().First())
			if err != nil {
				return err
			}

			if cmd.Bool("last") {
				return showLastRun(a, p)
			}
			if cmd.Bool("dry-run") {
				if a.json {
					return printJSON(p)
				}
				ux.RenderPlan(p)
				return nil
			}

			opts := runner.Options{Hosts: cmd.StringSlice("host")}
			if cmd.Bool("only-failed") {
				last, err := state.LatestRun(dir, p.ID)
				if err != nil {
					return err
				}
				if last == nil {
					return fmt.Errorf("plan %s has not been run yet", p.ID)
				}
				failed := last.FailedHosts()
				if len(failed) == 0 {
					fmt.Printf("%sLast run %s had no failures.%s\n", ux.Green, last.ID, ux.Reset)
					return nil
				}
				opts.Hosts = failed
			}

			r := a.planRunner()
			r.ContinueOnError = cmd.Bool("continue-on-error")
			title := p.ID
			if p.Name != "" {
				title = p.Name
			}
			ux.StepHeader(fmt.Sprintf("Plan %s: %d tasks on %d hosts", title, p.TaskCount(), len(p.Hosts)))
			run, err := r.RunPlan(ctx, p, opts)
			if a.json && run != nil {
				if jerr := printJSON(run); jerr != nil {
					return jerr
				}
			}
			return err
		},
	}
}

func showLastRun(a *app, p *state.Plan) error {
	run, err := state.LatestRun(a.settings.PlanDir, p.ID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("plan %s has not been run yet", p.ID)
	}
	if a.json {
		return printJSON(run)
	}
	timing, err := state.LoadTiming(state.TimingPath(a.settings.PlanDir, run.ID))
	if err != nil {
		return err
	}
	ux.RenderRun(run, timing)
	return nil
}

func restartCmd() *cli.Command {
	return &cli.Command{
		Name:      "restart",
		Usage:     "Restart a service on a group one host at a time",
		ArgsUsage: "<group> <service>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "wait", Value: runner.DefaultRestartWait, Usage: "Pause between hosts"},
			&cli.DurationFlag{Name: "settle", Value: runner.DefaultSettleDelay, Usage: "Pause between restart and health check"},
			&cli.BoolFlag{Name: "stop-on-failure", Usage: "Stop after the first host that fails"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the commands without executing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("group and service arguments are required")
			}
			group, service := cmd.Args().Get(0), cmd.Args().Get(1)

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			hosts, err := a.groupHosts(group)
			if err != nil {
				return err
			}
			if cmd.Bool("dry-run") {
				fmt.Printf("\n%sDry run: rolling restart of %s on %d hosts%s\n\n", ux.Bold, service, len(hosts), ux.Reset)
				for i, h := range hosts {
					fmt.Printf("  %d. %s%s%s\n", i+1, ux.Cyan, h, ux.Reset)
					fmt.Printf("     %s\n", runner.RestartCommand(service))
					fmt.Printf("     %s\n", runner.HealthCommand(service))
				}
				fmt.Printf("\n  %swait %s between hosts%s\n\n", ux.Dim, cmd.Duration("wait").Round(time.Second), ux.Reset)
				return nil
			}

			rep, err := a.planRunner().RollingRestart(ctx, strings.ToLower(group), hosts, runner.RestartOptions{
				Service:       service,
				Wait:          cmd.Duration("wait"),
				Settle:        cmd.Duration("settle"),
				StopOnFailure: cmd.Bool("stop-on-failure"),
			})
			if a.json && rep != nil {
				if jerr := printJSON(rep); jerr != nil {
					return jerr
				}
			}
			return err
		},
	}
}
