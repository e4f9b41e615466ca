package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/fleet/internal/docs"
	"github.com/jorge-barreto/fleet/internal/doctor"
	"github.com/jorge-barreto/fleet/internal/exporter"
	"github.com/jorge-barreto/fleet/internal/scaffold"
	"github.com/jorge-barreto/fleet/internal/state"
)

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose host connectivity, or the failures of a plan run",
		ArgsUsage: "[host...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Diagnose every host in this group"},
			&cli.StringFlag{Name: "run", Usage: "Show failed tasks and logs from the last run of this plan (id, prefix, or latest)"},
			&cli.BoolFlag{Name: "no-tailnet", Usage: "Skip tailscale checks"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.IsSet("run") {
				p, err := state.FindPlan(a.settings.PlanDir, cmd.String("run"))
				if err != nil {
					return err
				}
				run, err := state.LatestRun(a.settings.PlanDir, p.ID)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("plan %s has not been run yet", p.ID)
				}
				doctor.RunFailures(a.settings.PlanDir, run)
				return nil
			}

			hosts, err := a.resolveHosts(cmd.Args().Slice(), cmd.String("group"))
			if err != nil {
				return err
			}
			d := &doctor.Doctor{
				Executor:    a.ssh,
				Concurrency: a.settings.Concurrency,
				Logger:      a.logger,
				Binaries:    []string{a.settings.SSHBinary, "sshsync"},
			}
			if !cmd.Bool("no-tailnet") {
				d.Tailnet = a.tailnet()
				d.Binaries = append(d.Binaries, "tailscale")
			}

			env := d.Environment()
			reports := d.Diagnose(ctx, hosts)
			if a.json {
				return printJSON(struct {
					Environment []doctor.Check      `json:"environment"`
					Hosts       []doctor.HostReport `json:"hosts"`
				}{env, reports})
			}
			doctor.Render(env, reports)

			unhealthy := 0
			for _, r := range reports {
				if !r.Healthy() {
					unhealthy++
				}
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d of %d hosts unhealthy", unhealthy, len(reports))
			}
			return nil
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve Prometheus metrics and a /pick endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":9469", Usage: "Listen address"},
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Only export hosts in this group"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			group := cmd.String("group")
			hosts := func() ([]string, error) { return a.resolveHosts(nil, group) }
			a.registry.MustRegister(
				exporter.New(a.balancer, hosts, a.logger),
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			srv := &exporter.Server{
				Registry:   a.registry,
				Picker:     a.balancer,
				Candidates: func(g string) ([]string, error) { return a.resolveHosts(nil, g) },
				Logger:     a.logger,
			}
			fmt.Printf("Serving metrics on %s/metrics\n", cmd.String("addr"))
			return srv.ListenAndServe(ctx, cmd.String("addr"))
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a .fleet/ directory with example task, group, and env files",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(dir)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "List topics mentioning this term"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if term := cmd.String("search"); term != "" {
				found := docs.Search(term)
				if len(found) == 0 {
					return fmt.Errorf("no topic mentions %q", term)
				}
				for _, t := range found {
					fmt.Printf("  %-16s %s\n", t.Name, t.Summary)
				}
				return nil
			}
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-16s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'fleet docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}
