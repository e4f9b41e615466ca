package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/sshsync"
	"github.com/jorge-barreto/fleet/internal/tailscale"
	"github.com/jorge-barreto/fleet/internal/ux"
)

const (
	defaultExecTimeout = 30 * time.Second
	statusPingTimeout  = 5 * time.Second
)

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show host availability from sshsync, optionally with tailnet latency",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Only hosts in this group"},
			&cli.BoolFlag{Name: "tailnet", Usage: "Also check tailscale and ping online hosts"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			group := cmd.String("group")
			if group != "" {
				names, _, err := a.groupNames()
				if err != nil {
					return err
				}
				if group, err = config.ValidateGroup(group, names); err != nil {
					return err
				}
			}
			listing, err := a.syncClient().ListHosts(ctx, group)
			if err != nil {
				return err
			}
			_, groups, err := a.groupNames()
			if err != nil {
				return err
			}

			if !cmd.Bool("tailnet") {
				if a.json {
					return printJSON(listing)
				}
				ux.RenderHostListing(listing, groups)
				return nil
			}

			ts := a.tailnet()
			st, err := ts.Status(ctx)
			if err != nil {
				return err
			}
			latency := pingAll(ctx, ts, listing.Hosts)

			type row struct {
				sshsync.HostStatus
				Tailnet   bool  `json:"tailnet"`
				LatencyMS int64 `json:"latency_ms,omitempty"`
			}
			rows := make([]row, len(listing.Hosts))
			for i, h := range listing.Hosts {
				peer, perr := tailscale.FindPeer(st.Peers, h.Host)
				rows[i] = row{
					HostStatus: h,
					Tailnet:    perr == nil && peer.Online,
					LatencyMS:  latency[i].Milliseconds(),
				}
			}
			if a.json {
				return printJSON(struct {
					Hosts   []row           `json:"hosts"`
					Summary sshsync.Summary `json:"summary"`
				}{rows, listing.Summary})
			}
			for i, r := range rows {
				color := ux.Green
				if !r.Online {
					color = ux.Red
				}
				line := ux.FormatHostStatus(r.Host, r.Online, config.GroupsForHost(r.Host, groups), latency[i], r.Tailnet)
				fmt.Printf("%s%s%s\n", color, line, ux.Reset)
			}
			fmt.Printf("\n%s\n", ux.FormatNetworkSummary(st))
			return nil
		},
	}
}

// pingAll pings online hosts concurrently; entries for hosts that are
// offline or do not answer stay zero.
func pingAll(ctx context.Context, ts *tailscale.Client, hosts []sshsync.HostStatus) []time.Duration {
	out := make([]time.Duration, len(hosts))
	var g errgroup.Group
	g.SetLimit(8)
	for i, h := range hosts {
		if !h.Online {
			continue
		}
		g.Go(func() error {
			if pr, err := ts.Ping(ctx, h.Host, statusPingTimeout); err == nil && pr.Reachable {
				out[i] = pr.Latency
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func execCmd() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Run a command on a group or on every host through sshsync",
		ArgsUsage: "<command>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Target group"},
			&cli.BoolFlag{Name: "all", Usage: "Target every host"},
			&cli.DurationFlag{Name: "timeout", Value: defaultExecTimeout, Usage: "Per-host command timeout"},
			&cli.BoolFlag{Name: "allow-dangerous", Usage: "Skip the destructive command check"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the sshsync command without executing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			command := strings.Join(cmd.Args().Slice(), " ")
			group := cmd.String("group")
			if group == "" && !cmd.Bool("all") {
				return fmt.Errorf("%w: --group or --all is required", config.ErrValidation)
			}
			if group != "" && cmd.Bool("all") {
				return fmt.Errorf("%w: pass --group or --all, not both", config.ErrValidation)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			c := a.syncClient()
			c.DryRun = cmd.Bool("dry-run")
			c.AllowDangerous = cmd.Bool("allow-dangerous")

			var out *sshsync.Outcome
			if group != "" {
				out, err = c.ExecuteOnGroup(ctx, group, command, cmd.Duration("timeout"))
			} else {
				out, err = c.ExecuteOnAll(ctx, command, cmd.Duration("timeout"))
			}
			if err != nil {
				return err
			}
			return renderOutcome(a, out)
		},
	}
}

func pushCmd() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "Copy a local path to hosts through sshsync",
		ArgsUsage: "<local> <remote>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "host", Usage: "Target host (repeatable)"},
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Target group"},
			&cli.BoolFlag{Name: "all", Usage: "Target every host"},
			&cli.BoolFlag{Name: "recurse", Aliases: []string{"r"}, Usage: "Copy directories recursively"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the sshsync command without executing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("local and remote path arguments are required")
			}
			hostArgs := cmd.StringSlice("host")
			group := cmd.String("group")
			targets := 0
			for _, set := range []bool{len(hostArgs) > 0, group != "", cmd.Bool("all")} {
				if set {
					targets++
				}
			}
			if targets != 1 {
				return fmt.Errorf("%w: exactly one of --host, --group or --all is required", config.ErrValidation)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			req := sshsync.PushRequest{
				Local:   cmd.Args().Get(0),
				Remote:  cmd.Args().Get(1),
				Recurse: cmd.Bool("recurse"),
			}
			switch {
			case len(hostArgs) > 0:
				if req.Hosts, err = a.resolveHosts(hostArgs, ""); err != nil {
					return err
				}
			case group != "":
				names, _, err := a.groupNames()
				if err != nil {
					return err
				}
				if req.Group, err = config.ValidateGroup(group, names); err != nil {
					return err
				}
			}

			c := a.syncClient()
			c.DryRun = cmd.Bool("dry-run")
			out, err := c.Push(ctx, req)
			if err != nil {
				return err
			}
			return renderOutcome(a, out)
		},
	}
}

func pullCmd() *cli.Command {
	return &cli.Command{
		Name:      "pull",
		Usage:     "Copy a remote path from one host through sshsync",
		ArgsUsage: "<host> <remote> <local>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recurse", Aliases: []string{"r"}, Usage: "Copy directories recursively"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the sshsync command without executing"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 3 {
				return fmt.Errorf("host, remote and local path arguments are required")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			c := a.syncClient()
			c.DryRun = cmd.Bool("dry-run")
			out, err := c.Pull(ctx, sshsync.PullRequest{
				Host:    cmd.Args().Get(0),
				Remote:  cmd.Args().Get(1),
				Local:   cmd.Args().Get(2),
				Recurse: cmd.Bool("recurse"),
			})
			if err != nil {
				return err
			}
			return renderOutcome(a, out)
		},
	}
}

func renderOutcome(a *app, out *sshsync.Outcome) error {
	if a.json {
		if err := printJSON(out); err != nil {
			return err
		}
	} else {
		ux.RenderOutcome(out)
	}
	if !out.DryRun && !out.Success {
		return fmt.Errorf("%s failed", out.Command)
	}
	return nil
}

func peersCmd() *cli.Command {
	return &cli.Command{
		Name:      "peers",
		Usage:     "List tailnet peers",
		ArgsUsage: "[name]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "online", Usage: "Only print the hostnames of online peers"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			ts := a.tailnet()

			if name := cmd.Args().First(); name != "" {
				p, err := ts.PeerInfo(ctx, name)
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(p)
				}
				ux.RenderPeers(&tailscale.Status{Peers: []tailscale.Peer{*p}})
				return nil
			}

			if cmd.Bool("online") {
				hosts, err := ts.OnlineMachines(ctx)
				if err != nil {
					return err
				}
				if a.json {
					return printJSON(hosts)
				}
				for _, h := range hosts {
					fmt.Println(h)
				}
				return nil
			}

			st, err := ts.Status(ctx)
			if err != nil {
				return err
			}
			if a.json {
				return printJSON(st)
			}
			ux.RenderPeers(st)
			return nil
		},
	}
}

func backupCmd() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "Pull paths from hosts into timestamped local directories",
		ArgsUsage: "[host...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Aliases: []string{"g"}, Usage: "Back up every host in this group"},
			&cli.StringSliceFlag{Name: "path", Aliases: []string{"p"}, Usage: "Remote path to back up (repeatable)"},
			&cli.StringFlag{Name: "dest", Aliases: []string{"d"}, Value: "./backups", Usage: "Local destination directory"},
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
			rep, err := a.planRunner().Backup(ctx, hosts, cmd.StringSlice("path"), cmd.String("dest"))
			if a.json && rep != nil {
				if jerr := printJSON(rep); jerr != nil {
					return jerr
				}
			}
			return err
		},
	}
}

func syncCmd() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Copy paths from one host to every host in a group",
		ArgsUsage: "<source-host> <group>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "path", Aliases: []string{"p"}, Usage: "Path to sync (repeatable)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("source host and group arguments are required")
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			group := strings.ToLower(strings.TrimSpace(cmd.Args().Get(1)))
			if _, err := a.groupHosts(group); err != nil {
				return err
			}
			rep, err := a.planRunner().Sync(ctx, cmd.Args().Get(0), group, cmd.StringSlice("path"))
			if a.json && rep != nil {
				if jerr := printJSON(rep); jerr != nil {
					return jerr
				}
			}
			return err
		},
	}
}
