package ux

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jorge-barreto/fleet/internal/config"
	"github.com/jorge-barreto/fleet/internal/sshsync"
	"github.com/jorge-barreto/fleet/internal/state"
	"github.com/jorge-barreto/fleet/internal/tailscale"
)

// FormatHostStatus renders one status line for a host.
func FormatHostStatus(host string, online bool, groups []string, latency time.Duration, tailnet bool) string {
	icon, status := "✓", "Online"
	if !online {
		icon, status = "✗", "Offline"
	}
	groupStr := "no group"
	if len(groups) > 0 {
		groupStr = strings.Join(groups, ", ")
	}
	parts := []string{fmt.Sprintf("%s %s (%s) - %s", icon, host, groupStr, status)}
	if tailnet {
		parts = append(parts, "Tailscale: Connected")
	}
	if latency > 0 && online {
		parts = append(parts, fmt.Sprintf("Latency: %dms", latency.Milliseconds()))
	}
	return strings.Join(parts, " - ")
}

// RenderHostListing prints sshsync reachability with group membership.
func RenderHostListing(l *sshsync.Listing, groups map[string][]string) {
	for _, h := range l.Hosts {
		color := Green
		if !h.Online {
			color = Red
		}
		line := FormatHostStatus(h.Host, h.Online, config.GroupsForHost(h.Host, groups), 0, false)
		fmt.Printf("%s%s%s\n", color, line, Reset)
	}
	s := l.Summary
	fmt.Printf("\n%sOnline:%s %d/%d hosts (%.0f%%)\n", Bold, Reset, s.Online, s.Total, s.AvailabilityPct)
}

// FormatNetworkSummary renders a short tailnet summary.
func FormatNetworkSummary(st *tailscale.Status) string {
	total := len(st.Peers)
	online := st.OnlineCount()
	pct := 0.0
	if total > 0 {
		pct = float64(online) / float64(total) * 100
	}
	return strings.Join([]string{
		"Tailscale Network: Connected",
		fmt.Sprintf("Online: %d/%d machines (%.0f%%)", online, total, pct),
		fmt.Sprintf("Self IP: %s", st.SelfIP),
	}, "\n")
}

// RenderPeers prints every tailnet peer followed by the summary.
func RenderPeers(st *tailscale.Status) {
	for _, p := range st.Peers {
		color, mark := Green, "✓"
		if !p.Online {
			color, mark = Red, "✗"
		}
		fmt.Printf("  %s%s%s %-24s %-16s %s%s%s\n", color, mark, Reset, p.Hostname, p.IP, Dim, p.OS, Reset)
	}
	fmt.Printf("\n%s\n", FormatNetworkSummary(st))
}

// RenderOutcome prints the output of a bulk sshsync command.
func RenderOutcome(o *sshsync.Outcome) {
	if o.DryRun {
		fmt.Printf("%sDry run:%s %s\n", Yellow, Reset, o.Command)
		return
	}
	if o.Stdout != "" {
		fmt.Print(o.Stdout)
		if !strings.HasSuffix(o.Stdout, "\n") {
			fmt.Println()
		}
	}
	if !o.Success {
		fmt.Printf("%s✗ %s failed%s\n", Red, o.Command, Reset)
		if o.Stderr != "" {
			fmt.Printf("%s%s%s\n", Dim, strings.TrimSpace(o.Stderr), Reset)
		}
	}
}

// RenderPlan prints a saved plan without executing it.
func RenderPlan(p *state.Plan) {
	title := p.ID
	if p.Name != "" {
		title = fmt.Sprintf("%s (%s)", p.Name, p.ID)
	}
	fmt.Printf("\n%sDry run — plan %s, %d tasks on %d hosts:%s\n\n", Bold, title, p.TaskCount(), len(p.Hosts), Reset)
	for _, h := range p.Hosts {
		fmt.Printf("  %s%s%s\n", Cyan, h, Reset)
		for i, t := range p.Assignments[h] {
			fmt.Printf("     %d. %s\n", i+1, t.Command)
		}
	}
	fmt.Println()
}

// RenderRun prints the recorded outcome of a plan run.
func RenderRun(r *state.Run, timing *state.Timing) {
	fmt.Printf("%sRun:%s     %s\n", Bold, Reset, r.ID)
	if r.PlanID != "" {
		fmt.Printf("%sPlan:%s    %s\n", Bold, Reset, r.PlanID)
	}
	color := Green
	if r.Status != state.StatusCompleted {
		color = Red
	}
	fmt.Printf("%sStatus:%s  %s%s%s\n", Bold, Reset, color, r.Status, Reset)

	hosts := make([]string, 0, len(r.Hosts))
	for h := range r.Hosts {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	fmt.Printf("\n%sHosts:%s\n", Bold, Reset)
	for _, h := range hosts {
		hr := r.Hosts[h]
		c := Green
		switch hr.Status {
		case state.StatusFailed:
			c = Red
		case state.StatusInterrupted, state.StatusSkipped:
			c = Yellow
		}
		fmt.Printf("  %-20s %s%s%s  %s\n", h, c, hr.Status, Reset, findDuration(timing, h))
		for _, t := range hr.Tasks {
			mark := Green + "✓" + Reset
			if !t.Success {
				mark = Red + "✗" + Reset
			}
			fmt.Printf("     %s %s %s(%s)%s\n", mark, t.Command, Dim, t.Duration, Reset)
		}
	}
	fmt.Println()
}

func findDuration(timing *state.Timing, step string) string {
	if timing == nil {
		return ""
	}
	for i := len(timing.Entries) - 1; i >= 0; i-- {
		if timing.Entries[i].Step == step && timing.Entries[i].Duration != "" {
			return fmt.Sprintf("(%s)", timing.Entries[i].Duration)
		}
	}
	return ""
}
