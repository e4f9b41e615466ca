package ux

import (
	"fmt"
	"math"
	"strings"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/metrics"
)

// Averages are fleet-wide means used to annotate a single host's report.
type Averages struct {
	CPU  float64
	Mem  float64
	Disk float64
}

// AveragesOf returns the mean utilization of ms.
func AveragesOf(ms []metrics.MachineMetrics) Averages {
	var a Averages
	if len(ms) == 0 {
		return a
	}
	for _, m := range ms {
		a.CPU += m.CPUPct
		a.Mem += m.MemPct
		a.Disk += m.DiskPct
	}
	n := float64(len(ms))
	return Averages{CPU: a.CPU / n, Mem: a.Mem / n, Disk: a.Disk / n}
}

// FormatLoadReport renders one host's load as plain text. With avg set,
// fields deviating more than 10 points from the average are called out.
func FormatLoadReport(m metrics.MachineMetrics, avg *Averages) string {
	lines := []string{
		fmt.Sprintf("%s: Load Score: %.2f (%s)", m.Host, m.LoadScore, m.Status),
		fmt.Sprintf("  CPU: %.1f%% | Memory: %.1f%% | Disk: %.1f%%", m.CPUPct, m.MemPct, m.DiskPct),
	}
	if avg != nil {
		var notes []string
		for _, f := range []struct {
			name string
			diff float64
		}{
			{"CPU", m.CPUPct - avg.CPU},
			{"Mem", m.MemPct - avg.Mem},
			{"Disk", m.DiskPct - avg.Disk},
		} {
			if math.Abs(f.diff) > 10 {
				notes = append(notes, fmt.Sprintf("%s %s%% vs avg", f.name, signed(f.diff)))
			}
		}
		if len(notes) > 0 {
			lines = append(lines, "  vs Average: "+strings.Join(notes, " | "))
		}
	}
	if m.Fallbacks.Any() {
		lines = append(lines, "  estimated: "+strings.Join(fallbackFields(m.Fallbacks), ", "))
	}
	return strings.Join(lines, "\n")
}

func signed(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.0f", v)
	}
	return fmt.Sprintf("%.0f", v)
}

func fallbackFields(f metrics.Fallbacks) []string {
	var out []string
	if f.CPU {
		out = append(out, "cpu")
	}
	if f.Mem {
		out = append(out, "memory")
	}
	if f.Disk {
		out = append(out, "disk")
	}
	return out
}

// StatusColor returns the ANSI color for a load status.
func StatusColor(s metrics.Status) string {
	switch s {
	case metrics.StatusLow:
		return Green
	case metrics.StatusModerate:
		return Yellow
	default:
		return Red
	}
}

// RenderLoad prints a load report per host, annotated against the average.
func RenderLoad(ms []metrics.MachineMetrics, excluded []balancer.Exclusion) {
	avg := AveragesOf(ms)
	var avgp *Averages
	if len(ms) > 1 {
		avgp = &avg
	}
	for _, m := range ms {
		report := FormatLoadReport(m, avgp)
		head, rest, _ := strings.Cut(report, "\n")
		fmt.Printf("%s%s%s\n%s\n", StatusColor(m.Status), head, Reset, rest)
	}
	RenderExclusions(excluded)
}

// RenderExclusions lists hosts left out of a decision.
func RenderExclusions(excluded []balancer.Exclusion) {
	if len(excluded) == 0 {
		return
	}
	fmt.Printf("\n%sUnreachable:%s\n", Bold, Reset)
	for _, e := range excluded {
		fmt.Printf("  %s✗ %s%s  %s%s%s\n", Red, e.Host, Reset, Dim, e.Reason, Reset)
	}
}

// RenderSelection prints the chosen host and the ranking behind it.
func RenderSelection(sel balancer.Selection) {
	if !sel.Found() {
		fmt.Printf("%sNo host available.%s\n", Red, Reset)
		RenderExclusions(sel.Excluded)
		return
	}
	note := ""
	if sel.Preferred {
		note = " (preferred group)"
	}
	fmt.Printf("%sSelected:%s %s%s%s%s  score %.2f (%s)\n",
		Bold, Reset, StatusColor(sel.Metrics.Status), sel.Host, Reset, note, sel.Metrics.LoadScore, sel.Metrics.Status)
	if len(sel.Ranked) > 1 {
		fmt.Printf("\n%sRanking:%s\n", Bold, Reset)
		for i, m := range sel.Ranked {
			marker := "  "
			if m.Host == sel.Host {
				marker = fmt.Sprintf("%s→%s ", Yellow, Reset)
			}
			fmt.Printf("  %s%s%d%s  %-20s %.2f\n", marker, Dim, i+1, Reset, m.Host, m.LoadScore)
		}
	}
	RenderExclusions(sel.Excluded)
}

// RenderCapacity prints a group's averaged load.
func RenderCapacity(c balancer.Capacity) {
	fmt.Printf("%sGroup:%s    %s (%d/%d hosts measured)\n", Bold, Reset, c.Group, len(c.Hosts), c.Total())
	fmt.Printf("%sCapacity:%s %s%s%s\n", Bold, Reset, StatusColor(c.Status), c.Description, Reset)
	fmt.Printf("  avg score %.2f | CPU %.1f%% | Memory %.1f%% | Disk %.1f%%\n",
		c.AvgScore, c.AvgCPU, c.AvgMem, c.AvgDisk)
	RenderExclusions(c.Excluded)
}

// RenderDistribution prints the tasks assigned to each host.
func RenderDistribution(d balancer.Distribution) {
	if len(d.Hosts) == 0 {
		fmt.Printf("%sNo measurable hosts; nothing distributed.%s\n", Red, Reset)
		RenderExclusions(d.Excluded)
		return
	}
	for _, h := range d.Hosts {
		tasks := d.Assignments[h]
		fmt.Printf("%s%s%s  %s(%d tasks, projected load %.2f)%s\n", Bold, h, Reset, Dim, len(tasks), d.Load[h], Reset)
		for _, t := range tasks {
			fmt.Printf("  %s[%d]%s %s\n", Dim, t.EffectiveWeight(), Reset, t.Command)
		}
	}
	RenderExclusions(d.Excluded)
}
