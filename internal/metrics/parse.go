package metrics

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// LoadAverage holds the 1, 5 and 15 minute load averages.
type LoadAverage struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// MemoryUsage is a memory summary in MiB.
type MemoryUsage struct {
	Total  int64
	Used   int64
	Free   int64
	UsePct float64
}

// DiskUsage is one row of df output.
type DiskUsage struct {
	Filesystem string
	Size       string
	Used       string
	Available  string
	UsePct     int
	Mount      string
}

// Linux prints "load average: a, b, c"; BSD and macOS print
// "load averages: a b c".
var loadAvgRe = regexp.MustCompile(`load averages?:\s+([\d.]+),?\s+([\d.]+),?\s+([\d.]+)`)

// ParseCPULoad extracts load averages from uptime output.
func ParseCPULoad(output string) (LoadAverage, bool) {
	m := loadAvgRe.FindStringSubmatch(output)
	if m == nil {
		return LoadAverage{}, false
	}
	var vals [3]float64
	for i := range vals {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return LoadAverage{}, false
		}
		vals[i] = v
	}
	return LoadAverage{Load1: vals[0], Load5: vals[1], Load15: vals[2]}, true
}

// ParseMemoryUsage reads either `free -m` output (the "Mem:" row) or
// macOS vm_stat output.
func ParseMemoryUsage(output string) (MemoryUsage, bool) {
	if strings.Contains(output, "Pages free") {
		return parseVMStat(output)
	}
	return parseFree(output)
}

func parseFree(output string) (MemoryUsage, bool) {
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Mem:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 3 {
			return MemoryUsage{}, false
		}
		total, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return MemoryUsage{}, false
		}
		used, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return MemoryUsage{}, false
		}
		free := total - used
		if len(parts) > 3 {
			if f, err := strconv.ParseInt(parts[3], 10, 64); err == nil {
				free = f
			}
		}
		if total <= 0 {
			return MemoryUsage{}, false
		}
		return MemoryUsage{
			Total:  total,
			Used:   used,
			Free:   free,
			UsePct: float64(used) / float64(total) * 100,
		}, true
	}
	return MemoryUsage{}, false
}

var pageSizeRe = regexp.MustCompile(`page size of (\d+) bytes`)

func parseVMStat(output string) (MemoryUsage, bool) {
	pageSize := int64(4096)
	if m := pageSizeRe.FindStringSubmatch(output); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil && v > 0 {
			pageSize = v
		}
	}

	pages := make(map[string]int64)
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimSpace(val), "."), 10, 64)
		if err != nil {
			continue
		}
		pages[strings.TrimSpace(key)] = n
	}

	used := pages["Pages active"] + pages["Pages wired down"] + pages["Pages occupied by compressor"]
	free := pages["Pages free"] + pages["Pages inactive"] + pages["Pages speculative"]
	total := used + free
	if total <= 0 {
		return MemoryUsage{}, false
	}

	const mib = 1024 * 1024
	return MemoryUsage{
		Total:  total * pageSize / mib,
		Used:   used * pageSize / mib,
		Free:   free * pageSize / mib,
		UsePct: float64(used) / float64(total) * 100,
	}, true
}

// ParseDiskUsage reads the last non-empty row of df output. A lone header
// row does not parse.
func ParseDiskUsage(output string) (DiskUsage, bool) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	parts := strings.Fields(last)
	if len(parts) < 6 {
		return DiskUsage{}, false
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(parts[4], "%"))
	if err != nil {
		return DiskUsage{}, false
	}
	return DiskUsage{
		Filesystem: parts[0],
		Size:       parts[1],
		Used:       parts[2],
		Available:  parts[3],
		UsePct:     pct,
		Mount:      strings.Join(parts[5:], " "),
	}, true
}
