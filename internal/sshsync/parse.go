package sshsync

import "strings"

// ParseStatus parses `sshsync ls --with-status` output. Header and
// separator lines are skipped; a host is online when its status reads
// online, reachable or a check mark.
func ParseStatus(out string) []HostStatus {
	var hosts []HostStatus
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "---") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 || parts[0] == "Host" {
			continue
		}
		hosts = append(hosts, HostStatus{
			Host:   parts[0],
			Online: isOnline(parts[1]),
			Status: parts[1],
		})
	}
	return hosts
}

func isOnline(status string) bool {
	switch strings.ToLower(status) {
	case "online", "reachable", "✓":
		return true
	}
	return false
}

// Summarize counts hosts by reachability.
func Summarize(hosts []HostStatus) Summary {
	s := Summary{Total: len(hosts)}
	for _, h := range hosts {
		if h.Online {
			s.Online++
		}
	}
	s.Offline = s.Total - s.Online
	if s.Total > 0 {
		s.AvailabilityPct = float64(s.Online) / float64(s.Total) * 100
	}
	return s
}
