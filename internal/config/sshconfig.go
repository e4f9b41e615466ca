package config

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSSHConfig returns ~/.ssh/config.
func DefaultSSHConfig() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ssh", "config")
	}
	return filepath.Join(home, ".ssh", "config")
}

// ParseSSHConfig reads Host blocks from an ssh config file into
// alias -> lowercase directive -> value. Wildcard patterns are skipped.
// A missing file yields an empty map.
func ParseSSHConfig(path string) (map[string]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	hosts := make(map[string]map[string]string)
	var current []string

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value := splitDirective(line)
		if strings.EqualFold(key, "host") {
			current = current[:0]
			for _, alias := range strings.Fields(value) {
				if strings.ContainsAny(alias, "*?") {
					continue
				}
				hosts[alias] = map[string]string{}
				current = append(current, alias)
			}
			continue
		}
		if strings.EqualFold(key, "match") {
			current = current[:0]
			continue
		}
		if value == "" {
			continue
		}
		for _, alias := range current {
			hosts[alias][strings.ToLower(key)] = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return hosts, nil
}

// SSHHosts returns the sorted aliases defined in an ssh config file.
func SSHHosts(path string) ([]string, error) {
	hosts, err := ParseSSHConfig(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(hosts))
	for alias := range hosts {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out, nil
}

// splitDirective splits "Key value" and "Key=value" forms.
func splitDirective(line string) (string, string) {
	idx := strings.IndexAny(line, " \t=")
	if idx < 0 {
		return line, ""
	}
	key := line[:idx]
	value := strings.TrimLeft(line[idx:], " \t=")
	return key, strings.TrimSpace(value)
}
