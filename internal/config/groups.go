package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type sshsyncFile struct {
	Groups map[string][]string `yaml:"groups"`
}

// DefaultSSHSyncConfig returns ~/.config/sshsync/config.yaml.
func DefaultSSHSyncConfig() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "sshsync", "config.yaml")
	}
	return filepath.Join(home, ".config", "sshsync", "config.yaml")
}

// LoadGroups reads the groups section of an sshsync config.
// A missing file yields no groups and no error.
func LoadGroups(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return nil, err
	}
	var f sshsyncFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sshsync config %s: %w", path, err)
	}
	if f.Groups == nil {
		f.Groups = map[string][]string{}
	}
	return f.Groups, nil
}

// GroupFile provides group membership from an sshsync config file,
// re-reading it on every call.
type GroupFile struct {
	Path string
}

// Groups loads the current group mapping.
func (g GroupFile) Groups() (map[string][]string, error) {
	path := g.Path
	if path == "" {
		path = DefaultSSHSyncConfig()
	}
	return LoadGroups(path)
}

// GroupsForHost returns the sorted names of every group containing host.
func GroupsForHost(host string, groups map[string][]string) []string {
	var out []string
	for name, hosts := range groups {
		for _, h := range hosts {
			if h == host {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// HostsInGroup returns the members of group in declaration order.
func HostsInGroup(group string, groups map[string][]string) []string {
	return groups[group]
}

// AllHosts returns every host across all groups, deduplicated, ordered by
// group name then declaration order.
func AllHosts(groups map[string][]string) []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	var out []string
	for _, name := range names {
		for _, h := range groups[name] {
			if !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}
