package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTasks(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tasks.yaml", `name: nightly
tasks:
  - command: make build
    weight: 5
  - command: make lint
  - command: make test
    weight: 2
`)
	tf, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Task{{"make build", 5}, {"make lint", 1}, {"make test", 2}}
	if diff := cmp.Diff(want, tf.Tasks); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
	if tf.Name != "nightly" {
		t.Fatalf("name = %q, want nightly", tf.Name)
	}
}

func TestLoadTasks_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "tasks:\n  - command: [unclosed\n")
	if _, err := LoadTasks(path); err == nil {
		t.Fatal("expected parse error")
	}

	path = writeFile(t, dir, "neg.yaml", "tasks:\n  - command: x\n    weight: -2\n")
	if _, err := LoadTasks(path); !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}

	if _, err := LoadTasks(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v, want ErrNotExist", err)
	}
}

func TestLoadGroups(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `groups:
  web: [web-01, web-02]
  db:
    - db-01
hosts:
  - name: ignored
`)
	groups, err := LoadGroups(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string][]string{"web": {"web-01", "web-02"}, "db": {"db-01"}}
	if diff := cmp.Diff(want, groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGroups_MissingFile(t *testing.T) {
	groups, err := LoadGroups(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("groups = %v, want empty", groups)
	}
}

func TestLoadGroups_NoGroupsKey(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "hosts: []\n")
	groups, err := LoadGroups(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if groups == nil || len(groups) != 0 {
		t.Fatalf("groups = %#v, want empty non-nil map", groups)
	}
}

func TestGroupFile_RereadsOnEveryCall(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "groups:\n  web: [a]\n")
	gf := GroupFile{Path: path}

	g1, err := gf.Groups()
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "config.yaml", "groups:\n  web: [a, b]\n")
	g2, err := gf.Groups()
	if err != nil {
		t.Fatal(err)
	}
	if len(g1["web"]) != 1 || len(g2["web"]) != 2 {
		t.Fatalf("first = %v, second = %v; want second read to see the edit", g1, g2)
	}
}

func TestGroupHelpers(t *testing.T) {
	groups := map[string][]string{
		"web":  {"web-01", "shared"},
		"db":   {"db-01", "shared"},
		"edge": {"web-01"},
	}
	if diff := cmp.Diff([]string{"db", "web"}, GroupsForHost("shared", groups)); diff != "" {
		t.Errorf("GroupsForHost (-want +got):\n%s", diff)
	}
	if got := GroupsForHost("nobody", groups); len(got) != 0 {
		t.Errorf("GroupsForHost(nobody) = %v, want empty", got)
	}
	if diff := cmp.Diff([]string{"db-01", "shared", "web-01"}, AllHosts(groups)); diff != "" {
		t.Errorf("AllHosts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"web-01", "shared"}, HostsInGroup("web", groups)); diff != "" {
		t.Errorf("HostsInGroup (-want +got):\n%s", diff)
	}
}

func TestParseSSHConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config", `# personal
Host *
    ServerAliveInterval 60

Host web-01 web-01.alias
    HostName 10.0.0.5
    User deploy

Host db-?
    User nobody

Host db-01
    HostName=10.0.0.9
    Port 2222
`)
	hosts, err := ParseSSHConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]map[string]string{
		"web-01":       {"hostname": "10.0.0.5", "user": "deploy"},
		"web-01.alias": {"hostname": "10.0.0.5", "user": "deploy"},
		"db-01":        {"hostname": "10.0.0.9", "port": "2222"},
	}
	if diff := cmp.Diff(want, hosts); diff != "" {
		t.Fatalf("ssh config mismatch (-want +got):\n%s", diff)
	}

	aliases, err := SSHHosts(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"db-01", "web-01", "web-01.alias"}, aliases); diff != "" {
		t.Fatalf("SSHHosts (-want +got):\n%s", diff)
	}
}

func TestParseSSHConfig_Missing(t *testing.T) {
	hosts, err := ParseSSHConfig(filepath.Join(t.TempDir(), "none"))
	if err != nil || len(hosts) != 0 {
		t.Fatalf("got %v, %v; want empty, nil", hosts, err)
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	for _, k := range []string{"FLEET_TIMEOUT", "FLEET_CONCURRENCY", "FLEET_CORES", "FLEET_SSH_BIN", "FLEET_LOG_LEVEL", "FLEET_PLAN_DIR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("FLEET_SSHSYNC_CONFIG", "/tmp/sshsync.yaml")

	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Timeout != 10*time.Second || s.Concurrency != 8 || s.Cores != 4 {
		t.Fatalf("settings = %+v, want 10s/8/4 defaults", s)
	}
	if s.SSHBinary != "ssh" || s.LogLevel != "info" || s.PlanDir != ".fleet/plans" {
		t.Fatalf("settings = %+v", s)
	}
	if s.SSHSyncConfig != "/tmp/sshsync.yaml" {
		t.Fatalf("SSHSyncConfig = %q", s.SSHSyncConfig)
	}
	if s.SSHConfig == "" {
		t.Fatal("SSHConfig should default to ~/.ssh/config")
	}
}

func TestLoadSettings_DotEnv(t *testing.T) {
	t.Setenv("FLEET_CONCURRENCY", "3")
	t.Setenv("FLEET_CORES", "")
	os.Unsetenv("FLEET_CORES")

	path := writeFile(t, t.TempDir(), ".env", "FLEET_CORES=16\nFLEET_CONCURRENCY=99\n")
	t.Cleanup(func() { os.Unsetenv("FLEET_CORES") })

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Cores != 16 {
		t.Fatalf("Cores = %g, want 16 from .env", s.Cores)
	}
	if s.Concurrency != 3 {
		t.Fatalf("Concurrency = %d, want 3 (environment wins over .env)", s.Concurrency)
	}
}

func TestLoadSettings_MissingDotEnvIgnored(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	cases := map[string]string{
		"FLEET_TIMEOUT":     "0s",
		"FLEET_CONCURRENCY": "0",
		"FLEET_CORES":       "-1",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := LoadSettings(""); !errors.Is(err, ErrValidation) {
				t.Fatalf("%s=%s: got %v, want ErrValidation", k, v, err)
			}
		})
	}
}
