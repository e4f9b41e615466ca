package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"

	"github.com/jorge-barreto/fleet/internal/config"
)

func TestInit_CreatesFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	for _, f := range files {
		full := filepath.Join(dir, Dir, f.path)
		info, err := os.Stat(full)
		if err != nil {
			t.Fatalf("%s not created: %v", f.path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", f.path)
		}
	}
}

func TestInit_GeneratedTasksAreValid(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	tf, err := config.LoadTasks(filepath.Join(dir, Dir, "tasks.yaml"))
	if err != nil {
		t.Fatalf("LoadTasks failed on generated file: %v", err)
	}
	if len(tf.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tf.Tasks))
	}
	if tf.Tasks[0].Weight != 3 || tf.Tasks[1].Weight != 1 {
		t.Errorf("weights = %d,%d, want 3,1", tf.Tasks[0].Weight, tf.Tasks[1].Weight)
	}
}

func TestInit_GeneratedGroupsParse(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	groups, err := config.LoadGroups(filepath.Join(dir, Dir, "groups.example.yaml"))
	if err != nil {
		t.Fatalf("LoadGroups: %v", err)
	}
	if got := strings.Join(groups["web"], ","); got != "web-01,web-02" {
		t.Errorf("web = %q, want web-01,web-02", got)
	}
}

func TestInit_GeneratedEnvParses(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	env, err := godotenv.Read(filepath.Join(dir, Dir, "fleet.env"))
	if err != nil {
		t.Fatalf("godotenv.Read: %v", err)
	}
	if env["FLEET_TIMEOUT"] != "10s" {
		t.Errorf("FLEET_TIMEOUT = %q, want 10s", env["FLEET_TIMEOUT"])
	}
}

func TestInit_FailsIfDirExists(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, Dir), 0755); err != nil {
		t.Fatal(err)
	}

	err := Init(dir)
	if err == nil {
		t.Fatal("expected error when .fleet already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected error containing 'already exists', got: %s", err)
	}
}
