// Package scaffold writes example fleet configuration for a new project.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jorge-barreto/fleet/internal/ux"
)

// Dir is the directory Init creates.
const Dir = ".fleet"

const tasksTemplate = `name: example
allow-dangerous: false

tasks:
  - command: make -C /srv/app test
    weight: 3
  - command: echo "task $TASK_INDEX on $HOST ($GROUP)"
  - command: df -h / | tail -1
`

const groupsTemplate = `# Copy to ~/.config/sshsync/config.yaml or point FLEET_SSHSYNC_CONFIG here.
# Every host must also have a Host entry in ~/.ssh/config.
groups:
  web:
    - web-01
    - web-02
  db:
    - db-01
`

const envTemplate = `# Load with: fleet --env-file .fleet/fleet.env <command>
FLEET_TIMEOUT=10s
FLEET_CONCURRENCY=8
FLEET_CORES=4
FLEET_LOG_LEVEL=info
FLEET_PLAN_DIR=.fleet/plans
`

type file struct {
	path    string
	content string
	desc    string
}

var files = []file{
	{"tasks.yaml", tasksTemplate, "example task file"},
	{"groups.example.yaml", groupsTemplate, "example sshsync groups"},
	{"fleet.env", envTemplate, "environment settings"},
	{".gitignore", "plans/\n", "ignores saved plans and run logs"},
}

// Init creates a .fleet/ directory in targetDir with example files.
func Init(targetDir string) error {
	dir := filepath.Join(targetDir, Dir)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%s directory already exists in %s", Dir, targetDir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", Dir, err)
	}

	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.path), []byte(f.content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
	}

	fmt.Printf("\n%s%s✓ Initialized %s/ directory%s\n\n", ux.Bold, ux.Green, Dir, ux.Reset)
	fmt.Printf("  Created:\n")
	for _, f := range files {
		fmt.Printf("    %s%-30s%s %s\n", ux.Cyan, filepath.Join(Dir, f.path), ux.Reset, f.desc)
	}
	fmt.Printf("\n  Next steps:\n")
	fmt.Printf("    1. Copy %s.fleet/groups.example.yaml%s to ~/.config/sshsync/config.yaml\n", ux.Cyan, ux.Reset)
	fmt.Printf("    2. Run %sfleet doctor --group web%s to check connectivity\n", ux.Cyan, ux.Reset)
	fmt.Printf("    3. Run %sfleet distribute --tasks .fleet/tasks.yaml --group web --save%s\n\n", ux.Cyan, ux.Reset)
	return nil
}
