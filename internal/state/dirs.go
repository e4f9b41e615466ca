package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates the plan directory layout:
//
//	<dir>/<plan-id>.json
//	<dir>/runs/<run-id>.json
//	<dir>/logs/<run-id>/<host>.log
func EnsureDir(dir string) error {
	for _, d := range []string{dir, filepath.Join(dir, "runs"), filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating plan dir %s: %w", d, err)
		}
	}
	return nil
}

// PlanPath returns the file a plan with the given ID is stored in.
func PlanPath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

// RunPath returns the file a run record is stored in.
func RunPath(dir, runID string) string {
	return filepath.Join(dir, "runs", runID+".json")
}

// TimingPath returns the file a run's timing data is stored in.
func TimingPath(dir, runID string) string {
	return filepath.Join(dir, "runs", runID+".timing.json")
}

// LogPath returns the output log for one host within a run.
func LogPath(dir, runID, host string) string {
	return filepath.Join(dir, "logs", runID, host+".log")
}

// AppendHostLog appends content to a host's log for a run.
func AppendHostLog(dir, runID, host, content string) error {
	path := LogPath(dir, runID, host)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
