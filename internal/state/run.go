package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
	StatusSkipped     = "skipped"
)

// TaskRun is the outcome of one command on one host.
type TaskRun struct {
	Command  string `json:"command"`
	Success  bool   `json:"success"`
	ExitCode int    `json:"exit_code"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// HostRun collects the task outcomes of one host.
type HostRun struct {
	Status string    `json:"status"`
	Tasks  []TaskRun `json:"tasks"`
}

// Run records the execution of a plan. Methods are safe for concurrent use
// by the per-host workers.
type Run struct {
	mu         sync.Mutex
	ID         string              `json:"id"`
	PlanID     string              `json:"plan_id,omitempty"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at,omitempty"`
	Hosts      map[string]*HostRun `json:"hosts"`
}

// NewRun starts a record for the given hosts, all pending.
func NewRun(id, planID string, hosts []string) *Run {
	r := &Run{
		ID:        id,
		PlanID:    planID,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Hosts:     make(map[string]*HostRun, len(hosts)),
	}
	for _, h := range hosts {
		r.Hosts[h] = &HostRun{Status: StatusRunning}
	}
	return r
}

// RecordTask appends a task outcome for host.
func (r *Run) RecordTask(host string, tr TaskRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hr := r.host(host)
	hr.Tasks = append(hr.Tasks, tr)
}

// SetHostStatus sets the final status of host.
func (r *Run) SetHostStatus(host, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.host(host).Status = status
}

// Finish stamps the overall status: failed if any host failed,
// interrupted if any host was cut short, completed otherwise.
func (r *Run) Finish() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now().UTC()
	r.Status = StatusCompleted
	for _, hr := range r.Hosts {
		switch hr.Status {
		case StatusFailed:
			r.Status = StatusFailed
		case StatusInterrupted, StatusRunning:
			if r.Status != StatusFailed {
				r.Status = StatusInterrupted
			}
		}
	}
	return r.Status
}

// FailedHosts returns the sorted hosts whose status is failed.
func (r *Run) FailedHosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for h, hr := range r.Hosts {
		if hr.Status == StatusFailed {
			out = append(out, h)
		}
	}
	sort.Strings(out)
	return out
}

// Save writes the run record into dir.
func (r *Run) Save(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := EnsureDir(dir); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(RunPath(dir, r.ID), data, 0644)
}

func (r *Run) host(h string) *HostRun {
	hr, ok := r.Hosts[h]
	if !ok {
		hr = &HostRun{Status: StatusRunning}
		r.Hosts[h] = hr
	}
	return hr
}

// LatestRun returns the most recently started run of planID, or nil when
// the plan has never run.
func LatestRun(dir, planID string) (*Run, error) {
	entries, err := os.ReadDir(filepath.Join(dir, "runs"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var latest *Run
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".timing.json") || strings.HasPrefix(name, ".") {
			continue
		}
		r, err := LoadRun(dir, strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if r.PlanID != planID {
			continue
		}
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	return latest, nil
}

// LoadRun reads a run record from dir.
func LoadRun(dir, runID string) (*Run, error) {
	data, err := os.ReadFile(RunPath(dir, runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		return nil, err
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
