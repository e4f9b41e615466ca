package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/config"
)

var ErrPlanNotFound = errors.New("plan not found")

// Plan is a saved task distribution, written by `fleet distribute --save`
// and executed later by `fleet run-plan`.
type Plan struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name,omitempty"`
	Group       string                   `json:"group,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	Hosts       []string                 `json:"hosts"`
	Assignments map[string][]config.Task `json:"assignments"`
	Load        map[string]float64       `json:"load,omitempty"`
	Excluded    []balancer.Exclusion     `json:"excluded,omitempty"`
}

// NewPlan captures a distribution under a fresh ID.
func NewPlan(name string, d balancer.Distribution) *Plan {
	return &Plan{
		ID:          uuid.NewString(),
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		Hosts:       d.Hosts,
		Assignments: d.Assignments,
		Load:        d.Load,
		Excluded:    d.Excluded,
	}
}

// TaskCount returns the number of tasks across all hosts.
func (p *Plan) TaskCount() int {
	n := 0
	for _, ts := range p.Assignments {
		n += len(ts)
	}
	return n
}

// Save writes the plan into dir and returns its path.
func (p *Plan) Save(dir string) (string, error) {
	if err := EnsureDir(dir); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", err
	}
	path := PlanPath(dir, p.ID)
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("saving plan: %w", err)
	}
	return path, nil
}

// LoadPlan reads a plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan %s: %w", path, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("parsing plan %s: missing id", path)
	}
	return &p, nil
}

// ListPlans returns the plans in dir, oldest first. A missing dir has none.
func ListPlans(dir string) ([]*Plan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var plans []*Plan
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p, err := LoadPlan(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].CreatedAt.Before(plans[j].CreatedAt)
	})
	return plans, nil
}

// FindPlan resolves ref to a plan in dir. ref may be a file path, "latest",
// a full plan ID, or an unambiguous ID prefix.
func FindPlan(dir, ref string) (*Plan, error) {
	if strings.HasSuffix(ref, ".json") {
		if _, err := os.Stat(ref); err == nil {
			return LoadPlan(ref)
		}
	}
	plans, err := ListPlans(dir)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plans in %s", ErrPlanNotFound, dir)
	}
	if ref == "" || ref == "latest" {
		return plans[len(plans)-1], nil
	}

	var matches []*Plan
	for _, p := range plans {
		if p.ID == ref {
			return p, nil
		}
		if strings.HasPrefix(p.ID, ref) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("plan prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}
