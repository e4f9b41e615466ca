package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/jorge-barreto/fleet/internal/balancer"
	"github.com/jorge-barreto/fleet/internal/config"
)

func sampleDistribution() balancer.Distribution {
	return balancer.Distribution{
		Hosts: []string{"web-01", "web-02"},
		Assignments: map[string][]config.Task{
			"web-01": {{Command: "make build", Weight: 5}},
			"web-02": {{Command: "make lint", Weight: 1}, {Command: "make test", Weight: 1}},
		},
		Load:     map[string]float64{"web-01": 0.7, "web-02": 0.4},
		Excluded: []balancer.Exclusion{{Host: "web-03", Reason: "unreachable"}},
	}
}

func TestNewPlan(t *testing.T) {
	p := NewPlan("nightly", sampleDistribution())

	if _, err := uuid.Parse(p.ID); err != nil {
		t.Fatalf("ID %q is not a uuid: %v", p.ID, err)
	}
	if p.Name != "nightly" {
		t.Fatalf("Name = %q, want nightly", p.Name)
	}
	if p.TaskCount() != 3 {
		t.Fatalf("TaskCount = %d, want 3", p.TaskCount())
	}
	if p.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be set")
	}
}

func TestPlan_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plans")
	p := NewPlan("", sampleDistribution())

	path, err := p.Save(dir)
	if err != nil {
		t.Fatal(err)
	}
	if path != PlanPath(dir, p.ID) {
		t.Fatalf("path = %q, want %q", path, PlanPath(dir, p.ID))
	}

	loaded, err := LoadPlan(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(p, loaded, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("plan mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestLoadPlan_Invalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	if _, err := LoadPlan(bad); err == nil {
		t.Fatal("expected parse error")
	}

	noID := filepath.Join(dir, "noid.json")
	os.WriteFile(noID, []byte(`{"hosts":["a"]}`), 0644)
	if _, err := LoadPlan(noID); err == nil {
		t.Fatal("expected missing id error")
	}
}

func savePlanAt(t *testing.T, dir, id string, created time.Time) *Plan {
	t.Helper()
	p := NewPlan("", sampleDistribution())
	p.ID = id
	p.CreatedAt = created
	if _, err := p.Save(dir); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestListPlans_OrderedByCreation(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	savePlanAt(t, dir, "bbbb", base.Add(time.Hour))
	savePlanAt(t, dir, "aaaa", base)
	savePlanAt(t, dir, "cccc", base.Add(2*time.Hour))

	plans, err := ListPlans(dir)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, p := range plans {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"aaaa", "bbbb", "cccc"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestListPlans_MissingDir(t *testing.T) {
	plans, err := ListPlans(filepath.Join(t.TempDir(), "none"))
	if err != nil || len(plans) != 0 {
		t.Fatalf("got %v, %v; want none", plans, err)
	}
}

func TestFindPlan(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	savePlanAt(t, dir, "abc-111", base)
	savePlanAt(t, dir, "abd-222", base.Add(time.Minute))
	savePlanAt(t, dir, "xyz-333", base.Add(2*time.Minute))

	cases := []struct {
		ref  string
		want string
	}{
		{"latest", "xyz-333"},
		{"", "xyz-333"},
		{"abc-111", "abc-111"},
		{"abd", "abd-222"},
		{"x", "xyz-333"},
		{PlanPath(dir, "abc-111"), "abc-111"},
	}
	for _, tc := range cases {
		p, err := FindPlan(dir, tc.ref)
		if err != nil {
			t.Fatalf("FindPlan(%q): %v", tc.ref, err)
		}
		if p.ID != tc.want {
			t.Fatalf("FindPlan(%q) = %s, want %s", tc.ref, p.ID, tc.want)
		}
	}

	if _, err := FindPlan(dir, "ab"); err == nil {
		t.Fatal("ambiguous prefix should fail")
	}
	if _, err := FindPlan(dir, "nope"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("got %v, want ErrPlanNotFound", err)
	}
	if _, err := FindPlan(t.TempDir(), "latest"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("empty dir: got %v, want ErrPlanNotFound", err)
	}
}
