package state

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRun_RecordAndFinish(t *testing.T) {
	r := NewRun("run-1", "plan-1", []string{"a", "b"})

	var wg sync.WaitGroup
	for _, h := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				r.RecordTask(h, TaskRun{Command: "true", Success: true})
			}
			r.SetHostStatus(h, StatusCompleted)
		}()
	}
	wg.Wait()

	if got := r.Finish(); got != StatusCompleted {
		t.Fatalf("Finish = %q, want completed", got)
	}
	if len(r.Hosts["a"].Tasks) != 10 || len(r.Hosts["b"].Tasks) != 10 {
		t.Fatalf("tasks = %d/%d, want 10/10", len(r.Hosts["a"].Tasks), len(r.Hosts["b"].Tasks))
	}
	if r.FinishedAt.IsZero() {
		t.Fatal("FinishedAt should be set")
	}
}

func TestRun_FinishStatus(t *testing.T) {
	cases := []struct {
		name   string
		status map[string]string
		want   string
	}{
		{"all completed", map[string]string{"a": StatusCompleted, "b": StatusCompleted}, StatusCompleted},
		{"one failed", map[string]string{"a": StatusFailed, "b": StatusCompleted}, StatusFailed},
		{"interrupted", map[string]string{"a": StatusInterrupted, "b": StatusCompleted}, StatusInterrupted},
		{"failed beats interrupted", map[string]string{"a": StatusInterrupted, "b": StatusFailed}, StatusFailed},
		{"skipped is fine", map[string]string{"a": StatusSkipped}, StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRun("r", "", nil)
			for h, s := range tc.status {
				r.SetHostStatus(h, s)
			}
			if got := r.Finish(); got != tc.want {
				t.Fatalf("Finish = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRun_FailedHosts(t *testing.T) {
	r := NewRun("r", "", []string{"c", "a", "b"})
	r.SetHostStatus("c", StatusFailed)
	r.SetHostStatus("a", StatusFailed)
	r.SetHostStatus("b", StatusCompleted)

	got := strings.Join(r.FailedHosts(), ",")
	if got != "a,c" {
		t.Fatalf("FailedHosts = %s, want a,c", got)
	}
}

func TestRun_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	r := NewRun("run-7", "plan-3", []string{"web-01"})
	r.RecordTask("web-01", TaskRun{Command: "uptime", Success: false, ExitCode: 2, Duration: "5ms", Error: "boom"})
	r.SetHostStatus("web-01", StatusFailed)
	r.Finish()

	if err := r.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadRun(dir, "run-7")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.PlanID != "plan-3" || loaded.Status != StatusFailed {
		t.Fatalf("loaded = %+v", loaded)
	}
	tr := loaded.Hosts["web-01"].Tasks[0]
	if tr.ExitCode != 2 || tr.Error != "boom" {
		t.Fatalf("task = %+v", tr)
	}

	if _, err := LoadRun(dir, "missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("got %v, want not-exist", err)
	}
}

func TestAppendHostLog(t *testing.T) {
	dir := t.TempDir()
	if err := AppendHostLog(dir, "run-1", "web-01", "first\n"); err != nil {
		t.Fatal(err)
	}
	if err := AppendHostLog(dir, "run-1", "web-01", "second\n"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(LogPath(dir, "run-1", "web-01"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("log = %q", string(data))
	}
}

func TestTiming_StartEndFlush(t *testing.T) {
	dir := t.TempDir()
	path := TimingPath(dir, "run-1")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}

	var tm Timing
	tm.AddStart("web-01")
	tm.AddStart("web-02")
	time.Sleep(5 * time.Millisecond)
	tm.AddEnd("web-01")
	if err := tm.Flush(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadTiming(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(loaded.Entries))
	}
	if loaded.Entries[0].Duration == "" {
		t.Fatal("web-01 should have a duration")
	}
	if !loaded.Entries[1].End.IsZero() {
		t.Fatal("web-02 was never ended")
	}
}

func TestLoadTiming_Missing(t *testing.T) {
	tm, err := LoadTiming(TimingPath(t.TempDir(), "none"))
	if err != nil || len(tm.Entries) != 0 {
		t.Fatalf("got %v, %v", tm, err)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		250 * time.Millisecond: "250ms",
		5 * time.Second:        "0m 05s",
		125 * time.Second:      "2m 05s",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Errorf("FormatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestLatestRun(t *testing.T) {
	dir := t.TempDir()
	if r, err := LatestRun(dir, "plan-1"); err != nil || r != nil {
		t.Fatalf("no runs: got %v, %v", r, err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, spec := range []struct{ id, plan string }{
		{"r1", "plan-1"}, {"r2", "plan-1"}, {"r3", "plan-2"},
	} {
		r := NewRun(spec.id, spec.plan, []string{"a"})
		r.StartedAt = base.Add(time.Duration(i) * time.Minute)
		if err := r.Save(dir); err != nil {
			t.Fatal(err)
		}
	}
	var tm Timing
	if err := tm.Flush(TimingPath(dir, "r2")); err != nil {
		t.Fatal(err)
	}

	r, err := LatestRun(dir, "plan-1")
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || r.ID != "r2" {
		t.Fatalf("LatestRun = %+v, want r2", r)
	}
}
