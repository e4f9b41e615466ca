package metrics

import (
	"context"
	"testing"
)

func TestSampleLocal_InRange(t *testing.T) {
	m := SampleLocal(context.Background())
	if m.Host == "" {
		t.Fatal("Host is empty")
	}
	for name, v := range map[string]float64{"cpu": m.CPUPct, "mem": m.MemPct, "disk": m.DiskPct} {
		if v < 0 || v > 100 {
			t.Fatalf("%s = %v, out of [0,100]", name, v)
		}
	}
	if m.LoadScore < 0 || m.LoadScore > 1 {
		t.Fatalf("LoadScore = %v", m.LoadScore)
	}
}
