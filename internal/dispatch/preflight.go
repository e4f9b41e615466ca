package dispatch

import (
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Preflight checks that the given binaries are available on PATH.
func Preflight(bins ...string) error {
	needed := make(map[string]bool)
	for _, b := range bins {
		if b != "" {
			needed[b] = true
		}
	}

	var missing []string
	for bin := range needed {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("required binaries not found in PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}
