package ux

import (
	"fmt"
	"os"
	"time"

	"github.com/jorge-barreto/fleet/internal/state"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// StepHeader prints a timestamped workflow header.
func StepHeader(title string) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Printf("%s[%s]%s  %s%s%s\n", Dim, timestamp(), Reset, Bold, title, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// HostStart prints the start of a host's work.
func HostStart(host string, tasks int) {
	fmt.Printf("%s[%s]%s  %s→ %s%s (%d tasks)\n",
		Dim, timestamp(), Reset, Cyan, host, Reset, tasks)
}

// TaskComplete prints a successful command.
func TaskComplete(host, command string, d time.Duration) {
	fmt.Printf("%s[%s]%s  %s✓ %s%s %s %s(%s)%s\n",
		Dim, timestamp(), Reset, Green, host, Reset, truncate(command, 60), Dim, state.FormatDuration(d), Reset)
}

// TaskFail prints a failed command.
func TaskFail(host, command, errMsg string) {
	fmt.Printf("%s[%s]%s  %s✗ %s%s %s: %s%s%s\n",
		Dim, timestamp(), Reset, Red, host, Reset, truncate(command, 60), Red, errMsg, Reset)
}

// HostSkip prints a host whose remaining work was skipped.
func HostSkip(host, reason string) {
	fmt.Printf("%s[%s]%s  %s– %s skipped (%s)%s\n",
		Dim, timestamp(), Reset, Dim, host, reason, Reset)
}

// Waiting prints a pause between rolling steps.
func Waiting(d time.Duration, next string) {
	fmt.Printf("%s[%s]%s  %s… waiting %s before %s%s\n",
		Dim, timestamp(), Reset, Dim, d, next, Reset)
}

// RerunHint prints how to retry the failed hosts of a plan.
func RerunHint(planID string, failed []string) {
	if len(failed) == 0 {
		return
	}
	fmt.Printf("\n%sRetry:%s fleet run-plan %s --only-failed\n", Yellow, Reset, planID)
}

// RunSummary prints the final line of a plan run or restart.
func RunSummary(status string, hosts, failed int, d time.Duration) {
	color := Green
	if status != state.StatusCompleted {
		color = Red
	}
	fmt.Printf("\n%s[%s]%s  %s%s══ %s: %d hosts, %d failed (%s) ══%s\n\n",
		Dim, timestamp(), Reset, Bold, color, status, hosts, failed, state.FormatDuration(d), Reset)
}

// Warn prints a yellow warning to stderr.
func Warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%swarning:%s %s\n", Yellow, Reset, fmt.Sprintf(format, args...))
}

// Error prints a red error to stderr.
func Error(err error) {
	fmt.Fprintf(os.Stderr, "%serror:%s %v\n", Red, Reset, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
