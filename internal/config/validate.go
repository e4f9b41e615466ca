package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// ErrValidation is wrapped by every validator in this package.
var ErrValidation = errors.New("invalid parameter")

const (
	MinTimeout = 1 * time.Second
	MaxTimeout = 600 * time.Second
)

var (
	hostRe  = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	groupRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`mkfs\.`),
	regexp.MustCompile(`dd\s+.*of=/dev/`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`),
}

const forkBomb = ":(){:|:&};:"

// ValidateHost checks a host name and, when known is non-empty, that it
// matches one of the known hosts case-insensitively. It returns the
// trimmed name.
func ValidateHost(host string, known []string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("%w: host cannot be empty", ErrValidation)
	}
	if !hostRe.MatchString(host) {
		return "", fmt.Errorf("%w: host %q contains invalid characters", ErrValidation, host)
	}
	if len(known) == 0 {
		return host, nil
	}
	for _, k := range known {
		if strings.EqualFold(k, host) {
			return host, nil
		}
	}
	if similar := similarNames(host, known); len(similar) > 0 {
		return "", fmt.Errorf("%w: unknown host %q (did you mean: %s?)", ErrValidation, host, strings.Join(similar, ", "))
	}
	return "", fmt.Errorf("%w: unknown host %q", ErrValidation, host)
}

// ValidateGroup lowercases and checks a group name against the allowed
// character set and, when known is non-empty, the known group names.
func ValidateGroup(group string, known []string) (string, error) {
	group = strings.ToLower(strings.TrimSpace(group))
	if group == "" {
		return "", fmt.Errorf("%w: group cannot be empty", ErrValidation)
	}
	if !groupRe.MatchString(group) {
		return "", fmt.Errorf("%w: group %q must be lowercase letters, digits, '-' or '_'", ErrValidation, group)
	}
	if len(known) == 0 {
		return group, nil
	}
	for _, k := range known {
		if k == group {
			return group, nil
		}
	}
	return "", fmt.Errorf("%w: unknown group %q (available: %s)", ErrValidation, group, strings.Join(known, ", "))
}

// ValidateTimeout checks that d lies within [MinTimeout, MaxTimeout].
func ValidateTimeout(d time.Duration) error {
	if d < MinTimeout {
		return fmt.Errorf("%w: timeout must be at least %s, got %s", ErrValidation, MinTimeout, d)
	}
	if d > MaxTimeout {
		return fmt.Errorf("%w: timeout must be at most %s, got %s", ErrValidation, MaxTimeout, d)
	}
	return nil
}

// ValidatePreferWindow rejects prefer windows that are not positive.
func ValidatePreferWindow(w float64) error {
	if math.IsNaN(w) || w <= 0 {
		return fmt.Errorf("%w: prefer window must be positive, got %v", ErrValidation, w)
	}
	return nil
}

// ValidateCommand rejects empty commands and, unless allowDangerous is
// set, commands matching a destructive pattern.
func ValidateCommand(cmd string, allowDangerous bool) (string, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return "", fmt.Errorf("%w: command cannot be empty", ErrValidation)
	}
	if allowDangerous {
		return cmd, nil
	}
	if strings.Contains(strings.Join(strings.Fields(cmd), ""), forkBomb) {
		return "", fmt.Errorf("%w: command %q looks like a fork bomb", ErrValidation, cmd)
	}
	for _, re := range dangerousPatterns {
		if re.MatchString(cmd) {
			return "", fmt.Errorf("%w: command %q matches dangerous pattern %s", ErrValidation, cmd, re)
		}
	}
	return cmd, nil
}

// ValidateHosts splits a comma-separated host list and validates each
// entry. Duplicates are dropped, order is kept.
func ValidateHosts(list string, known []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := ValidateHost(part, known)
		if err != nil {
			return nil, err
		}
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: host list cannot be empty", ErrValidation)
	}
	return out, nil
}

// ValidateTaskFile checks every task and fills in default weights.
func ValidateTaskFile(tf *TaskFile) error {
	if len(tf.Tasks) == 0 {
		return fmt.Errorf("%w: task file has no tasks", ErrValidation)
	}
	for i := range tf.Tasks {
		t := &tf.Tasks[i]
		cmd, err := ValidateCommand(t.Command, tf.AllowDangerous)
		if err != nil {
			return fmt.Errorf("task %d: %w", i+1, err)
		}
		t.Command = cmd
		if t.Weight < 0 {
			return fmt.Errorf("task %d: %w: weight must not be negative, got %d", i+1, ErrValidation, t.Weight)
		}
		if t.Weight == 0 {
			t.Weight = 1
		}
	}
	return nil
}

// similarNames returns up to three known names sharing a prefix or
// substring with name.
func similarNames(name string, known []string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, k := range known {
		kl := strings.ToLower(k)
		if strings.Contains(kl, lower) || strings.Contains(lower, kl) ||
			(len(lower) >= 3 && strings.HasPrefix(kl, lower[:3])) {
			out = append(out, k)
			if len(out) == 3 {
				break
			}
		}
	}
	return out
}
