package dispatch

import (
	"regexp"
	"strconv"
)

// TaskVars returns the substitution map for a task command placed on host.
func TaskVars(host, group string, index int) map[string]string {
	return map[string]string{
		"HOST":       host,
		"GROUP":      group,
		"TASK_INDEX": strconv.Itoa(index),
	}
}

var varRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandVars substitutes $NAME and ${NAME} references found in vars.
// Anything else, including $(...), $1 and unknown names, is left for the
// remote shell.
func ExpandVars(template string, vars map[string]string) string {
	return varRe.ReplaceAllStringFunc(template, func(match string) string {
		sub := varRe.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}
