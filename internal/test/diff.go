package test

import (
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/tracemap/tracemap/internal/logger"
)

// Diff compares two strings line by line. Removed lines are marked with "-"
// and added lines with "+".
func Diff(old string, new string, color bool) string {
	diff := cmp.Diff(strings.Split(old, "\n"), strings.Split(new, "\n"))
	if !color {
		return diff
	}

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch trimmed := strings.TrimLeft(line, " \t"); {
		case strings.HasPrefix(trimmed, "-"):
			lines[i] = logger.TerminalColors.Red + line + logger.TerminalColors.Reset
		case strings.HasPrefix(trimmed, "+"):
			lines[i] = logger.TerminalColors.Green + line + logger.TerminalColors.Reset
		}
	}
	return strings.Join(lines, "\n")
}
