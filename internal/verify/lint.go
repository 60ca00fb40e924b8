package verify

import (
	"fmt"
	"strings"
)

const maxLineLength = 160

// Lint applies lightweight style rules to a candidate. These are advisory:
// warnings block auto-approval only through the Validate gate, never the
// pipeline itself.
func Lint(language, code string) []string {
	var warnings []string

	lines := strings.Split(code, "\n")
	for i, line := range lines {
		n := i + 1

		if len(line) > maxLineLength {
			warnings = append(warnings, fmt.Sprintf("line %d exceeds %d characters", n, maxLineLength))
		}

		trimmed := strings.TrimSpace(line)
		if strings.Contains(trimmed, "TODO") || strings.Contains(trimmed, "FIXME") {
			warnings = append(warnings, fmt.Sprintf("line %d contains an unresolved TODO/FIXME marker", n))
		}

		if isDebugPrint(language, trimmed) {
			warnings = append(warnings, fmt.Sprintf("line %d contains a debug print", n))
		}

		// Mixed indentation within one line reads as a paste accident.
		if strings.HasPrefix(line, " \t") || strings.HasPrefix(line, "\t ") {
			warnings = append(warnings, fmt.Sprintf("line %d mixes tabs and spaces in indentation", n))
		}
	}

	return warnings
}

func isDebugPrint(language, line string) bool {
	switch language {
	case "go", "golang":
		return strings.HasPrefix(line, "fmt.Println(") && strings.Contains(line, "DEBUG")
	case "javascript", "typescript", "node":
		return strings.HasPrefix(line, "console.log(")
	case "python":
		return strings.HasPrefix(line, "print(") && strings.Contains(strings.ToLower(line), "debug")
	default:
		return false
	}
}
