package approval

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// CountChangedLines computes the number of added plus removed lines between
// the prior code and the candidate. With no prior code every line of the
// candidate counts as changed.
func CountChangedLines(before, after string) int {
	if strings.TrimSpace(before) == "" {
		return countLines(after)
	}

	dmp := diffmatchpatch.New()

	// Line-mode diff: map lines to runes, diff the runes, count line deltas.
	beforeRunes, afterRunes, lines := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffMainRunes(beforeRunes, afterRunes, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	changed := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}
		changed += countLines(d.Text)
	}
	return changed
}

func countLines(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
