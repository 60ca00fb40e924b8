package verify

import (
	"fmt"
	"regexp"
	"strings"
)

// securityRule is one pattern the scanner looks for. Patterns are matched
// per line so findings carry a line number.
type securityRule struct {
	name    string
	pattern *regexp.Regexp
	langs   []string // empty = all languages
}

var securityRules = []securityRule{
	{
		name:    "dynamic code evaluation",
		pattern: regexp.MustCompile(`\beval\s*\(`),
		langs:   []string{"javascript", "typescript", "node", "python"},
	},
	{
		name:    "shell command from string",
		pattern: regexp.MustCompile(`\b(os\.system|subprocess\.call|child_process|exec\.Command)\s*\(.*["'].*[$+%]`),
	},
	{
		name:    "hardcoded credential",
		pattern: regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|token)\s*[:=]\s*["'][^"']{4,}["']`),
	},
	{
		name:    "SQL built by string concatenation",
		pattern: regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\b.*["']\s*\+`),
	},
	{
		name:    "TLS verification disabled",
		pattern: regexp.MustCompile(`InsecureSkipVerify\s*:\s*true|verify\s*=\s*False|rejectUnauthorized\s*:\s*false`),
	},
	{
		name:    "pickle deserialization of untrusted data",
		pattern: regexp.MustCompile(`\bpickle\.loads?\s*\(`),
		langs:   []string{"python"},
	},
	{
		name:    "HTML sink from dynamic value",
		pattern: regexp.MustCompile(`innerHTML\s*=\s*[^"'` + "`" + `]`),
		langs:   []string{"javascript", "typescript", "node"},
	},
}

// ScanSecurity runs every rule over the candidate and returns one finding
// per rule hit. Findings feed rule 1 of the approval policy, so false
// positives cost a human review while false negatives cost an unreviewed
// merge; the rules lean toward firing.
func ScanSecurity(language, code string) []string {
	var issues []string

	lines := strings.Split(code, "\n")
	for _, rule := range securityRules {
		if !ruleApplies(rule, language) {
			continue
		}
		for i, line := range lines {
			if rule.pattern.MatchString(line) {
				issues = append(issues, fmt.Sprintf("%s (line %d)", rule.name, i+1))
				break // one finding per rule is enough to gate approval
			}
		}
	}

	return issues
}

func ruleApplies(rule securityRule, language string) bool {
	if len(rule.langs) == 0 {
		return true
	}
	for _, l := range rule.langs {
		if l == language {
			return true
		}
	}
	return false
}
