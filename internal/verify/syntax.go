package verify

import (
	"fmt"
	"go/parser"
	"go/token"
	"strings"
)

// CheckSyntax validates that code parses in its language. Go gets a real
// parse; other languages get a bracket/quote balance pass, which catches the
// truncated-output failure mode that matters most for model-generated code.
func CheckSyntax(language, code string) (bool, []string) {
	if strings.TrimSpace(code) == "" {
		return false, []string{"empty code"}
	}

	switch language {
	case "go", "golang":
		return checkGoSyntax(code)
	default:
		return checkBalance(code)
	}
}

func checkGoSyntax(code string) (bool, []string) {
	fset := token.NewFileSet()
	src := code

	// Model output for snippets often lacks a package clause; give it one so
	// the parser can do its job.
	if !strings.Contains(code, "package ") {
		src = "package main\n\n" + code
	}

	if _, err := parser.ParseFile(fset, "candidate.go", src, parser.AllErrors); err != nil {
		var msgs []string
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				msgs = append(msgs, line)
			}
		}
		return false, msgs
	}
	return true, nil
}

// checkBalance verifies brackets balance outside of strings and comments.
func checkBalance(code string) (bool, []string) {
	var stack []byte
	pairs := map[byte]byte{')': '(', ']': '[', '}': '{'}

	inString := byte(0) // current string delimiter, 0 = none
	escaped := false
	line := 1

	for i := 0; i < len(code); i++ {
		c := code[i]
		if c == '\n' {
			line++
			// Strings in most languages do not span lines; reset rather
			// than cascade one unterminated literal into every line below.
			if inString != 0 && inString != '`' {
				inString = 0
			}
			continue
		}
		if escaped {
			escaped = false
			continue
		}
		if inString != 0 {
			switch c {
			case '\\':
				escaped = true
			case inString:
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = c
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[c] {
				return false, []string{fmt.Sprintf("unbalanced %q near line %d", string(c), line)}
			}
			stack = stack[:len(stack)-1]
		}
	}

	if len(stack) > 0 {
		return false, []string{fmt.Sprintf("%d unclosed bracket(s)", len(stack))}
	}
	return true, nil
}
