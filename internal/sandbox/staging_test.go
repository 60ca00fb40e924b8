package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStageCopiesTree(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeTree(t, src, map[string]string{
		"main.go":          "package main\n",
		"pkg/util/util.go": "package util\n",
	})

	if err := Stage(src, dst); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	for _, rel := range []string{"main.go", "pkg/util/util.go"} {
		data, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil {
			t.Errorf("missing %s: %v", rel, err)
			continue
		}
		if len(data) == 0 {
			t.Errorf("%s copied empty", rel)
		}
	}
}

func TestStageHonorsGitignoreAndSkipsGit(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeTree(t, src, map[string]string{
		".gitignore":      "build/\n*.log\n",
		"main.go":         "package main\n",
		"build/out.bin":   "binary",
		"debug.log":       "noise",
		".git/HEAD":       "ref: refs/heads/main",
		"src/keep.go":     "package src\n",
	})

	if err := Stage(src, dst); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	for _, rel := range []string{"build/out.bin", "debug.log", ".git/HEAD"} {
		if _, err := os.Stat(filepath.Join(dst, rel)); err == nil {
			t.Errorf("%s must not be staged", rel)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "src/keep.go")); err != nil {
		t.Errorf("src/keep.go missing: %v", err)
	}
}
