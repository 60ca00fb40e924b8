package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// Stage copies a source tree into dst, honoring the source's .gitignore and
// always skipping .git. Files are copied with a bounded worker group; one
// unreadable file fails the whole stage since a partial workspace would make
// test results meaningless.
func Stage(srcRoot, dst string) error {
	srcRoot, err := filepath.Abs(srcRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve source root: %w", err)
	}

	var matcher *gitignore.GitIgnore
	if ign, err := gitignore.CompileIgnoreFile(filepath.Join(srcRoot, ".gitignore")); err == nil {
		matcher = ign
	}

	var g errgroup.Group
	g.SetLimit(8)

	walkErr := filepath.WalkDir(srcRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		g.Go(func() error {
			return copyFile(path, target)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to stage workspace: %w", err)
	}
	if walkErr != nil {
		return fmt.Errorf("failed to walk source tree: %w", walkErr)
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
