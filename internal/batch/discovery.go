package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// selector decides which files a batch picks up. Patterns match base names
// with filepath.Match syntax; excludes win over includes. Without include
// patterns every supported image is taken.
type selector struct {
	include []string
	exclude []string
}

func newSelector(cfg *Config) selector {
	return selector{include: cfg.IncludePatterns, exclude: cfg.ExcludePatterns}
}

func (s selector) excluded(path string) bool {
	return matchesAnyPattern(path, s.exclude)
}

func (s selector) wants(path string) bool {
	if s.excluded(path) {
		return false
	}
	if len(s.include) == 0 {
		return utils.IsSupportedImage(path)
	}
	return matchesAnyPattern(path, s.include)
}

// discover expands args into a sorted, duplicate-free file list. Named files
// go through the selector like walked ones; excluded directories are pruned.
func discover(args []string, recursive bool, sel selector) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(path string) {
		if clean := filepath.Clean(path); !seen[clean] {
			seen[clean] = true
			files = append(files, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if sel.wants(arg) {
				add(arg)
			}
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			switch {
			case err != nil:
				return err
			case d.IsDir() && path == arg:
				return nil
			case d.IsDir() && (!recursive || sel.excluded(path)):
				return filepath.SkipDir
			case !d.IsDir() && sel.wants(path):
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	slices.Sort(files)
	return files, nil
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	return slices.ContainsFunc(patterns, func(p string) bool {
		ok, _ := filepath.Match(p, base)
		return ok
	})
}
