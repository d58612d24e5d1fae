// Package models locates tesseract language data (traineddata files).
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultDataDir is the directory looked up under the project root.
const DefaultDataDir = "tessdata"

// Environment variables consulted by GetDataDir, in priority order.
const (
	EnvDataDir        = "FLATDOC_TESSDATA"
	EnvTessdataPrefix = "TESSDATA_PREFIX"
)

// Extension of tesseract language data files.
const Extension = ".traineddata"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetDataDir returns the language data directory.
// Priority: 1. explicit dataDir, 2. FLATDOC_TESSDATA, 3. TESSDATA_PREFIX,
// 4. <project root>/tessdata if it exists. An empty result means the
// library's compiled-in default applies.
func GetDataDir(dataDir string) string {
	if dataDir != "" {
		return dataDir
	}
	for _, env := range []string{EnvDataDir, EnvTessdataPrefix} {
		if dir := os.Getenv(env); dir != "" {
			return dir
		}
	}
	if root, err := findProjectRoot(); err == nil {
		dir := filepath.Join(root, DefaultDataDir)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// Languages splits a "+"-joined language list like "eng+deu".
func Languages(lang string) []string {
	var out []string
	for _, l := range strings.Split(lang, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// LanguagePath returns the traineddata path of lang inside dataDir.
func LanguagePath(dataDir, lang string) string {
	return filepath.Join(dataDir, lang+Extension)
}

// ValidateLanguages checks that every language in lang has a data file in
// dataDir.
func ValidateLanguages(dataDir, lang string) error {
	var missing []string
	for _, l := range Languages(lang) {
		if _, err := os.Stat(LanguagePath(dataDir, l)); err != nil {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("language data not found in %s: %s", dataDir, strings.Join(missing, ", "))
	}
	return nil
}

// ListLanguages returns the sorted language names available in dataDir.
func ListLanguages(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Extension) {
			langs = append(langs, strings.TrimSuffix(e.Name(), Extension))
		}
	}
	sort.Strings(langs)
	return langs, nil
}
