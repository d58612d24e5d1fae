// Package testutil provides shared helpers for flatdoc tests: project
// paths, synthetic document photos and image statistics.
package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

var errNoModule = errors.New("testutil: go.mod not found above source directory")

// GetProjectRoot returns the nearest directory above this source file that
// holds go.mod. It works regardless of the test's working directory.
func GetProjectRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("testutil: caller information unavailable")
	}
	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if FileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		if dir == filepath.Dir(dir) {
			return "", errNoModule
		}
	}
}

// FileExists reports whether path is a regular file.
func FileExists(path string) bool { return statMode(path).IsRegular() }

// DirExists reports whether path is a directory.
func DirExists(path string) bool { return statMode(path).IsDir() }

func statMode(path string) os.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return os.ModeIrregular
	}
	return info.Mode()
}
