// Package version reports build metadata injected via ldflags.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	OCR       string `json:"ocr_backend"`
}

// Get returns the build information. When the binary was built without
// ldflags, the VCS revision recorded by the Go toolchain is used.
func Get(ocrBackend string) Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		OCR:       ocrBackend,
	}
	if info.GitCommit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.GitCommit = s.Value
				}
			}
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("flatdoc %s (commit %s, built %s, %s %s, ocr %s)",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform, i.OCR)
}
