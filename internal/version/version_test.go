package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get("none")
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.Equal(t, "none", info.OCR)
	assert.NotEmpty(t, info.GitCommit)
	assert.Contains(t, info.String(), "flatdoc "+Version)
}
