// Package support holds the godog step definitions of the flatdoc
// integration suite.
package support

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/flatdoc/internal/journal"
	"github.com/MeKo-Tech/flatdoc/internal/server"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir   string
	InputDir  string
	OutputDir string

	// In-process server
	HTTPServer *httptest.Server
	Loop       *server.Loop
	Journal    *journal.Journal
	Conn       *websocket.Conn

	// Websocket replies, oldest first
	Replies []server.Reply

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string

	// CLI state
	LastOutput string
	LastError  error
}

// NewTestContext creates a context with fresh input and output directories.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "flatdoc-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	ctx := &TestContext{
		TempDir:   tempDir,
		InputDir:  filepath.Join(tempDir, "input"),
		OutputDir: filepath.Join(tempDir, "output"),
	}
	for _, dir := range []string{ctx.InputDir, ctx.OutputDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return ctx, nil
}

// LastReply returns the most recent websocket or upload reply.
func (testCtx *TestContext) LastReply() (server.Reply, error) {
	if len(testCtx.Replies) == 0 {
		return server.Reply{}, errors.New("no reply received yet")
	}
	return testCtx.Replies[len(testCtx.Replies)-1], nil
}

// expand replaces {input}, {output} and {tmp} in s.
func (testCtx *TestContext) expand(s string) string {
	return strings.NewReplacer(
		"{input}", testCtx.InputDir,
		"{output}", testCtx.OutputDir,
		"{tmp}", testCtx.TempDir,
	).Replace(s)
}

// Cleanup stops the server and removes all temporary files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.Conn != nil {
		_ = testCtx.Conn.Close()
		testCtx.Conn = nil
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Loop != nil {
		testCtx.Loop.Close()
		testCtx.Loop = nil
	}
	if testCtx.Journal != nil {
		if err := testCtx.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
		}
		testCtx.Journal = nil
	}
	if testCtx.TempDir != "" {
		if err := os.RemoveAll(testCtx.TempDir); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", testCtx.TempDir, err))
		}
	}
	return errors.Join(errs...)
}
