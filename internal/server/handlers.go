package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
	"github.com/MeKo-Tech/flatdoc/internal/utils"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string    `json:"status"`
	PID    int       `json:"pid"`
	Time   time.Time `json:"time"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// healthHandler handles health check requests.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", PID: os.Getpid(), Time: time.Now()})
}

// requestsHandler lists the request journal, newest first.
func (s *Server) requestsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.journal == nil {
		http.Error(w, "request journal is disabled", http.StatusNotFound)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.journal.List(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list journal", "error", err)
		http.Error(w, "failed to list requests", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// documentsHandler accepts a multipart upload, stores it in the input
// directory and runs it through the loop.
func (s *Server) documentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := r.URL.Query().Get("request_id")

	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeReply(w, errorReply(requestID, common.KindInvalidRequest, "failed to parse form: "+err.Error()))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeReply(w, errorReply(requestID, common.KindInvalidRequest, "missing file field"))
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	name := sanitizeFilename(header.Filename)
	if !utils.IsSupportedImage(name) {
		writeReply(w, errorReply(requestID, common.KindInvalidRequest,
			fmt.Sprintf("unsupported file type: %q", header.Filename)))
		return
	}
	stored, err := s.storeUpload(name, file)
	if err != nil {
		slog.Error("failed to store upload", "filename", name, "error", err)
		reply := errorReply(requestID, common.KindIOFailure, err.Error())
		reply.Error.Stage = "upload"
		writeReply(w, reply)
		return
	}

	reply, err := s.submit(r.Context(), pipeline.Request{ID: requestID, Filename: name, SourcePath: stored})
	if err != nil {
		if errors.Is(err, ErrLoopClosed) {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		slog.Warn("upload request abandoned", "filename", name, "error", err)
		return
	}
	writeReply(w, reply)
}

// UploadDir is the input subdirectory uploads are stored under, one
// fresh directory per upload so concurrent uploads of the same name never
// share a file.
const UploadDir = "uploads"

func (s *Server) storeUpload(name string, src io.Reader) (string, error) {
	dir := filepath.Join(s.cfg.InputDir, UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(dir, name)
	dst, err := os.Create(path) //nolint:gosec // name is sanitized
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, dst.Close()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename reduces an uploaded name to a single safe path element.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		name = "upload"
	}
	return name
}

func writeReply(w http.ResponseWriter, reply Reply) {
	writeJSON(w, replyStatus(reply), reply)
}

// replyStatus maps an error kind onto an HTTP status.
func replyStatus(reply Reply) int {
	if reply.Error == nil {
		return http.StatusOK
	}
	switch reply.Error.Kind {
	case common.KindInvalidRequest:
		return http.StatusBadRequest
	case common.KindIOFailure, common.KindInternal, common.KindInvalidConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}
