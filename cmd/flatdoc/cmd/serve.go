package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/flatdoc/internal/journal"
	"github.com/MeKo-Tech/flatdoc/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the request server",
	Long: `Start a server that processes one document at a time.

The server provides the following endpoints:
  GET  /ws        - WebSocket: send {"filename": "..."}, receive one reply
  POST /documents - Upload an image (multipart field "file") and process it
  GET  /requests  - Request history (requires --journal)
  GET  /health    - Health check endpoint
  GET  /metrics   - Prometheus metrics

Examples:
  flatdoc serve
  flatdoc serve --port 5555 --input-dir ./input --output-dir ./output
  flatdoc serve --host 0.0.0.0 --journal ./flatdoc.db`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "host to bind")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on")
	serveCmd.Flags().String("cors-origin", "", "allowed CORS origin")
	serveCmd.Flags().Int("max-upload-size", 0, "maximum upload size in MB")
	serveCmd.Flags().Int("shutdown-timeout", 0, "seconds to wait for open requests on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	// CLI flags override the configuration
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("cors-origin") {
		cfg.Server.CORSOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	if cmd.Flags().Changed("max-upload-size") {
		cfg.Server.MaxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}
	if cmd.Flags().Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	d, err := newDispatcher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			slog.Warn("failed to close dispatcher", "error", err)
		}
	}()

	var loopOpts []server.LoopOption
	var srvOpts []server.Option
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = j.Close() }()
		loopOpts = append(loopOpts, server.RecordTo(j))
		srvOpts = append(srvOpts, server.WithJournal(j))
	}

	loop := server.NewLoop(d, loopOpts...)
	srv := server.NewServer(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		InputDir:    cfg.Path.InputDir,
	}, loop, d, srvOpts...)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting server", "addr", httpServer.Addr,
			"input_dir", cfg.Path.InputDir, "output_dir", cfg.Path.OutputDir, "pid", os.Getpid())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		loop.Close()
		if err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		slog.Info("Server stopped")
		return nil
	})
	return g.Wait()
}
