package cmd

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/flatdoc/internal/server"
)

// requestCmd is the websocket client of a running server.
var requestCmd = &cobra.Command{
	Use:   "request <filename> [filename...]",
	Short: "Send documents to a running server",
	Long: `Connect to a running flatdoc server and request processing of the given
filenames, which the server resolves against its input directory. Requests
are sent one at a time on a single connection; each reply is printed as JSON.

Examples:
  flatdoc request scan.jpg
  flatdoc request --url ws://scanner:5555/ws a.png b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.Flags().String("url", "", "server websocket URL (default from server.host and server.port)")
	requestCmd.Flags().String("request-id", "", "request id to send (only with a single filename)")
	requestCmd.Flags().Duration("timeout", 5*time.Minute, "maximum time to wait for each reply")
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = "ws://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)) + "/ws"
	}
	requestID, _ := cmd.Flags().GetString("request-id")
	if requestID != "" && len(args) > 1 {
		return fmt.Errorf("--request-id can only be used with a single filename")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), url, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	failed := 0
	for _, name := range args {
		if err := conn.WriteJSON(server.Request{Filename: name, RequestID: requestID}); err != nil {
			return fmt.Errorf("send request for %s: %w", name, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		var reply server.Reply
		if err := conn.ReadJSON(&reply); err != nil {
			return fmt.Errorf("read reply for %s: %w", name, err)
		}
		if reply.Status != server.StatusOK {
			failed++
		}
		if err := enc.Encode(reply); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(args))
	}
	return nil
}
