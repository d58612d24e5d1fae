package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/flatdoc/internal/common"
	"github.com/MeKo-Tech/flatdoc/internal/pipeline"
)

const (
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// websocketHandler serves one connection in strict alternation: read one
// request, wait for its reply, write it, then read the next request.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	log := slog.With("remote", r.RemoteAddr)
	log.Info("WebSocket connection established")

	// Pings and replies share the connection.
	var writeMu sync.Mutex

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read failed", "error", err)
			}
			log.Info("WebSocket connection closed")
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		reply, ok := s.handleMessage(r, msgType, data)
		if !ok {
			return
		}

		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteJSON(reply)
		writeMu.Unlock()
		if err != nil {
			log.Warn("failed to write reply", "request_id", reply.RequestID, "error", err)
			return
		}
		websocketMessagesTotal.WithLabelValues("sent").Inc()
	}
}

// handleMessage turns one frame into its reply. It returns false when the
// connection should be dropped without a reply.
func (s *Server) handleMessage(r *http.Request, msgType int, data []byte) (Reply, bool) {
	if msgType != websocket.TextMessage {
		return errorReply("", common.KindInvalidRequest, "binary frames are not supported"), true
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorReply("", common.KindInvalidRequest, "invalid request JSON: "+err.Error()), true
	}
	reply, err := s.submit(r.Context(), pipeline.Request{ID: req.RequestID, Filename: req.Filename})
	if err != nil {
		if errors.Is(err, ErrLoopClosed) {
			return errorReply(req.RequestID, common.KindInternal, "server is shutting down"), true
		}
		return Reply{}, false
	}
	return reply, true
}
