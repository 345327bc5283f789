package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"nftescrow/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
)

// handleEventsWS streams committed events. The optional tradeId and type query
// parameters narrow the stream.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s == nil || s.stream == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := s.auth.authenticate(r); err != nil && !s.cfg.Auth.AllowAnonymous {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	tradeID := strings.TrimSpace(r.URL.Query().Get("tradeId"))
	eventType := strings.TrimSpace(r.URL.Query().Get("type"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	// Client frames are ignored; CloseRead keeps control frames flowing and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, tradeID, eventType); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, tradeID, eventType string) error {
	updates, cancel := s.stream.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if tradeID != "" && evt.Attributes["tradeId"] != tradeID {
				continue
			}
			if eventType != "" && evt.Type != eventType {
				continue
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(formatEvent(evt))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
