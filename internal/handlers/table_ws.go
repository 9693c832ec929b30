// internal/handlers/table_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/jason-s-yu/rummy/internal/middleware"
	"github.com/jason-s-yu/rummy/internal/models"
	"github.com/sirupsen/logrus"
)

const outBuffer = 64

// wsClient is one socket of a table member. A user may hold several.
type wsClient struct {
	userID uuid.UUID
	out    chan []byte
}

// Hub fans table events out to the sockets connected to each table.
type Hub struct {
	mu     sync.RWMutex
	tables map[uuid.UUID]map[*wsClient]struct{}
	log    *logrus.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{tables: make(map[uuid.UUID]map[*wsClient]struct{}), log: logger}
}

// Attach installs the hub as the table's broadcaster.
func (h *Hub) Attach(t *game.Table) {
	id := t.ID
	t.SetBroadcasters(
		func(ev game.GameEvent) { h.Broadcast(id, ev) },
		func(userID uuid.UUID, ev game.GameEvent) { h.SendTo(id, userID, ev) },
	)
}

func (h *Hub) register(tableID uuid.UUID, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.tables[tableID]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.tables[tableID] = set
	}
	set[c] = struct{}{}
}

// unregister removes c and reports whether the user has no socket left at the table.
func (h *Hub) unregister(tableID uuid.UUID, c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.tables[tableID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.tables, tableID)
		return true
	}
	for other := range set {
		if other.userID == c.userID {
			return false
		}
	}
	return true
}

// Connections returns the number of sockets open at a table.
func (h *Hub) Connections(tableID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tables[tableID])
}

// Broadcast sends ev to every socket at the table.
func (h *Hub) Broadcast(tableID uuid.UUID, ev game.GameEvent) {
	data := game.EventBytes(ev)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.tables[tableID] {
		h.enqueue(tableID, c, data)
	}
}

// SendTo sends ev to every socket of one user at the table.
func (h *Hub) SendTo(tableID, userID uuid.UUID, ev game.GameEvent) {
	data := game.EventBytes(ev)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.tables[tableID] {
		if c.userID == userID {
			h.enqueue(tableID, c, data)
		}
	}
}

// enqueue never blocks the table: a socket that cannot keep up misses the message and catches up on the
// next private sync.
func (h *Hub) enqueue(tableID uuid.UUID, c *wsClient, data []byte) {
	select {
	case c.out <- data:
	default:
		h.log.WithFields(logrus.Fields{"table_id": tableID, "user_id": c.userID}).Warn("socket buffer full, dropping message")
	}
}

// wsCommand is an inbound socket message.
type wsCommand struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// handleTableWS upgrades a member's connection, pushes the current snapshot and then applies commands
// read from the socket.
func (s *Server) handleTableWS(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	t, ok := s.memberTable(w, r, user)
	if !ok {
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warnf("websocket accept error for table %s: %v", t.ID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != Subprotocol {
		c.Close(BadSubprotocolError, "client must speak the rummy subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &wsClient{userID: user.ID, out: make(chan []byte, outBuffer)}
	snap := t.Snapshot(user.ID)
	client.out <- game.EventBytes(game.GameEvent{Type: game.EventPrivateSyncState, Version: snap.Version, State: &snap})
	s.Hub.register(t.ID, client)
	middleware.LogWebSocketConnect(s.log, r.RemoteAddr, r.URL.Path)
	t.SetConnected(user.ID, true)

	go s.writePump(ctx, c, client)
	err = s.readPump(ctx, c, t, user, client)

	if s.Hub.unregister(t.ID, client) {
		t.SetConnected(user.ID, false)
	}
	middleware.LogWebSocketDisconnect(s.log, r.RemoteAddr, r.URL.Path, err)
}

// readPump applies commands until the socket closes. Rejections go back to the sender only.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, t *game.Table, user models.User, client *wsClient) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var cmd wsCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			s.sendCommandError(t, user, client, malformed("invalid JSON"))
			continue
		}
		switch cmd.Type {
		case "ping":
			s.Hub.enqueue(t.ID, client, []byte(`{"type":"pong"}`))
			continue
		case models.ActionCreateTable, models.ActionJoinByCode:
			s.sendCommandError(t, user, client, malformed("%s is not available on a table socket", cmd.Type))
			continue
		}

		action := models.GameAction{ActionType: cmd.Type, TableID: t.ID, Payload: cmd.Payload}
		if _, _, err := s.Dispatch(ctx, user, action); err != nil {
			s.sendCommandError(t, user, client, err)
		}
	}
}

func (s *Server) sendCommandError(t *game.Table, user models.User, client *wsClient, err error) {
	snap := t.Snapshot(user.ID)
	body := errorBodyFor(err, nil)
	s.log.WithFields(logrus.Fields{"table_id": t.ID, "user_id": user.ID, "code": body.Error}).Debug(err.Error())
	ev := game.GameEvent{
		Type:    game.EventPrivateCommandError,
		Version: snap.Version,
		Payload: map[string]interface{}{"error": body.Error, "message": body.Message},
		State:   &snap,
	}
	s.Hub.enqueue(t.ID, client, game.EventBytes(ev))
}

// writePump drains the client's queue and keeps the connection alive with pings.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-client.out:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.log.Warnf("failed to write to websocket for user %v: %v", client.userID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				s.log.Warnf("failed to send ping to user %v: %v", client.userID, err)
				return
			}
		}
	}
}
