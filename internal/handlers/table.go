// internal/handlers/table.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/auth"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/jason-s-yu/rummy/internal/models"
)

// tableInfo is what anyone holding a join code may see before joining.
type tableInfo struct {
	TableID    uuid.UUID          `json:"table_id"`
	Code       string             `json:"code"`
	HostUserID uuid.UUID          `json:"host_user_id"`
	WildMode   game.WildJokerMode `json:"wild_mode"`
	Status     game.TableStatus   `json:"status"`
	Seated     int                `json:"seated"`
	MaxPlayers int                `json:"max_players"`
}

// authenticate resolves the caller or writes a 401.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := auth.UserFromRequest(r)
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) {
			err = errUnauthorized
		}
		s.writeError(w, r, err, nil)
		return models.User{}, false
	}
	return user, true
}

// readPayload decodes an optional JSON object body.
func readPayload(r *http.Request) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, malformed("bad request payload")
	}
	return payload, nil
}

// memberTable resolves {id} and checks that the caller belongs to the table.
func (s *Server) memberTable(w http.ResponseWriter, r *http.Request, user models.User) (*game.Table, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, malformed("invalid table id"), nil)
		return nil, false
	}
	t, err := s.Tables.Lookup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, nil)
		return nil, false
	}
	if !t.IsMember(user.ID) {
		s.writeError(w, r, game.ErrNotMember, nil)
		return nil, false
	}
	return t, true
}

// runAction dispatches a command and writes either the result with the caller's state or the rejection.
func (s *Server) runAction(w http.ResponseWriter, r *http.Request, user models.User, action models.GameAction, okStatus int) {
	t, result, err := s.Dispatch(r.Context(), user, action)
	var state *game.Snapshot
	if t != nil {
		snap := t.Snapshot(user.ID)
		state = &snap
	}
	if err != nil {
		s.writeError(w, r, err, state)
		return
	}
	if result == nil {
		result = map[string]interface{}{}
	}
	result["state"] = state
	writeJSON(w, okStatus, result)
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	payload, err := readPayload(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.runAction(w, r, user, models.GameAction{ActionType: models.ActionCreateTable, Payload: payload}, http.StatusCreated)
}

func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	payload, err := readPayload(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.runAction(w, r, user, models.GameAction{ActionType: models.ActionJoinByCode, Payload: payload}, http.StatusOK)
}

// handleTableAction serves POST /table/{id}/{action}.
func (s *Server) handleTableAction(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, malformed("invalid table id"), nil)
		return
	}
	actionType := r.PathValue("action")
	if actionType == models.ActionCreateTable || actionType == models.ActionJoinByCode {
		s.writeError(w, r, malformed("unknown action %q", actionType), nil)
		return
	}
	payload, err := readPayload(r)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	s.runAction(w, r, user, models.GameAction{ActionType: actionType, TableID: id, Payload: payload}, http.StatusOK)
}

func (s *Server) handleTableInfo(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	t, ok := s.Tables.GetByCode(r.PathValue("code"))
	if !ok {
		s.writeError(w, r, game.ErrTableNotFound, nil)
		return
	}
	snap := t.Snapshot(uuid.Nil)
	info := tableInfo{
		TableID:    snap.TableID,
		Code:       snap.Code,
		HostUserID: snap.HostUserID,
		WildMode:   snap.WildMode,
		Status:     snap.Status,
		MaxPlayers: game.MaxPlayers,
	}
	for _, p := range snap.Players {
		if !p.IsSpectator && !p.Left {
			info.Seated++
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	t, ok := s.memberTable(w, r, user)
	if !ok {
		return
	}
	data, err := t.SnapshotJSON(user.ID)
	if err != nil {
		s.writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleRoundMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	t, ok := s.memberTable(w, r, user)
	if !ok {
		return
	}
	snap := t.Snapshot(user.ID)
	if snap.Round == nil {
		s.writeError(w, r, game.ErrNoRound, &snap)
		return
	}
	writeJSON(w, http.StatusOK, snap.Round)
}

func (s *Server) handleRoundHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	t, ok := s.memberTable(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rounds": t.GetHistory()})
}

func (s *Server) handleScoreboard(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	t, ok := s.memberTable(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"scoreboard": t.Scoreboard()})
}
