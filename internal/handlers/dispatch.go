// internal/handlers/dispatch.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/jason-s-yu/rummy/internal/models"
)

var errUnauthorized = errors.New("unauthorized")

// malformed wraps ErrMalformedCommand with detail.
func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", game.ErrMalformedCommand, fmt.Sprintf(format, args...))
}

// decodePayload copies a loosely typed payload into dst.
func decodePayload(payload map[string]interface{}, dst interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return malformed("payload: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return malformed("payload: %v", err)
	}
	return nil
}

type createTablePayload struct {
	WildMode    string                 `json:"wild_mode"`
	DisplayName string                 `json:"display_name"`
	Rules       map[string]interface{} `json:"rules"`
}

type joinPayload struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	Spectator   bool   `json:"spectator"`
}

type startPayload struct {
	Decks int `json:"decks"`
}

type cardPayload struct {
	Card *models.Card `json:"card"`
}

type meldPayload struct {
	Cards []models.Card `json:"cards"`
}

type declarePayload struct {
	Groups [][]models.Card `json:"groups"`
}

type targetPayload struct {
	UserID  string `json:"user_id"`
	Granted *bool  `json:"granted"`
}

func (p targetPayload) target() (uuid.UUID, error) {
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return uuid.Nil, malformed("user_id: %v", err)
	}
	return id, nil
}

func nameOr(name string, user models.User) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return user.Username
}

// Dispatch applies one command for user. It returns the table the command ran against (nil when none
// was resolved) and any command-specific result fields.
func (s *Server) Dispatch(ctx context.Context, user models.User, action models.GameAction) (*game.Table, map[string]interface{}, error) {
	switch action.ActionType {
	case models.ActionCreateTable:
		var p createTablePayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, nil, err
		}
		mode, err := game.ParseWildJokerMode(p.WildMode)
		if err != nil {
			return nil, nil, malformed("%v", err)
		}
		rules, err := game.ParseRules(p.Rules, s.Rules)
		if err != nil {
			return nil, nil, malformed("%v", err)
		}
		t, err := s.Tables.CreateTable(ctx, user.ID, nameOr(p.DisplayName, user), mode, rules)
		if err != nil {
			return nil, nil, err
		}
		return t, map[string]interface{}{"table_id": t.ID, "code": t.Code}, nil

	case models.ActionJoinByCode:
		var p joinPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(p.Code) == "" {
			return nil, nil, malformed("code is required")
		}
		t, seat, err := s.Tables.JoinByCode(ctx, p.Code, user.ID, nameOr(p.DisplayName, user), p.Spectator)
		if err != nil {
			return t, nil, err
		}
		return t, map[string]interface{}{"table_id": t.ID, "seat": seat}, nil
	}

	t, err := s.Tables.Lookup(ctx, action.TableID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.apply(ctx, t, user, action)
	return t, result, err
}

// apply runs a table-scoped command.
func (s *Server) apply(ctx context.Context, t *game.Table, user models.User, action models.GameAction) (map[string]interface{}, error) {
	switch action.ActionType {
	case models.ActionJoinTable:
		var p joinPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		seat, err := t.Join(ctx, user.ID, nameOr(p.DisplayName, user), p.Spectator)
		return map[string]interface{}{"seat": seat}, err

	case models.ActionStartGame:
		var p startPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		return nil, t.StartGame(ctx, user.ID, p.Decks)

	case models.ActionDrawStock:
		card, err := t.DrawFromStock(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"card": card}, nil

	case models.ActionDrawDiscard:
		card, err := t.DrawFromDiscard(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"card": card}, nil

	case models.ActionDiscard:
		var p cardPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		if p.Card == nil {
			return nil, malformed("card is required")
		}
		return nil, t.Discard(ctx, user.ID, *p.Card)

	case models.ActionLockMeld:
		var p meldPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		if len(p.Cards) == 0 {
			return nil, malformed("cards are required")
		}
		res, err := t.LockMeld(ctx, user.ID, p.Cards)
		if err != nil {
			return nil, err
		}
		out := map[string]interface{}{"kind": res.Kind, "wild_joker_revealed": res.WildRevealed}
		if res.WildRevealed && res.WildRank != nil {
			out["wild_joker_rank"] = res.WildRank
		}
		return out, nil

	case models.ActionDeclare:
		var p declarePayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		if len(p.Groups) == 0 {
			return nil, malformed("groups are required")
		}
		out, err := t.Declare(ctx, user.ID, p.Groups)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"valid": out.Valid, "reason": out.Reason, "winner_user_id": out.WinnerUserID}, nil

	case models.ActionDrop:
		return nil, t.Drop(ctx, user.ID)

	case models.ActionForceDrop:
		var p targetPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		target, err := p.target()
		if err != nil {
			return nil, err
		}
		return nil, t.ForceDropBy(ctx, user.ID, target)

	case models.ActionRequestSpectate:
		var p joinPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		return nil, t.RequestSpectate(ctx, user.ID, nameOr(p.DisplayName, user))

	case models.ActionGrantSpectate:
		var p targetPayload
		if err := decodePayload(action.Payload, &p); err != nil {
			return nil, err
		}
		target, err := p.target()
		if err != nil {
			return nil, err
		}
		granted := p.Granted == nil || *p.Granted
		return nil, t.GrantSpectate(ctx, user.ID, target, granted)

	case models.ActionNextRound:
		return nil, t.AdvanceToNextRound(ctx, user.ID)

	case models.ActionLeave:
		return nil, t.Leave(ctx, user.ID)

	case models.ActionClose:
		return nil, t.Close(ctx, user.ID)
	}
	return nil, malformed("unknown action %q", action.ActionType)
}
