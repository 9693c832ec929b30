// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ErrorKind groups engine errors by how a caller should react to them.
type ErrorKind string

const (
	// KindValidation: malformed command, rejected before touching state.
	KindValidation ErrorKind = "validation"
	// KindStateConflict: command not legal in the current state; state unchanged.
	KindStateConflict ErrorKind = "state_conflict"
	// KindResourceExhaustion: no card could be supplied even after recycling the discard pile.
	KindResourceExhaustion ErrorKind = "resource_exhaustion"
	// KindRuleViolation: a meld that breaks the rules of the game.
	KindRuleViolation ErrorKind = "rule_violation"
	// KindPersistence: the transition was applied in memory but could not be saved.
	KindPersistence ErrorKind = "persistence"
)

// GameError is a typed rejection with a machine-readable reason code.
type GameError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, msg string) *GameError {
	return &GameError{Kind: kind, Code: code, Message: msg}
}

var (
	ErrMissingTableID   = newError(KindValidation, "missing_table_id", "table_id is required")
	ErrTableNotFound    = newError(KindValidation, "table_not_found", "table not found")
	ErrMalformedCommand = newError(KindValidation, "malformed_command", "malformed command")

	ErrOutOfTurn         = newError(KindStateConflict, "out_of_turn", "it is not your turn")
	ErrAlreadyDrawn      = newError(KindStateConflict, "already_drawn", "you have already drawn a card this turn")
	ErrNotDrawn          = newError(KindStateConflict, "not_drawn", "you must draw a card first")
	ErrEmptyDiscard      = newError(KindStateConflict, "empty_discard", "the discard pile is empty")
	ErrCardNotInHand     = newError(KindStateConflict, "card_not_in_hand", "card is not in your hand")
	ErrCardLocked        = newError(KindStateConflict, "card_locked", "card belongs to a locked meld")
	ErrRoundNotActive    = newError(KindStateConflict, "round_not_active", "round is not accepting turn actions")
	ErrRoundNotFinished  = newError(KindStateConflict, "round_not_finished", "the current round has not finished")
	ErrNoRound           = newError(KindStateConflict, "no_round", "no round in progress")
	ErrNotInRound        = newError(KindStateConflict, "not_in_round", "you are not playing this round")
	ErrDropNotAllowed    = newError(KindStateConflict, "drop_not_allowed", "drop is not allowed now")
	ErrTableFull         = newError(KindStateConflict, "table_full", "table is full")
	ErrAlreadyStarted    = newError(KindStateConflict, "already_started", "game has already started")
	ErrNotHost           = newError(KindStateConflict, "not_host", "only the host can do that")
	ErrNotEnoughPlayers  = newError(KindStateConflict, "not_enough_players", "at least 2 seated players are required")
	ErrNotMember         = newError(KindStateConflict, "not_member", "you are not at this table")
	ErrTableClosed       = newError(KindStateConflict, "table_closed", "table is finished")
	ErrNoSpectateRequest = newError(KindStateConflict, "no_spectate_request", "no pending spectate request for that user")

	ErrEmptyShoe      = newError(KindResourceExhaustion, "empty_shoe", "the shoe is empty")
	ErrStockExhausted = newError(KindResourceExhaustion, "stock_exhausted", "stock and discard pile are exhausted; round aborted")

	ErrInvalidMeld = newError(KindRuleViolation, "invalid_meld", "cards do not form a valid meld")

	ErrPersist = newError(KindPersistence, "persist_failed", "table state could not be saved")
)

// InvalidDeclarationError explains why a declaration was rejected. A failed declaration is a scored
// outcome, so Round.Declare reports it through DeclareOutcome rather than returning it.
type InvalidDeclarationError struct {
	Reason string
}

func (e *InvalidDeclarationError) Error() string {
	return fmt.Sprintf("invalid declaration: %s", e.Reason)
}

// Is lets callers match any declaration failure with errors.Is(err, ErrInvalidDeclaration).
func (e *InvalidDeclarationError) Is(target error) bool {
	return target == ErrInvalidDeclaration
}

// ErrInvalidDeclaration is the sentinel matched by every *InvalidDeclarationError.
var ErrInvalidDeclaration = newError(KindRuleViolation, "invalid_declaration", "invalid declaration")

// ReasonCode extracts the machine-readable code from err, or "internal" for unknown errors.
func ReasonCode(err error) string {
	if err == nil {
		return ""
	}
	var decl *InvalidDeclarationError
	if errors.As(err, &decl) {
		return ErrInvalidDeclaration.Code
	}
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return "internal"
}

// KindOf returns the ErrorKind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var decl *InvalidDeclarationError
	if errors.As(err, &decl) {
		return KindRuleViolation
	}
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
