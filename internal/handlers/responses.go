// internal/handlers/responses.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/rummy/internal/auth"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/sirupsen/logrus"
)

// errorBody is the JSON returned for every rejected request.
type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	State   *game.Snapshot `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, game.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrNotHost), errors.Is(err, game.ErrNotMember):
		return http.StatusForbidden
	}
	switch game.KindOf(err) {
	case game.KindValidation:
		return http.StatusBadRequest
	case game.KindStateConflict, game.KindResourceExhaustion:
		return http.StatusConflict
	case game.KindRuleViolation:
		return http.StatusUnprocessableEntity
	case game.KindPersistence:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorBodyFor builds the rejection payload. Internal details of storage and unknown failures stay in
// the logs.
func errorBodyFor(err error, state *game.Snapshot) errorBody {
	body := errorBody{Error: game.ReasonCode(err), Message: err.Error(), State: state}
	switch {
	case errors.Is(err, auth.ErrNoToken), errors.Is(err, errUnauthorized):
		body.Error = "unauthorized"
	case game.KindOf(err) == game.KindPersistence:
		body.Message = game.ErrPersist.Message
	case game.KindOf(err) == "":
		body.Message = "internal server error"
	}
	return body
}

// writeError sends the rejection with the caller's view of the table, when there is one.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, state *game.Snapshot) {
	status := statusFor(err)
	entry := s.log.WithFields(logrus.Fields{"path": r.URL.Path, "status": status, "code": game.ReasonCode(err)})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.Debug(err.Error())
	}
	writeJSON(w, status, errorBodyFor(err, state))
}
