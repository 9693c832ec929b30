// internal/handlers/server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/sirupsen/logrus"
)

// Server exposes the table registry over HTTP and WebSocket.
type Server struct {
	Tables *game.TableStore
	Hub    *Hub
	// Rules are the defaults for new tables; create_table may override them.
	Rules game.Rules
	// DBPing reports database health. Nil when running without Postgres.
	DBPing func(ctx context.Context) error

	log *logrus.Logger
}

// NewServer wires a hub into the registry so every created or restored table broadcasts through it.
func NewServer(tables *game.TableStore, rules game.Rules, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		Tables: tables,
		Hub:    NewHub(logger),
		Rules:  rules,
		log:    logger,
	}
	tables.OnTable = s.Hub.Attach
	return s
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/db", s.handleHealthDB)
	mux.HandleFunc("POST /auth/guest", s.handleGuestSession)

	mux.HandleFunc("POST /table/create", s.handleCreateTable)
	mux.HandleFunc("POST /table/join_by_code", s.handleJoinByCode)
	mux.HandleFunc("GET /table/code/{code}", s.handleTableInfo)
	mux.HandleFunc("GET /table/ws/{id}", s.handleTableWS)

	mux.HandleFunc("GET /table/{id}", s.handleGetTable)
	mux.HandleFunc("GET /table/{id}/round/me", s.handleRoundMe)
	mux.HandleFunc("GET /table/{id}/round/history", s.handleRoundHistory)
	mux.HandleFunc("GET /table/{id}/round/scoreboard", s.handleScoreboard)
	mux.HandleFunc("POST /table/{id}/{action}", s.handleTableAction)

	return mux
}
