// internal/handlers/helpers_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/auth"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/jason-s-yu/rummy/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	models.User
	token string
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	require.NoError(t, auth.Init(0))
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	tables := game.NewTableStore(nil, logger)
	var seed int64
	tables.NewRand = func() *rand.Rand {
		seed++
		return rand.New(rand.NewSource(seed))
	}
	return NewServer(tables, game.DefaultRules(), logger)
}

func newTestUser(t *testing.T, name string) testUser {
	t.Helper()
	u := models.User{ID: uuid.New(), Username: name}
	token, err := auth.CreateJWT(u)
	require.NoError(t, err)
	return testUser{User: u, token: token}
}

// do sends a request through the full router and decodes the JSON reply into a generic map.
func do(t *testing.T, s *Server, u *testUser, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if u != nil {
		req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: u.token})
	}
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

// startedTable creates a table for host, seats guest by code and starts the game.
func startedTable(t *testing.T, s *Server, host, guest testUser) *game.Table {
	t.Helper()
	code, created := do(t, s, &host, http.MethodPost, "/table/create", map[string]interface{}{"wild_mode": "no_wildcard"})
	require.Equal(t, http.StatusCreated, code, created)

	code, joined := do(t, s, &guest, http.MethodPost, "/table/join_by_code", map[string]interface{}{"code": created["code"]})
	require.Equal(t, http.StatusOK, code, joined)

	id := uuid.MustParse(created["table_id"].(string))
	code, started := do(t, s, &host, http.MethodPost, "/table/"+id.String()+"/start_game", nil)
	require.Equal(t, http.StatusOK, code, started)

	tbl, ok := s.Tables.GetTable(id)
	require.True(t, ok)
	return tbl
}

func activeAndWaiting(t *testing.T, tbl *game.Table, a, b testUser) (testUser, testUser) {
	t.Helper()
	snap := tbl.Snapshot(a.ID)
	require.NotNil(t, snap.Round)
	if snap.Round.ActiveUserID == a.ID {
		return a, b
	}
	return b, a
}
