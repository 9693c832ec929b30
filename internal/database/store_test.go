// internal/database/store_test.go
package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/game"
	"github.com/jason-s-yu/rummy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecordState(t *testing.T) {
	host := uuid.New()
	state := []byte(`{
		"id": "` + uuid.NewString() + `",
		"code": "ABC234",
		"host_user_id": "` + host.String() + `",
		"wild_mode": "open_wildcard",
		"rules": {"dropPenalty": 20, "midDropPenalty": 40, "invalidDeclarePenalty": 80, "maxPoints": 80},
		"status": "waiting",
		"players": [{"user_id": "` + host.String() + `", "seat": 0, "display_name": "host"}],
		"history": [],
		"cumulative_scores": {},
		"version": 3
	}`)

	rec, err := decodeRecord(state)
	require.NoError(t, err)
	assert.Equal(t, "ABC234", rec.Code)
	assert.Equal(t, game.OpenWildcard, rec.WildMode)
	assert.Equal(t, uint64(3), rec.Version)
	require.Len(t, rec.Players, 1)
	assert.Equal(t, host, rec.Players[0].UserID)

	again, err := encodeRecord(rec)
	require.NoError(t, err)
	back, err := decodeRecord(again)
	require.NoError(t, err)
	assert.Equal(t, rec, back)

	_, err = decodeRecord([]byte(`{"players": 5}`))
	assert.Error(t, err)
}

func TestSummaryParams(t *testing.T) {
	assert.Nil(t, winnerParam(uuid.Nil))
	id := uuid.New()
	require.NotNil(t, winnerParam(id))
	assert.Equal(t, id, *winnerParam(id))

	assert.Nil(t, wildRankParam(game.RoundSummary{}))
	rank := models.RankQueen
	got := wildRankParam(game.RoundSummary{WildRank: &rank})
	require.NotNil(t, got)
	assert.Equal(t, "Q", *got)
}
