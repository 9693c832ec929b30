// internal/game/round_test.go
package game

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDealDrawAndDiscardAtOneDeckTable checks the deal, one draw and one discard at a one-deck table.
func TestDealDrawAndDiscardAtOneDeckTable(t *testing.T) {
	r, users := newTestRound(t, 2, OpenWildcard, 1)
	a, b := users[0], users[1]

	assert.Equal(t, 1, r.DeckCount)
	assert.Len(t, r.Player(a).Hand, 13)
	assert.Len(t, r.Player(b).Hand, 13)
	assert.Equal(t, 27, r.Shoe.Len())
	assert.Len(t, r.DiscardPile, 1)
	assert.Equal(t, 54, r.CardCount())
	assert.Equal(t, RoundActive, r.Status)
	assert.Equal(t, a, r.ActiveUserID)

	drawn, err := r.DrawFromStock(a)
	require.NoError(t, err)
	assert.Len(t, r.Player(a).Hand, 14)
	assert.Equal(t, 26, r.Shoe.Len())

	require.NoError(t, r.Discard(a, drawn))
	assert.Len(t, r.Player(a).Hand, 13)
	assert.Equal(t, drawn, r.DiscardPile[len(r.DiscardPile)-1])
	assert.Equal(t, b, r.ActiveUserID)
	assert.Equal(t, 54, r.CardCount())
}

func TestNewRoundCardTotals(t *testing.T) {
	for n := 2; n <= 6; n++ {
		for _, mode := range []WildJokerMode{NoWildcard, OpenWildcard, CloseWildcard} {
			r, _ := newTestRound(t, n, mode, int64(n))
			total := DecksFor(n) * (52 + JokersPerDeck)
			assert.Equal(t, total, r.CardCount(), "%d players %s", n, mode)
			assert.Equal(t, total-13*n-1, r.Shoe.Len(), "%d players %s", n, mode)
		}
	}
}

func TestWildJokerModes(t *testing.T) {
	r, _ := newTestRound(t, 2, NoWildcard, 3)
	assert.Nil(t, r.WildRank)
	assert.False(t, r.WildRevealed)

	r, _ = newTestRound(t, 2, OpenWildcard, 3)
	require.NotNil(t, r.WildRank)
	assert.True(t, r.WildRevealed)
	assert.NotEqual(t, models.RankJoker, *r.WildRank)
	assert.Equal(t, *r.WildCard, r.Shoe.Cards[r.Shoe.Len()-1], "cut card is tucked under the shoe")

	r, _ = newTestRound(t, 2, CloseWildcard, 3)
	require.NotNil(t, r.WildRank)
	assert.False(t, r.WildRevealed)
}

func TestNewRoundNeedsTwoPlayers(t *testing.T) {
	_, err := NewRound(1, []SeatedUser{{UserID: uuid.New()}}, uuid.Nil, OpenWildcard, DefaultRules(), seededRand(1))
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func roundJSON(t *testing.T, r *Round) string {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	return string(data)
}

func TestRejectedActionsLeaveStateUnchanged(t *testing.T) {
	r, users := newTestRound(t, 3, OpenWildcard, 5)
	a, b := users[0], users[1]
	before := roundJSON(t, r)

	_, err := r.DrawFromStock(b)
	assert.ErrorIs(t, err, ErrOutOfTurn)
	_, err = r.DrawFromDiscard(b)
	assert.ErrorIs(t, err, ErrOutOfTurn)
	assert.ErrorIs(t, r.Discard(a, r.Player(a).Hand[0]), ErrNotDrawn)
	_, err = r.Declare(b, nil)
	assert.ErrorIs(t, err, ErrOutOfTurn)
	_, err = r.LockMeld(b, r.Player(b).Hand[:3])
	assert.ErrorIs(t, err, ErrOutOfTurn)
	_, err = r.DrawFromStock(uuid.New())
	assert.ErrorIs(t, err, ErrNotInRound)
	assert.Equal(t, before, roundJSON(t, r))

	_, err = r.DrawFromStock(a)
	require.NoError(t, err)
	afterDraw := roundJSON(t, r)

	_, err = r.DrawFromStock(a)
	assert.ErrorIs(t, err, ErrAlreadyDrawn)
	_, err = r.DrawFromDiscard(a)
	assert.ErrorIs(t, err, ErrAlreadyDrawn)

	var missing *models.Card
	for _, c := range r.Shoe.Cards {
		if indexOfCard(r.Player(a).Hand, c) < 0 {
			c := c
			missing = &c
			break
		}
	}
	require.NotNil(t, missing)
	assert.ErrorIs(t, r.Discard(a, *missing), ErrCardNotInHand)
	assert.ErrorIs(t, r.Drop(a), ErrDropNotAllowed)
	assert.Equal(t, afterDraw, roundJSON(t, r))
	assert.Equal(t, KindStateConflict, KindOf(ErrAlreadyDrawn))
}

func TestDrawFromDiscard(t *testing.T) {
	r, users := newTestRound(t, 2, NoWildcard, 11)
	a := users[0]
	top, _ := r.DiscardTop()

	c, err := r.DrawFromDiscard(a)
	require.NoError(t, err)
	assert.Equal(t, top, c)
	assert.Empty(t, r.DiscardPile)
	assert.Len(t, r.Player(a).Hand, 14)

	require.NoError(t, r.Discard(a, c))
	b := users[1]
	r.Shoe.Cards = append(r.Shoe.Cards, r.DiscardPile...)
	r.DiscardPile = nil
	_, err = r.DrawFromDiscard(b)
	assert.ErrorIs(t, err, ErrEmptyDiscard)
}

func TestConservationUnderRandomPlay(t *testing.T) {
	for _, n := range []int{2, 4, 6} {
		r, _ := newTestRound(t, n, OpenWildcard, int64(100+n))
		total := r.CardCount()
		rng := seededRand(int64(n))

		for step := 0; step < 400 && r.Status == RoundActive; step++ {
			p := r.Player(r.ActiveUserID)
			if rng.Intn(4) == 0 && len(r.DiscardPile) > 0 {
				_, err := r.DrawFromDiscard(p.UserID)
				require.NoError(t, err)
			} else {
				_, err := r.DrawFromStock(p.UserID)
				require.NoError(t, err)
			}
			require.NoError(t, r.Discard(p.UserID, p.Hand[rng.Intn(len(p.Hand))]))

			require.Equal(t, total, r.CardCount(), "step %d", step)
			for _, rp := range r.Players {
				require.Len(t, rp.Hand, 13)
			}
		}
		assert.Positive(t, r.Reshuffles, "400 turns must exhaust the shoe at least once")
	}
}

func TestTurnOrderCyclesThroughSeats(t *testing.T) {
	r, users := newTestRound(t, 4, NoWildcard, 21)
	var order []uuid.UUID
	for i := 0; i < 12; i++ {
		active := r.ActiveUserID
		order = append(order, active)
		drawn, err := r.DrawFromStock(active)
		require.NoError(t, err)
		require.NoError(t, r.Discard(active, drawn))
	}
	for i, u := range order {
		assert.Equal(t, users[i%4], u, "turn %d", i)
	}
}

// TestDeclareValidHandWins: a pure sequence, a set and two more runs wins with 0 points.
func TestDeclareValidHandWins(t *testing.T) {
	r, users := newTestRound(t, 2, NoWildcard, 31)
	a, b := users[0], users[1]
	groups := [][]models.Card{
		cards("3♠", "4♠", "5♠"),
		cards("7♥", "7♦", "7♣"),
		cards("9♦", "10♦", "J♦"),
		cards("2♣", "3♣", "4♣", "5♣"),
	}
	var hand []models.Card
	for _, g := range groups {
		hand = append(hand, g...)
	}
	rigHand(t, r, a, hand)
	total := r.CardCount()

	drawn, err := r.DrawFromStock(a)
	require.NoError(t, err)

	out, err := r.Declare(a, groups)
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Empty(t, out.Reason)
	assert.Equal(t, a, out.WinnerUserID)
	assert.Equal(t, RoundFinished, r.Status)
	assert.Equal(t, a, r.WinnerUserID)
	assert.Equal(t, Score{Points: 0, IsWinner: true, Reason: ScoreReasonWinner}, r.Scores[a])
	assert.False(t, r.Scores[b].IsWinner)
	assert.LessOrEqual(t, r.Scores[b].Points, 80)

	top, _ := r.DiscardTop()
	assert.Equal(t, drawn, top, "the card left out of the groups is discarded")
	assert.Len(t, r.Player(a).Hand, 13)
	assert.Equal(t, total, r.CardCount())

	require.NotNil(t, r.Reveal)
	require.NotNil(t, r.Reveal.WinnerUserID)
	assert.Equal(t, a, *r.Reveal.WinnerUserID)
	assert.Len(t, r.Reveal.Hands, 2)
	assert.Len(t, r.Reveal.Hands[0].Melds, 4)

	_, err = r.DrawFromStock(b)
	assert.ErrorIs(t, err, ErrRoundNotActive)
}

// TestDeclareWithoutPureSequenceIsPenalized: thirteen cards of sets only costs the declarer 80 points.
func TestDeclareWithoutPureSequenceIsPenalized(t *testing.T) {
	r, users := newTestRound(t, 2, NoWildcard, 41)
	a, b := users[0], users[1]
	groups := [][]models.Card{
		cards("7♥", "7♦", "7♣"),
		cards("8♥", "8♦", "8♣"),
		cards("9♥", "9♦", "9♣"),
		cards("K♠", "K♥", "K♦", "K♣"),
	}
	var hand []models.Card
	for _, g := range groups {
		hand = append(hand, g...)
	}
	rigHand(t, r, a, hand)
	_, err := r.DrawFromStock(a)
	require.NoError(t, err)

	out, err := r.Declare(a, groups)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Contains(t, out.Reason, "pure sequence")
	assert.Equal(t, uuid.Nil, out.WinnerUserID)
	assert.Equal(t, RoundFinished, r.Status)
	assert.Equal(t, 80, r.Scores[a].Points)
	assert.Equal(t, ScoreReasonInvalidDeclare, r.Scores[a].Reason)
	assert.Equal(t, 0, r.Scores[b].Points)
	assert.Nil(t, r.Reveal.WinnerUserID)
}

func TestDeclareRejectsForeignCards(t *testing.T) {
	r, users := newTestRound(t, 2, NoWildcard, 43)
	a := users[0]
	rigHand(t, r, a, cards("3♠", "4♠", "5♠", "7♥", "7♦", "7♣", "9♦", "10♦", "J♦", "2♣", "3♣", "4♣", "5♣"))
	_, err := r.DrawFromStock(a)
	require.NoError(t, err)
	before := roundJSON(t, r)

	// one deck holds a single 3♠, so the second copy cannot come from the hand
	_, err = r.Declare(a, [][]models.Card{cards("3♠", "3♠", "4♠", "5♠")})
	assert.ErrorIs(t, err, ErrCardNotInHand)
	assert.Equal(t, RoundActive, r.Status)
	assert.Equal(t, before, roundJSON(t, r))
}

func TestDeclareRequiresDraw(t *testing.T) {
	r, users := newTestRound(t, 2, NoWildcard, 47)
	a := users[0]
	groups := [][]models.Card{
		cards("3♠", "4♠", "5♠"),
		cards("7♥", "7♦", "7♣"),
		cards("9♦", "10♦", "J♦"),
		cards("2♣", "3♣", "4♣", "5♣"),
	}
	var hand []models.Card
	for _, g := range groups {
		hand = append(hand, g...)
	}
	rigHand(t, r, a, hand)
	before := roundJSON(t, r)

	_, err := r.Declare(a, groups)
	assert.ErrorIs(t, err, ErrNotDrawn)
	assert.Equal(t, KindStateConflict, KindOf(err))
	assert.Equal(t, RoundActive, r.Status)
	assert.Equal(t, uuid.Nil, r.WinnerUserID)
	assert.Equal(t, before, roundJSON(t, r))

	_, err = r.DrawFromStock(a)
	require.NoError(t, err)
	out, err := r.Declare(a, groups)
	require.NoError(t, err)
	assert.True(t, out.Valid)
}

// TestDeclareScoresLoserDeadwood: the loser's unmelded cards are summed and capped at 80.
func TestDeclareScoresLoserDeadwood(t *testing.T) {
	groups := [][]models.Card{
		cards("3♠", "4♠", "5♠"),
		cards("7♥", "7♦", "7♣"),
		cards("9♦", "10♦", "J♦"),
		cards("2♣", "3♣", "4♣", "5♣"),
	}
	var winnerHand []models.Card
	for _, g := range groups {
		winnerHand = append(winnerHand, g...)
	}

	tests := []struct {
		name       string
		loserHand  []models.Card
		wantPoints int
	}{
		{
			name:       "pairs without melds",
			loserHand:  cards("2♥", "2♦", "3♥", "3♦", "5♥", "5♦", "6♥", "6♦", "8♥", "8♦", "9♥", "9♠", "7♠"),
			wantPoints: 73,
		},
		{
			name:       "face cards hit the cap",
			loserHand:  cards("K♠", "K♥", "Q♦", "Q♣", "J♠", "J♥", "10♠", "10♥", "9♣", "8♠", "8♥", "6♠", "6♥"),
			wantPoints: 80,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, users := newTestRound(t, 2, NoWildcard, 61)
			a, b := users[0], users[1]
			rigHand(t, r, a, winnerHand)
			rigHand(t, r, b, tt.loserHand)

			_, err := r.DrawFromStock(a)
			require.NoError(t, err)
			out, err := r.Declare(a, groups)
			require.NoError(t, err)
			require.True(t, out.Valid)

			assert.Equal(t, Score{Points: tt.wantPoints, Reason: ScoreReasonDeadwood}, r.Scores[b])
			assert.ElementsMatch(t, tt.loserHand, r.Player(b).Hand)
		})
	}
}

// TestEmptyShoeRefillsFromDiscardPile: an empty shoe is refilled from the discard pile minus its top card.
func TestEmptyShoeRefillsFromDiscardPile(t *testing.T) {
	r, users := newTestRound(t, 2, NoWildcard, 51)
	a := users[0]

	// park ten shoe cards under the current discard top and set the rest aside
	top := r.DiscardPile[0]
	r.DiscardPile = append(append([]models.Card(nil), r.Shoe.Cards[:10]...), top)
	r.Shoe.Cards = nil
	total := r.CardCount()

	_, err := r.DrawFromStock(a)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Reshuffles)
	assert.Equal(t, 9, r.Shoe.Len())
	require.Len(t, r.DiscardPile, 1)
	assert.Equal(t, top, r.DiscardPile[0])
	assert.Len(t, r.Player(a).Hand, 14)
	assert.Equal(t, total, r.CardCount())
}

func TestStockExhaustedAbortsRound(t *testing.T) {
	r, users := newTestRound(t, 2, NoWildcard, 53)
	r.Shoe.Cards = nil

	_, err := r.DrawFromStock(users[0])
	assert.ErrorIs(t, err, ErrStockExhausted)
	assert.Equal(t, KindResourceExhaustion, KindOf(err))
	assert.Equal(t, RoundFinished, r.Status)
	assert.True(t, r.Aborted)
	assert.Equal(t, uuid.Nil, r.WinnerUserID)
	assert.Equal(t, 0, r.Scores[users[0]].Points)
}

func TestDropPenalties(t *testing.T) {
	r, users := newTestRound(t, 4, NoWildcard, 61)
	a, b, c, d := users[0], users[1], users[2], users[3]

	// b has not drawn this round
	require.NoError(t, r.Drop(b))
	assert.Equal(t, 20, r.Scores[b].Points)
	assert.True(t, r.Player(b).Dropped)
	assert.ErrorIs(t, r.Drop(b), ErrNotInRound)

	// a plays a turn, then drops while waiting
	drawn, err := r.DrawFromStock(a)
	require.NoError(t, err)
	require.NoError(t, r.Discard(a, drawn))
	assert.Equal(t, c, r.ActiveUserID, "dropped seat is skipped")
	require.NoError(t, r.Drop(a))
	assert.Equal(t, 40, r.Scores[a].Points)

	// two live players left
	assert.ErrorIs(t, r.Drop(c), ErrDropNotAllowed)
	assert.ErrorIs(t, r.Drop(d), ErrDropNotAllowed)
	assert.Equal(t, RoundActive, r.Status)
}

func TestDropByActivePlayerAdvancesTurn(t *testing.T) {
	r, users := newTestRound(t, 3, NoWildcard, 63)
	require.NoError(t, r.Drop(users[0]))
	assert.Equal(t, users[1], r.ActiveUserID)
	assert.Equal(t, 20, r.Scores[users[0]].Points)
}

func TestForceDropReturnsDrawnCardAndAwardsWin(t *testing.T) {
	r, users := newTestRound(t, 2, OpenWildcard, 71)
	a, b := users[0], users[1]
	total := r.CardCount()

	drawn, err := r.DrawFromStock(a)
	require.NoError(t, err)
	require.NoError(t, r.ForceDrop(a))

	top, _ := r.DiscardTop()
	assert.Equal(t, drawn, top)
	assert.Len(t, r.Player(a).Hand, 13)
	assert.True(t, r.Player(a).Disqualified)
	assert.Equal(t, Score{Points: 40, Reason: ScoreReasonDisqualified}, r.Scores[a])
	assert.Equal(t, RoundFinished, r.Status)
	assert.Equal(t, b, r.WinnerUserID)
	assert.True(t, r.Scores[b].IsWinner)
	assert.Equal(t, total, r.CardCount())
}

func TestForceDropOfWaitingPlayer(t *testing.T) {
	r, users := newTestRound(t, 3, NoWildcard, 73)
	require.NoError(t, r.ForceDrop(users[2]))
	assert.Equal(t, RoundActive, r.Status)
	assert.Equal(t, users[0], r.ActiveUserID)

	_, err := r.DrawFromStock(users[0])
	require.NoError(t, err)
	require.NoError(t, r.Discard(users[0], freeCard(r.Player(users[0]))))
	assert.Equal(t, users[1], r.ActiveUserID)

	drawn, err := r.DrawFromStock(users[1])
	require.NoError(t, err)
	require.NoError(t, r.Discard(users[1], drawn))
	assert.Equal(t, users[0], r.ActiveUserID, "disqualified seat is skipped")
	assert.Len(t, r.Player(users[2]).Hand, 13)
}

func TestCloseWildcardLockRevealsWildRank(t *testing.T) {
	r, users := newTestRound(t, 2, CloseWildcard, 81)
	a := users[0]
	rigHand(t, r, a, cards("3♠", "4♠", "5♠", "7♥", "7♦", "7♣", "9♦", "10♦", "J♦", "2♣", "3♣", "4♣", "5♣"))
	total := r.CardCount()

	_, err := r.LockMeld(a, cards("7♥", "7♦", "7♣"))
	assert.ErrorIs(t, err, ErrInvalidMeld, "close mode locks pure sequences only")
	assert.False(t, r.WildRevealed)

	res, err := r.LockMeld(a, cards("3♠", "4♠", "5♠"))
	require.NoError(t, err)
	assert.Equal(t, MeldPure, res.Kind)
	assert.True(t, res.RevealedNow)
	assert.True(t, res.WildRevealed)
	require.NotNil(t, res.WildRank)
	assert.Equal(t, *r.WildRank, *res.WildRank)
	assert.True(t, r.WildRevealed)
	assert.Len(t, r.Player(a).Hand, 13, "locked cards stay in the hand")
	assert.Equal(t, total, r.CardCount())

	_, err = r.LockMeld(a, cards("3♠", "4♠", "5♠"))
	assert.ErrorIs(t, err, ErrCardNotInHand, "cards already locked")

	res, err = r.LockMeld(a, cards("2♣", "3♣", "4♣"))
	require.NoError(t, err)
	assert.False(t, res.RevealedNow)

	res, err = r.LockMeld(a, cards("7♥", "7♦", "7♣"))
	require.NoError(t, err, "any valid meld locks once the wild rank is revealed")
	assert.True(t, res.Kind.Valid())
	assert.False(t, res.RevealedNow)
	assert.Len(t, r.Player(a).Locked, 3)

	_, err = r.DrawFromStock(a)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Discard(a, models.MustParseCards("4♠")[0]), ErrCardLocked)
	require.NoError(t, r.Discard(a, models.MustParseCards("5♣")[0]))
}

func TestOpenWildcardLocksSets(t *testing.T) {
	r, users := newTestRound(t, 2, OpenWildcard, 83)
	a := users[0]
	rigHand(t, r, a, cards("3♠", "4♠", "5♠", "7♥", "7♦", "7♣", "9♦", "10♦", "J♦", "2♣", "3♣", "4♣", "5♣"))

	res, err := r.LockMeld(a, cards("7♥", "7♦", "7♣"))
	require.NoError(t, err)
	assert.Equal(t, MeldSet, res.Kind)
	assert.False(t, res.RevealedNow)
	assert.True(t, res.WildRevealed)

	_, err = r.LockMeld(a, cards("9♦", "2♣", "4♠"))
	assert.ErrorIs(t, err, ErrInvalidMeld)
	assert.Len(t, r.Player(a).Locked, 1)
}
