// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/rummy/internal/models"
)

// Shoe is the ordered draw pile of a round. Index 0 is the top.
type Shoe struct {
	Cards []models.Card `json:"cards"`
}

// BuildShoe composes deckCount standard decks, each with JokersPerDeck printed jokers, in a fixed order.
func BuildShoe(deckCount int) *Shoe {
	cards := make([]models.Card, 0, deckCount*(52+JokersPerDeck))
	for d := 0; d < deckCount; d++ {
		for _, suit := range models.Suits {
			for _, rank := range models.Ranks {
				cards = append(cards, models.Standard(rank, suit))
			}
		}
		for j := 0; j < JokersPerDeck; j++ {
			cards = append(cards, models.Joker())
		}
	}
	return &Shoe{Cards: cards}
}

// ShoeSize is the card count of a shoe built for the given number of players.
func ShoeSize(players int) int {
	return DecksFor(players) * (52 + JokersPerDeck)
}

// Shuffle applies a uniform Fisher-Yates permutation.
func (s *Shoe) Shuffle(r *rand.Rand) {
	r.Shuffle(len(s.Cards), func(i, j int) {
		s.Cards[i], s.Cards[j] = s.Cards[j], s.Cards[i]
	})
}

// Draw removes and returns the top card.
func (s *Shoe) Draw() (models.Card, error) {
	if len(s.Cards) == 0 {
		return models.Card{}, ErrEmptyShoe
	}
	c := s.Cards[0]
	s.Cards = s.Cards[1:]
	return c, nil
}

// PutBottom tucks a card under the shoe.
func (s *Shoe) PutBottom(c models.Card) {
	s.Cards = append(s.Cards, c)
}

// Len returns the number of cards left.
func (s *Shoe) Len() int {
	return len(s.Cards)
}

// CardValue is the deadwood value of a card: 2-10 at face value, A/J/Q/K 10, printed jokers 0 and
// wild-rank cards 0 once the wild rank is revealed.
func CardValue(c models.Card, wildRank *models.Rank, revealed bool) int {
	if c.IsJoker() {
		return 0
	}
	if isWild(c, wildRank, revealed) {
		return 0
	}
	switch c.Rank {
	case models.RankAce, models.RankJack, models.RankQueen, models.RankKing:
		return 10
	default:
		return int(c.Rank)
	}
}

// isWild reports whether c can substitute for any card: printed jokers always, wild-rank cards once revealed.
func isWild(c models.Card, wildRank *models.Rank, revealed bool) bool {
	if c.IsJoker() {
		return true
	}
	return revealed && wildRank != nil && c.Rank == *wildRank
}
