// internal/models/card.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit of a standard card. SuitNone is only used by the printed joker.
type Suit uint8

const (
	SuitNone Suit = iota
	SuitSpades
	SuitHearts
	SuitDiamonds
	SuitClubs
)

// Suits lists the four standard suits in deck-building order.
var Suits = []Suit{SuitSpades, SuitHearts, SuitDiamonds, SuitClubs}

// Symbol returns the unicode glyph used in card codes.
func (s Suit) Symbol() string {
	switch s {
	case SuitSpades:
		return "♠"
	case SuitHearts:
		return "♥"
	case SuitDiamonds:
		return "♦"
	case SuitClubs:
		return "♣"
	default:
		return ""
	}
}

// Rank of a card. Ace is low (1); RankJoker marks a printed joker.
type Rank uint8

const (
	RankJoker Rank = iota
	RankAce
	RankTwo
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
)

// Ranks lists Ace..King in sequence order.
var Ranks = []Rank{
	RankAce, RankTwo, RankThree, RankFour, RankFive, RankSix, RankSeven,
	RankEight, RankNine, RankTen, RankJack, RankQueen, RankKing,
}

var rankCodes = map[Rank]string{
	RankJoker: "JOKER",
	RankAce:   "A",
	RankTwo:   "2",
	RankThree: "3",
	RankFour:  "4",
	RankFive:  "5",
	RankSix:   "6",
	RankSeven: "7",
	RankEight: "8",
	RankNine:  "9",
	RankTen:   "10",
	RankJack:  "J",
	RankQueen: "Q",
	RankKing:  "K",
}

// String returns the rank as it appears in a card code ("A", "10", "K", "JOKER").
func (r Rank) String() string {
	if s, ok := rankCodes[r]; ok {
		return s
	}
	return "?"
}

// MarshalJSON encodes the rank as its code string.
func (r Rank) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a rank code string.
func (r *Rank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank parses "A", "2".."10", "T", "J", "Q", "K" or "JOKER".
func ParseRank(s string) (Rank, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "T" {
		return RankTen, nil
	}
	for r, code := range rankCodes {
		if code == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

// Card is an immutable playing card: either a standard card (rank + suit) or a printed joker.
// The zero value is a printed joker.
type Card struct {
	Rank Rank
	Suit Suit
}

// Standard builds a standard card.
func Standard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// Joker builds a printed joker.
func Joker() Card {
	return Card{Rank: RankJoker, Suit: SuitNone}
}

// IsJoker reports whether the card is a printed joker.
func (c Card) IsJoker() bool {
	return c.Rank == RankJoker
}

// Code returns the wire representation, e.g. "10♠", "A♥" or "JOKER".
func (c Card) Code() string {
	if c.IsJoker() {
		return "JOKER"
	}
	return c.Rank.String() + c.Suit.Symbol()
}

func (c Card) String() string {
	return c.Code()
}

// MarshalJSON encodes the card as its code string.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Code())
}

// UnmarshalJSON accepts either a code string or an object {"rank": "7", "suit": "♥"}.
func (c *Card) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		parsed, err := ParseCard(code)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var obj struct {
		Rank string  `json:"rank"`
		Suit *string `json:"suit"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}
	suit := ""
	if obj.Suit != nil {
		suit = *obj.Suit
	}
	parsed, err := ParseCard(obj.Rank + suit)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard decodes a card code. Suits may be given as glyphs (♠♥♦♣) or letters (S H D C).
func ParseCard(code string) (Card, error) {
	code = strings.TrimSpace(code)
	if strings.EqualFold(code, "JOKER") {
		return Joker(), nil
	}
	if code == "" {
		return Card{}, fmt.Errorf("empty card code")
	}

	runes := []rune(code)
	suit, err := parseSuit(string(runes[len(runes)-1]))
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", code, err)
	}
	rank, err := ParseRank(string(runes[:len(runes)-1]))
	if err != nil {
		return Card{}, fmt.Errorf("card %q: %w", code, err)
	}
	if rank == RankJoker {
		return Card{}, fmt.Errorf("card %q: joker cannot carry a suit", code)
	}
	return Standard(rank, suit), nil
}

// MustParseCards parses a list of codes and panics on the first bad one. Intended for tests and fixtures.
func MustParseCards(codes ...string) []Card {
	out := make([]Card, 0, len(codes))
	for _, code := range codes {
		c, err := ParseCard(code)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

func parseSuit(s string) (Suit, error) {
	switch strings.ToUpper(s) {
	case "♠", "S":
		return SuitSpades, nil
	case "♥", "H":
		return SuitHearts, nil
	case "♦", "D":
		return SuitDiamonds, nil
	case "♣", "C":
		return SuitClubs, nil
	}
	return SuitNone, fmt.Errorf("unknown suit %q", s)
}
