// internal/game/meld.go
package game

import (
	"fmt"
	"sort"

	"github.com/jason-s-yu/rummy/internal/models"
)

// MeldKind classifies a group of cards.
type MeldKind string

const (
	MeldInvalid MeldKind = "invalid"
	MeldPure    MeldKind = "pure"
	MeldImpure  MeldKind = "impure"
	MeldSet     MeldKind = "set"
)

// Valid reports whether the kind is a scoring meld.
func (k MeldKind) Valid() bool {
	return k == MeldPure || k == MeldImpure || k == MeldSet
}

// Meld is a classified group of cards.
type Meld struct {
	Kind  MeldKind      `json:"kind"`
	Cards []models.Card `json:"cards"`
}

// Classify returns the kind of the group. Sequences take precedence over sets, and a group of fewer
// than 3 cards is always invalid.
func Classify(cards []models.Card, wildRank *models.Rank, revealed bool) MeldKind {
	if len(cards) < 3 {
		return MeldInvalid
	}
	if isPureSequence(cards) {
		return MeldPure
	}
	if isSequence(cards, wildRank, revealed) {
		return MeldImpure
	}
	if isSet(cards, wildRank, revealed) {
		return MeldSet
	}
	return MeldInvalid
}

// isPureSequence: no printed jokers, one suit, contiguous distinct ranks. Wild-rank cards count at face value.
func isPureSequence(cards []models.Card) bool {
	if len(cards) > len(models.Ranks) {
		return false
	}
	for _, c := range cards {
		if c.IsJoker() {
			return false
		}
	}
	return runFits(cards, 0)
}

// isSequence tries the wild-rank cards first as substitutes and then at face value.
func isSequence(cards []models.Card, wildRank *models.Rank, revealed bool) bool {
	if len(cards) > len(models.Ranks) {
		return false
	}
	naturals, wilds := splitWild(cards, wildRank, revealed)
	if runFits(naturals, wilds) {
		return true
	}
	if revealed && wildRank != nil {
		naturals, wilds = splitWild(cards, nil, false)
		return runFits(naturals, wilds)
	}
	return false
}

// runFits reports whether naturals, all of one suit with distinct ranks, can be completed into a run
// using at most wilds substitutes. Ace is low and K-A does not connect.
func runFits(naturals []models.Card, wilds int) bool {
	if len(naturals) == 0 {
		return false
	}
	suit := naturals[0].Suit
	ranks := make([]int, 0, len(naturals))
	for _, c := range naturals {
		if c.Suit != suit {
			return false
		}
		ranks = append(ranks, int(c.Rank))
	}
	sort.Ints(ranks)
	for i := 1; i < len(ranks); i++ {
		if ranks[i] == ranks[i-1] {
			return false
		}
	}
	gaps := ranks[len(ranks)-1] - ranks[0] + 1 - len(ranks)
	return gaps <= wilds
}

func isSet(cards []models.Card, wildRank *models.Rank, revealed bool) bool {
	if len(cards) > 4 {
		return false
	}
	naturals, _ := splitWild(cards, wildRank, revealed)
	if setFits(naturals) {
		return true
	}
	if revealed && wildRank != nil {
		naturals, _ = splitWild(cards, nil, false)
		return setFits(naturals)
	}
	return false
}

// setFits: fewer than two naturals is a provisional set; otherwise one rank and distinct suits.
func setFits(naturals []models.Card) bool {
	if len(naturals) < 2 {
		return true
	}
	seen := make(map[models.Suit]bool, len(naturals))
	for _, c := range naturals {
		if c.Rank != naturals[0].Rank || seen[c.Suit] {
			return false
		}
		seen[c.Suit] = true
	}
	return true
}

func splitWild(cards []models.Card, wildRank *models.Rank, revealed bool) ([]models.Card, int) {
	naturals := make([]models.Card, 0, len(cards))
	wilds := 0
	for _, c := range cards {
		if isWild(c, wildRank, revealed) {
			wilds++
			continue
		}
		naturals = append(naturals, c)
	}
	return naturals, wilds
}

// ValidateDeclaration checks a final grouping: 13 cards in total, at least one pure sequence and every
// group a valid meld. It returns nil or an *InvalidDeclarationError.
func ValidateDeclaration(groups [][]models.Card, wildRank *models.Rank, revealed bool) error {
	total := 0
	for _, g := range groups {
		total += len(g)
	}
	if total != HandSize {
		return &InvalidDeclarationError{Reason: fmt.Sprintf("total cards must be %d, got %d", HandSize, total)}
	}

	kinds := make([]MeldKind, len(groups))
	hasPure := false
	for i, g := range groups {
		kinds[i] = Classify(g, wildRank, revealed)
		if kinds[i] == MeldPure {
			hasPure = true
		}
	}
	if !hasPure {
		return &InvalidDeclarationError{Reason: "at least one pure sequence required"}
	}
	for i, k := range kinds {
		if !k.Valid() {
			return &InvalidDeclarationError{Reason: fmt.Sprintf("group %d is not a valid sequence or set", i+1)}
		}
	}
	return nil
}

// Organization is the greedy grouping of a hand used for scoring and the post-declare reveal.
type Organization struct {
	Melds    []Meld        `json:"melds"`
	Deadwood []models.Card `json:"deadwood"`
}

// Groups returns the card groups of the melds.
func (o Organization) Groups() [][]models.Card {
	out := make([][]models.Card, 0, len(o.Melds))
	for _, m := range o.Melds {
		out = append(out, m.Cards)
	}
	return out
}

// Organize groups a hand greedily: locked melds in submitted order, then the longest pure runs, then
// runs completed with jokers, then sets. Whatever is left is deadwood.
func Organize(hand []models.Card, locked [][]models.Card, wildRank *models.Rank, revealed bool) Organization {
	pool := append([]models.Card(nil), hand...)
	org := Organization{}

	for _, group := range locked {
		rest, ok := removeCards(pool, group)
		if !ok {
			continue
		}
		kind := Classify(group, wildRank, revealed)
		if !kind.Valid() {
			continue
		}
		pool = rest
		org.Melds = append(org.Melds, Meld{Kind: kind, Cards: append([]models.Card(nil), group...)})
	}

	for {
		run := longestPureRun(pool)
		if run == nil {
			break
		}
		pool, _ = removeCards(pool, run)
		org.Melds = append(org.Melds, Meld{Kind: MeldPure, Cards: run})
	}

	for {
		run := bestImpureRun(pool, wildRank, revealed)
		if run == nil {
			break
		}
		pool, _ = removeCards(pool, run)
		org.Melds = append(org.Melds, Meld{Kind: MeldImpure, Cards: run})
	}

	for {
		set := bestSet(pool, wildRank, revealed)
		if set == nil {
			break
		}
		pool, _ = removeCards(pool, set)
		org.Melds = append(org.Melds, Meld{Kind: MeldSet, Cards: set})
	}

	org.Deadwood = pool
	if org.Deadwood == nil {
		org.Deadwood = []models.Card{}
	}
	if org.Melds == nil {
		org.Melds = []Meld{}
	}
	return org
}

// longestPureRun returns the longest run of 3+ contiguous same-suit cards in pool, or nil.
func longestPureRun(pool []models.Card) []models.Card {
	var best []models.Card
	for _, suit := range models.Suits {
		present := make(map[models.Rank]models.Card)
		for _, c := range pool {
			if !c.IsJoker() && c.Suit == suit {
				present[c.Rank] = c
			}
		}
		var cur []models.Card
		for _, r := range models.Ranks {
			c, ok := present[r]
			if !ok {
				cur = nil
				continue
			}
			cur = append(cur, c)
			if len(cur) >= 3 && len(cur) > len(best) {
				best = append([]models.Card(nil), cur...)
			}
		}
	}
	return best
}

// bestImpureRun finds the window of same-suit naturals that covers the most naturals with the jokers in
// pool, preferring windows that need fewer jokers. At least two naturals are required, and cards of a
// rank held in three or more suits are not used.
func bestImpureRun(pool []models.Card, wildRank *models.Rank, revealed bool) []models.Card {
	naturals, _ := splitWild(pool, wildRank, revealed)
	var jokers []models.Card
	for _, c := range pool {
		if isWild(c, wildRank, revealed) {
			jokers = append(jokers, c)
		}
	}
	if len(jokers) == 0 {
		return nil
	}

	// ranks that already form a natural set are left for the set pass
	suitsOfRank := make(map[models.Rank]map[models.Suit]bool)
	for _, c := range naturals {
		if suitsOfRank[c.Rank] == nil {
			suitsOfRank[c.Rank] = make(map[models.Suit]bool)
		}
		suitsOfRank[c.Rank][c.Suit] = true
	}

	var best []models.Card
	bestNeed := 0
	for _, suit := range models.Suits {
		present := make(map[models.Rank]models.Card)
		for _, c := range naturals {
			if c.Suit == suit && len(suitsOfRank[c.Rank]) < 3 {
				present[c.Rank] = c
			}
		}
		var line []models.Card
		for _, r := range models.Ranks {
			if c, ok := present[r]; ok {
				line = append(line, c)
			}
		}
		for i := 0; i < len(line); i++ {
			for j := i + 1; j < len(line); j++ {
				n := j - i + 1
				span := int(line[j].Rank) - int(line[i].Rank) + 1
				need := span - n
				if span < 3 {
					need += 3 - span
				}
				if need == 0 || need > len(jokers) {
					continue
				}
				if best == nil || n > len(best)-bestNeed || (n == len(best)-bestNeed && need < bestNeed) {
					best = append(append([]models.Card(nil), line[i:j+1]...), jokers[:need]...)
					bestNeed = need
				}
			}
		}
	}
	return best
}

// bestSet returns a set from pool: 3-4 naturals of one rank with distinct suits, or a pair completed by
// a joker. Higher-value ranks are tried first.
func bestSet(pool []models.Card, wildRank *models.Rank, revealed bool) []models.Card {
	naturals, _ := splitWild(pool, wildRank, revealed)
	var joker *models.Card
	for _, c := range pool {
		if isWild(c, wildRank, revealed) {
			c := c
			joker = &c
			break
		}
	}

	ranks := append([]models.Rank(nil), models.Ranks...)
	sort.SliceStable(ranks, func(i, j int) bool {
		vi, vj := CardValue(models.Standard(ranks[i], models.SuitSpades), nil, false), CardValue(models.Standard(ranks[j], models.SuitSpades), nil, false)
		if vi != vj {
			return vi > vj
		}
		return ranks[i] > ranks[j]
	})

	for _, r := range ranks {
		bySuit := make(map[models.Suit]models.Card)
		for _, c := range naturals {
			if c.Rank == r {
				bySuit[c.Suit] = c
			}
		}
		group := make([]models.Card, 0, 4)
		for _, s := range models.Suits {
			if c, ok := bySuit[s]; ok {
				group = append(group, c)
			}
		}
		if len(group) >= 3 {
			return group
		}
		if len(group) == 2 && joker != nil {
			return append(group, *joker)
		}
	}
	return nil
}

// removeCards removes one instance of each card in take from pool. It reports false, leaving pool
// untouched, when a card is missing.
func removeCards(pool []models.Card, take []models.Card) ([]models.Card, bool) {
	rest := append([]models.Card(nil), pool...)
	for _, c := range take {
		idx := indexOfCard(rest, c)
		if idx < 0 {
			return pool, false
		}
		rest = append(rest[:idx], rest[idx+1:]...)
	}
	return rest, true
}

func indexOfCard(cards []models.Card, c models.Card) int {
	for i, x := range cards {
		if x == c {
			return i
		}
	}
	return -1
}

func countCard(cards []models.Card, c models.Card) int {
	n := 0
	for _, x := range cards {
		if x == c {
			n++
		}
	}
	return n
}
