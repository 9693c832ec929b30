// internal/game/rules.go
package game

import "fmt"

// WildJokerMode decides whether a rank is designated wild for a round and when players learn it.
type WildJokerMode string

const (
	NoWildcard    WildJokerMode = "no_wildcard"
	OpenWildcard  WildJokerMode = "open_wildcard"
	CloseWildcard WildJokerMode = "close_wildcard"
)

// ParseWildJokerMode validates a mode string. An empty string selects OpenWildcard.
func ParseWildJokerMode(s string) (WildJokerMode, error) {
	switch WildJokerMode(s) {
	case "":
		return OpenWildcard, nil
	case NoWildcard, OpenWildcard, CloseWildcard:
		return WildJokerMode(s), nil
	}
	return "", fmt.Errorf("unknown wild joker mode %q", s)
}

const (
	MinPlayers    = 2
	MaxPlayers    = 6
	HandSize      = 13
	JokersPerDeck = 2
	CodeLength    = 6
)

// DecksFor returns how many decks make up the shoe for the given number of seated players.
func DecksFor(players int) int {
	switch {
	case players <= 2:
		return 1
	case players <= 4:
		return 2
	default:
		return 3
	}
}

// Rules holds the scoring constants of a table. They are product constants, not derived values.
type Rules struct {
	DropPenalty           int `json:"dropPenalty"`           // drop before drawing any card this round
	MidDropPenalty        int `json:"midDropPenalty"`        // drop after playing, forced drop, disqualification
	InvalidDeclarePenalty int `json:"invalidDeclarePenalty"` // flat charge for a wrong declaration
	MaxPoints             int `json:"maxPoints"`             // cap on deadwood points for a losing hand
}

// DefaultRules returns the standard Indian Rummy penalties.
func DefaultRules() Rules {
	return Rules{
		DropPenalty:           20,
		MidDropPenalty:        40,
		InvalidDeclarePenalty: 80,
		MaxPoints:             80,
	}
}

// Update overrides the rules present in newRules; absent keys keep their old value.
func (rules *Rules) Update(newRules map[string]interface{}) error {
	assignInt := func(field *int, key string) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		switch v := val.(type) {
		case float64:
			*field = int(v)
		case int:
			*field = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if *field < 0 {
			return fmt.Errorf("%s must be non-negative", key)
		}
		return nil
	}

	if err := assignInt(&rules.DropPenalty, "dropPenalty"); err != nil {
		return err
	}
	if err := assignInt(&rules.MidDropPenalty, "midDropPenalty"); err != nil {
		return err
	}
	if err := assignInt(&rules.InvalidDeclarePenalty, "invalidDeclarePenalty"); err != nil {
		return err
	}
	if err := assignInt(&rules.MaxPoints, "maxPoints"); err != nil {
		return err
	}
	return nil
}

// Validate rejects negative penalties.
func (rules Rules) Validate() error {
	for key, val := range map[string]int{
		"dropPenalty":           rules.DropPenalty,
		"midDropPenalty":        rules.MidDropPenalty,
		"invalidDeclarePenalty": rules.InvalidDeclarePenalty,
		"maxPoints":             rules.MaxPoints,
	} {
		if val < 0 {
			return fmt.Errorf("%s must be non-negative", key)
		}
	}
	return nil
}

// ParseRules applies the overrides in rules on top of current.
func ParseRules(rules map[string]interface{}, current Rules) (Rules, error) {
	out := current
	err := out.Update(rules)
	return out, err
}
