// Package lexicon provides the severity-tiered profanity word lists used to
// decide which transcript words must be censored.
//
// A Lexicon is an immutable value: it is built once (from text files, a YAML
// document or an in-memory map) and then passed explicitly to the detector.
package lexicon

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Tier is a named severity level selecting which word set is active.
// Tiers are ordered: TierMinor < TierModerate < TierStrict.
type Tier int

const (
	// TierMinor selects basic profanity.
	TierMinor Tier = iota
	// TierModerate selects common curse words. It is also the fallback
	// for unknown tier names.
	TierModerate
	// TierStrict selects the widest set of inappropriate language.
	TierStrict
)

// DefaultTier is used when a caller does not specify a tier or asks for
// one that does not exist.
const DefaultTier = TierModerate

// ErrUnknownTier is returned by ParseTier for names that are not a tier.
// The accompanying Tier is always DefaultTier.
var ErrUnknownTier = errors.New("lexicon: unknown tier")

// AllTiers lists every tier in ascending severity.
func AllTiers() []Tier {
	return []Tier{TierMinor, TierModerate, TierStrict}
}

// String returns the lowercase tier name used in files, flags and JSON.
func (t Tier) String() string {
	switch t {
	case TierMinor:
		return "minor"
	case TierModerate:
		return "moderate"
	case TierStrict:
		return "strict"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// IsValid reports whether t is one of the known tiers.
func (t Tier) IsValid() bool {
	return t >= TierMinor && t <= TierStrict
}

// ParseTier converts a tier name to a Tier. Unknown names fail closed:
// DefaultTier is returned together with ErrUnknownTier so the caller can
// report the fallback.
func ParseTier(name string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "minor":
		return TierMinor, nil
	case "moderate":
		return TierModerate, nil
	case "strict":
		return TierStrict, nil
	default:
		return DefaultTier, fmt.Errorf("%w: %q (falling back to %s)", ErrUnknownTier, name, DefaultTier)
	}
}

// Normalize lowercases word, trims surrounding whitespace and drops every
// rune that is not a letter, so "Damn!" and " damn " both become "damn".
// Normalize is idempotent.
func Normalize(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, word)
}

// Lexicon maps each tier to its set of normalized tokens.
// The zero value is an empty lexicon. A Lexicon is safe for concurrent use
// because it is never modified after construction.
type Lexicon struct {
	tiers map[Tier]map[string]struct{}
}

// New builds a Lexicon from raw word lists. Words are normalized and words
// that normalize to the empty string are dropped. Invalid tiers are ignored.
func New(words map[Tier][]string) *Lexicon {
	l := &Lexicon{tiers: make(map[Tier]map[string]struct{}, len(words))}
	for tier, list := range words {
		if !tier.IsValid() {
			continue
		}
		set := make(map[string]struct{}, len(list))
		for _, w := range list {
			if n := Normalize(w); n != "" {
				set[n] = struct{}{}
			}
		}
		l.tiers[tier] = set
	}
	return l
}

// Contains reports whether the normalized form of word belongs to tier.
// An invalid tier is looked up as DefaultTier.
func (l *Lexicon) Contains(tier Tier, word string) bool {
	if l == nil {
		return false
	}
	if !tier.IsValid() {
		tier = DefaultTier
	}
	n := Normalize(word)
	if n == "" {
		return false
	}
	_, ok := l.tiers[tier][n]
	return ok
}

// Size returns the number of tokens in tier.
func (l *Lexicon) Size(tier Tier) int {
	if l == nil {
		return 0
	}
	return len(l.tiers[tier])
}

// Words returns the tokens of tier in sorted order. The returned slice is a
// copy and may be modified by the caller.
func (l *Lexicon) Words(tier Tier) []string {
	if l == nil {
		return nil
	}
	set := l.tiers[tier]
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
