// Package classifier flags likely scam messages in the background.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Oracle decides whether a text is a scam.
type Oracle interface {
	Classify(ctx context.Context, text string) (bool, error)
}

// Category groups trigger phrases.
type Category int

const (
	Urgency Category = iota
	FreeMoney
	Payment
	Money
)

// Triggers is the default dictionary. Greetings and slang in Zulu, Sotho and
// Tshivenda are deliberately absent: on their own they are normal conversation.
var Triggers = map[Category][]string{
	Urgency: {
		"manje manje", "ka bonako", "zwino zwino", "right now", "urgent", "act now",
		"immediately", "limited time", "last chance",
	},
	FreeMoney: {
		"imali yamahhala", "tshelete ya mahala", "tshelede ya fhedzi", "free money",
		"you have won", "claim your prize", "lotto winner", "double your money",
	},
	Payment: {
		"gift card", "giftcard", "e-wallet", "ewallet", "wire transfer", "western union",
		"moneygram", "send me your pin", "bank details", "one time pin", "pay for meetup",
		"selling content", "airtime voucher",
	},
	Money: {
		"imali", "tshelete", "zaka", "kroon", "clips", "nyuku", "money", "cash",
	},
}

// KeywordOracle matches normalized text against trigger phrases with an
// Aho-Corasick automaton. A free money or payment trigger is a scam on its own;
// urgency only counts together with a mention of money.
type KeywordOracle struct {
	matcher *goahocorasick.Machine
	kinds   map[string]Category
}

// NewKeywordOracle builds the automaton from triggers.
func NewKeywordOracle(triggers map[Category][]string) (*KeywordOracle, error) {
	kinds := make(map[string]Category)
	for kind, words := range triggers {
		for _, w := range words {
			norm := string(normalizeRunes([]rune(w)))
			if strings.TrimSpace(norm) == "" {
				continue
			}
			kinds[norm] = kind
		}
	}
	if len(kinds) == 0 {
		return nil, errors.New("empty trigger dictionary")
	}

	patterns := lo.Map(lo.Keys(kinds), func(k string, _ int) []rune { return []rune(k) })
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, fmt.Errorf("build matcher: %w", err)
	}
	return &KeywordOracle{matcher: m, kinds: kinds}, nil
}

// NewDefaultKeywordOracle uses Triggers.
func NewDefaultKeywordOracle() (*KeywordOracle, error) {
	return NewKeywordOracle(Triggers)
}

func (o *KeywordOracle) Classify(ctx context.Context, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	norm := normalizeRunes([]rune(text))
	if len(norm) < 2 {
		return false, nil
	}
	seen := map[Category]bool{}
	for _, term := range o.matcher.MultiPatternSearch(norm, false) {
		seen[o.kinds[string(term.Word)]] = true
	}
	return seen[FreeMoney] || seen[Payment] || (seen[Urgency] && seen[Money]), nil
}

// normalizeRunes lowercases input and reduces it to its words separated by
// single spaces, with a space at each end. Patterns built the same way only
// match whole words.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 1, len(input)+2)
	out[0] = ' '
	for i, r := range input {
		if !inWord(input, i) {
			if out[len(out)-1] != ' ' {
				out = append(out, ' ')
			}
			continue
		}
		out = append(out, unicode.ToLower(simplifyRune(r)))
	}
	if out[len(out)-1] != ' ' {
		out = append(out, ' ')
	}
	return out
}

// inWord reports whether input[i] belongs to a word. Leet symbols only count
// when they sit between two word characters, so "ca$h" is a word and "!!" is not.
func inWord(input []rune, i int) bool {
	if isWordRune(input[i]) {
		return true
	}
	if simplifyRune(input[i]) == input[i] {
		return false
	}
	return i > 0 && i < len(input)-1 && isWordRune(input[i-1]) && isWordRune(input[i+1])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// simplifyRune folds common leet substitutions.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
