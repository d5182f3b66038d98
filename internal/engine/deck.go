// Package engine implements the deck, hand evaluator, pot accounting, and
// betting-round state machine for a single hand of Texas Hold'em. It has no
// knowledge of tables, seats across hands, or transport — internal/table
// wraps it into a persistent table.
package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

type Suit string

const (
	Spades   Suit = "s"
	Hearts   Suit = "h"
	Diamonds Suit = "d"
	Clubs    Suit = "c"
)

type Rank string

const (
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"
	Ace   Rank = "A"
)

var rankOrder = map[Rank]int{
	Two: 2, Three: 3, Four: 4, Five: 5, Six: 6, Seven: 7, Eight: 8,
	Nine: 9, Ten: 10, Jack: 11, Queen: 12, King: 13, Ace: 14,
}

// Card is a single playing card. Zero value is not a valid card.
type Card struct {
	Suit Suit
	Rank Rank
}

type cardJSON struct {
	Suit string `json:"suit"`
	Rank string `json:"rank"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Suit: string(c.Suit), Rank: string(c.Rank)})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	if _, ok := rankOrder[Rank(cj.Rank)]; !ok {
		return fmt.Errorf("engine: invalid card rank %q", cj.Rank)
	}
	switch Suit(cj.Suit) {
	case Spades, Hearts, Diamonds, Clubs:
	default:
		return fmt.Errorf("engine: invalid card suit %q", cj.Suit)
	}
	c.Suit = Suit(cj.Suit)
	c.Rank = Rank(cj.Rank)
	return nil
}

func (c Card) String() string { return string(c.Rank) + string(c.Suit) }

// RankValue returns the card's numeric rank (2..14, Ace high).
func (c Card) RankValue() int { return rankOrder[c.Rank] }

// Deck is a shuffled stack of the 52 standard cards, dealt from the top.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck builds and shuffles a full 52-card deck using rng.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{cards: make([]Card, 0, 52), rng: rng}
	for _, s := range []Suit{Spades, Hearts, Diamonds, Clubs} {
		for _, r := range []Rank{Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace} {
			d.cards = append(d.cards, Card{Suit: s, Rank: r})
		}
	}
	d.Shuffle()
	return d
}

// NewDeckFromCards restores a deck from a remaining-card slice, which it
// copies rather than retains.
func NewDeckFromCards(cards []Card, rng *rand.Rand) *Deck {
	cp := make([]Card, len(cards))
	copy(cp, cards)
	return &Deck{cards: cp, rng: rng}
}

func (d *Deck) Shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) { d.cards[i], d.cards[j] = d.cards[j], d.cards[i] })
}

// Draw removes and returns the top card. ok is false if the deck is empty.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, true
}

func (d *Deck) Size() int { return len(d.cards) }

// Remaining returns the cards still in the deck, for persistence.
func (d *Deck) Remaining() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}
