package engine

import (
	"fmt"
	"sort"

	chehsunliu "github.com/chehsunliu/poker"
)

// HandClass is the family of a 5-card poker hand, ordered worst to best.
type HandClass int

const (
	HighCard HandClass = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

func (c HandClass) String() string {
	switch c {
	case StraightFlush:
		return "Straight Flush"
	case FourOfAKind:
		return "Four of a Kind"
	case FullHouse:
		return "Full House"
	case Flush:
		return "Flush"
	case Straight:
		return "Straight"
	case ThreeOfAKind:
		return "Three of a Kind"
	case TwoPair:
		return "Two Pair"
	case Pair:
		return "Pair"
	default:
		return "High Card"
	}
}

// HandValue is the outcome of evaluating a player's best 5-card hand out of
// their hole cards plus the board. Lower RankValue is stronger (chehsunliu
// convention); CompareHands hides that inversion from callers.
type HandValue struct {
	Class       HandClass
	RankValue   int32
	BestFive    []Card
	Description string
}

func toChehsunliu(c Card) (chehsunliu.Card, error) {
	var r byte
	switch c.Rank {
	case Two:
		r = '2'
	case Three:
		r = '3'
	case Four:
		r = '4'
	case Five:
		r = '5'
	case Six:
		r = '6'
	case Seven:
		r = '7'
	case Eight:
		r = '8'
	case Nine:
		r = '9'
	case Ten:
		r = 'T'
	case Jack:
		r = 'J'
	case Queen:
		r = 'Q'
	case King:
		r = 'K'
	case Ace:
		r = 'A'
	default:
		return chehsunliu.Card(0), fmt.Errorf("engine: invalid rank %q", c.Rank)
	}

	var s byte
	switch c.Suit {
	case Spades:
		s = 's'
	case Hearts:
		s = 'h'
	case Diamonds:
		s = 'd'
	case Clubs:
		s = 'c'
	default:
		return chehsunliu.Card(0), fmt.Errorf("engine: invalid suit %q", c.Suit)
	}

	return chehsunliu.NewCard(string([]byte{r, s})), nil
}

func classFromRankClass(rc int32) HandClass {
	switch rc {
	case 1:
		return StraightFlush
	case 2:
		return FourOfAKind
	case 3:
		return FullHouse
	case 4:
		return Flush
	case 5:
		return Straight
	case 6:
		return ThreeOfAKind
	case 7:
		return TwoPair
	case 8:
		return Pair
	default:
		return HighCard
	}
}

// EvaluateHand evaluates a player's best 5-card hand from 2 hole cards and
// 3-5 community cards using chehsunliu/poker for the core ranking, then
// searches the 5-of-N combinations to recover the concrete best-five cards.
func EvaluateHand(hole []Card, board []Card) (HandValue, error) {
	all := make([]Card, 0, len(hole)+len(board))
	all = append(all, hole...)
	all = append(all, board...)
	if len(all) < 5 {
		return HandValue{}, fmt.Errorf("engine: need at least 5 cards, got %d", len(all))
	}

	converted := make([]chehsunliu.Card, 0, len(all))
	for _, c := range all {
		cc, err := toChehsunliu(c)
		if err != nil {
			return HandValue{}, err
		}
		converted = append(converted, cc)
	}

	rank := chehsunliu.Evaluate(converted)
	rankClass := chehsunliu.RankClass(rank)

	best, err := bestFive(all, int32(rank))
	if err != nil {
		return HandValue{}, err
	}

	return HandValue{
		Class:       classFromRankClass(rankClass),
		RankValue:   int32(rank),
		BestFive:    best,
		Description: chehsunliu.RankString(rank),
	}, nil
}

func bestFive(cards []Card, targetRank int32) ([]Card, error) {
	if len(cards) == 5 {
		return cards, nil
	}

	var best []Card
	err := forEachCombination(cards, 5, func(combo []Card) (stop bool, err error) {
		converted := make([]chehsunliu.Card, 5)
		for i, c := range combo {
			cc, cerr := toChehsunliu(c)
			if cerr != nil {
				return false, cerr
			}
			converted[i] = cc
		}
		if int32(chehsunliu.Evaluate(converted)) == targetRank {
			best = append([]Card{}, combo...)
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if best == nil {
		sorted := append([]Card{}, cards...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].RankValue() > sorted[j].RankValue() })
		best = sorted[:5]
	}
	return best, nil
}

func forEachCombination(cards []Card, k int, visit func([]Card) (bool, error)) error {
	current := make([]Card, 0, k)
	var generate func(start int) (bool, error)
	generate = func(start int) (bool, error) {
		if len(current) == k {
			return visit(current)
		}
		for i := start; i <= len(cards)-(k-len(current)); i++ {
			current = append(current, cards[i])
			stop, err := generate(i + 1)
			current = current[:len(current)-1]
			if err != nil || stop {
				return stop, err
			}
		}
		return false, nil
	}
	_, err := generate(0)
	return err
}

// CompareHands returns -1 if a is worse than b, 0 if tied, 1 if a is better.
func CompareHands(a, b HandValue) int {
	switch {
	case a.RankValue > b.RankValue:
		return -1
	case a.RankValue < b.RankValue:
		return 1
	default:
		return 0
	}
}
