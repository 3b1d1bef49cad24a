package deck

// Deck represents an ordered 52-card deck. Cards are drawn from the top.
type Deck struct {
	cards []Card
	src   Source
}

// New creates a canonical 52-card deck backed by the given source.
// The deck starts unshuffled.
func New(src Source) *Deck {
	d := &Deck{
		cards: make([]Card, 0, 52),
		src:   src,
	}
	for suit := Hearts; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(rank, suit))
		}
	}
	return d
}

// Shuffle applies a Fisher-Yates shuffle driven by the deck's source.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.src.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	card := d.cards[0]
	d.cards = d.cards[1:]
	return card, true
}

// DrawN draws n cards from the top, or fewer if the deck runs out.
func (d *Deck) DrawN(n int) []Card {
	if n > len(d.cards) {
		n = len(d.cards)
	}
	cards := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		card, ok := d.Draw()
		if !ok {
			break
		}
		cards = append(cards, card)
	}
	return cards
}

// Burn discards the top card, returning it for bookkeeping.
func (d *Deck) Burn() (Card, bool) {
	return d.Draw()
}

// Remaining returns the number of cards left.
func (d *Deck) Remaining() int {
	return len(d.cards)
}
