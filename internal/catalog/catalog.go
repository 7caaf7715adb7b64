// Package catalog holds the read-only card catalog. The client never
// mutates catalog entries; decks and hands are built from copies.
package catalog

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/kou050223/duelclient/internal/models"
)

// ErrUnknownCard is returned when a lookup names a card the catalog lacks.
var ErrUnknownCard = errors.New("unknown card")

// Catalog is an immutable set of card definitions keyed by base id.
type Catalog struct {
	cards map[string]models.Card
	order []string
}

// New builds a catalog from definitions. Later duplicates win.
func New(cards []models.Card) *Catalog {
	c := &Catalog{cards: make(map[string]models.Card, len(cards))}
	for _, card := range cards {
		if _, exists := c.cards[card.ID]; !exists {
			c.order = append(c.order, card.ID)
		}
		c.cards[card.ID] = card
	}
	sort.Strings(c.order)
	return c
}

// Len reports how many definitions the catalog holds.
func (c *Catalog) Len() int { return len(c.order) }

// Get returns a copy of the definition for id. Deck-instance ids such as
// "fireball-3" resolve to their base definition.
func (c *Catalog) Get(id string) (models.Card, error) {
	if card, ok := c.cards[id]; ok {
		return models.CloneCards([]models.Card{card})[0], nil
	}
	if base := baseID(id); base != id {
		if card, ok := c.cards[base]; ok {
			card = models.CloneCards([]models.Card{card})[0]
			card.ID = id
			return card, nil
		}
	}
	return models.Card{}, fmt.Errorf("%w: %s", ErrUnknownCard, id)
}

// All returns every definition ordered by id.
func (c *Catalog) All() []models.Card {
	out := make([]models.Card, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.cards[id])
	}
	return models.CloneCards(out)
}

// Enrich fills fields the server left empty from the catalog definition.
// Cards the catalog does not know are returned unchanged.
func (c *Catalog) Enrich(card models.Card) models.Card {
	if c == nil {
		return card
	}
	def, err := c.Get(card.ID)
	if err != nil {
		return card
	}
	if card.Name == "" {
		card.Name = def.Name
	}
	if card.Description == "" {
		card.Description = def.Description
	}
	if card.Type == "" {
		card.Type = def.Type
	}
	if card.Rarity == "" {
		card.Rarity = def.Rarity
	}
	if card.Cost == 0 {
		card.Cost = def.Cost
	}
	if card.Attack == 0 && card.Defense == 0 {
		card.Attack, card.Defense = def.Attack, def.Defense
	}
	if card.Image == "" {
		card.Image = def.Image
	}
	if len(card.Effects) == 0 {
		card.Effects = def.Effects
	}
	return card
}

// RandomDeck draws size random definitions. Each copy gets a deck-unique id
// of the form "<base>-<index>".
func (c *Catalog) RandomDeck(rng *rand.Rand, size int) []models.Card {
	if len(c.order) == 0 || size <= 0 {
		return nil
	}
	deck := make([]models.Card, 0, size)
	for i := 0; i < size; i++ {
		card := c.cards[c.order[rng.Intn(len(c.order))]]
		card = models.CloneCards([]models.Card{card})[0]
		card.ID = card.ID + "-" + strconv.Itoa(i)
		deck = append(deck, card)
	}
	return deck
}

// DrawInitialHand shuffles a copy of deck and splits off the first handSize
// cards.
func DrawInitialHand(rng *rand.Rand, deck []models.Card, handSize int) (hand, rest []models.Card) {
	shuffled := models.CloneCards(deck)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if handSize > len(shuffled) {
		handSize = len(shuffled)
	}
	if handSize < 0 {
		handSize = 0
	}
	return shuffled[:handSize], shuffled[handSize:]
}

func baseID(id string) string {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 {
		return id
	}
	if _, err := strconv.Atoi(id[i+1:]); err != nil {
		return id
	}
	return id[:i]
}
