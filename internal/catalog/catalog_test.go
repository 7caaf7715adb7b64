package catalog

import (
	"context"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kou050223/duelclient/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogLookup(t *testing.T) {
	c := Default()
	require.Equal(t, 14, c.Len())

	card, err := c.Get("dragon-lord")
	require.NoError(t, err)
	assert.Equal(t, models.RarityLegendary, card.Rarity)
	assert.Len(t, card.Effects, 2)

	// Deck-instance ids resolve to their base definition but keep their own id.
	card, err = c.Get("fireball-7")
	require.NoError(t, err)
	assert.Equal(t, "fireball-7", card.ID)
	assert.Equal(t, models.CardSpell, card.Type)

	_, err = c.Get("no-such-card")
	assert.ErrorIs(t, err, ErrUnknownCard)
}

func TestCatalogIsReadOnly(t *testing.T) {
	c := Default()
	card, err := c.Get("flame-dragon")
	require.NoError(t, err)
	card.Effects[0].Value = 99

	again, err := c.Get("flame-dragon")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Effects[0].Value)
}

func TestEnrichFillsMissingFields(t *testing.T) {
	c := Default()
	got := c.Enrich(models.Card{ID: "knight-guard-2"})
	assert.Equal(t, "Knight Guard", got.Name)
	assert.Equal(t, 3, got.Cost)
	assert.Equal(t, 2, got.Attack)
	assert.Equal(t, 4, got.Defense)

	// Server-provided values win.
	got = c.Enrich(models.Card{ID: "knight-guard", Attack: 7})
	assert.Equal(t, 7, got.Attack)

	unknown := models.Card{ID: "42", Name: "Mystery"}
	assert.Equal(t, unknown, c.Enrich(unknown))

	var nilCatalog *Catalog
	assert.Equal(t, unknown, nilCatalog.Enrich(unknown))
}

func TestRandomDeckIDsAreDeckUnique(t *testing.T) {
	c := Default()
	deck := c.RandomDeck(rand.New(rand.NewSource(1)), 20)
	require.Len(t, deck, 20)

	seen := map[string]bool{}
	for _, card := range deck {
		assert.False(t, seen[card.ID], "duplicate id %s", card.ID)
		seen[card.ID] = true
		assert.True(t, strings.Contains(card.ID, "-"))
	}

	hand, rest := DrawInitialHand(rand.New(rand.NewSource(2)), deck, 5)
	assert.Len(t, hand, 5)
	assert.Len(t, rest, 15)

	hand, rest = DrawInitialHand(rand.New(rand.NewSource(2)), deck[:3], 5)
	assert.Len(t, hand, 3)
	assert.Empty(t, rest)
}

// Needs a Postgres with a populated cards table.
func TestLoadPostgres(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	c, err := LoadPostgres(ctx, pool)
	require.NoError(t, err)
	assert.Positive(t, c.Len())
}
