package models

type CardType string

const (
	CardCreature CardType = "creature"
	CardSpell    CardType = "spell"
	CardArtifact CardType = "artifact"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// EffectType is what a card effect does when resolved.
type EffectType string

const (
	EffectDamage EffectType = "damage"
	EffectHeal   EffectType = "heal"
	EffectBuff   EffectType = "buff"
	EffectDebuff EffectType = "debuff"
	EffectDraw   EffectType = "draw"
)

type EffectTarget string

const (
	TargetSelf     EffectTarget = "self"
	TargetOpponent EffectTarget = "opponent"
	TargetAll      EffectTarget = "all"
)

type CardEffect struct {
	Type   EffectType   `json:"type"`
	Value  int          `json:"value"`
	Target EffectTarget `json:"target"`
}

// Card is unique by ID within one deck instance only; two decks may both
// carry a "goblin-warrior".
type Card struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Cost        int          `json:"cost"`
	Attack      int          `json:"attack"`
	Defense     int          `json:"defense"`
	Description string       `json:"description"`
	Type        CardType     `json:"type"`
	Rarity      Rarity       `json:"rarity"`
	Image       string       `json:"image,omitempty"`
	Effects     []CardEffect `json:"effects,omitempty"`
}

// CloneCards copies a card slice including each card's effects.
func CloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	for i, c := range cards {
		out[i] = c
		if c.Effects != nil {
			out[i].Effects = append([]CardEffect(nil), c.Effects...)
		}
	}
	return out
}
