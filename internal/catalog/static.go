package catalog

import "github.com/kou050223/duelclient/internal/models"

func effect(t models.EffectType, v int, target models.EffectTarget) models.CardEffect {
	return models.CardEffect{Type: t, Value: v, Target: target}
}

var staticCards = []models.Card{
	{ID: "goblin-warrior", Name: "Goblin Warrior", Cost: 1, Attack: 2, Defense: 1,
		Description: "Small but brave.", Type: models.CardCreature, Rarity: models.RarityCommon},
	{ID: "forest-wolf", Name: "Forest Wolf", Cost: 2, Attack: 3, Defense: 2,
		Description: "Hunts its prey by instinct.", Type: models.CardCreature, Rarity: models.RarityCommon},
	{ID: "knight-guard", Name: "Knight Guard", Cost: 3, Attack: 2, Defense: 4,
		Description: "An iron wall.", Type: models.CardCreature, Rarity: models.RarityCommon},
	{ID: "flame-dragon", Name: "Flame Dragon", Cost: 4, Attack: 5, Defense: 3,
		Description: "Breathes fire.", Type: models.CardCreature, Rarity: models.RarityUncommon,
		Effects: []models.CardEffect{effect(models.EffectDamage, 1, models.TargetOpponent)}},
	{ID: "ice-wizard", Name: "Ice Wizard", Cost: 3, Attack: 2, Defense: 3,
		Description: "Freezes enemies in place.", Type: models.CardCreature, Rarity: models.RarityUncommon,
		Effects: []models.CardEffect{effect(models.EffectDebuff, -1, models.TargetOpponent)}},
	{ID: "ancient-golem", Name: "Ancient Golem", Cost: 5, Attack: 4, Defense: 6,
		Description: "A stone giant of the old world.", Type: models.CardCreature, Rarity: models.RarityRare},
	{ID: "shadow-assassin", Name: "Shadow Assassin", Cost: 4, Attack: 6, Defense: 2,
		Description: "Strikes once from the dark.", Type: models.CardCreature, Rarity: models.RarityRare},
	{ID: "dragon-lord", Name: "Dragon Lord", Cost: 7, Attack: 8, Defense: 6,
		Description: "King of all dragons.", Type: models.CardCreature, Rarity: models.RarityLegendary,
		Effects: []models.CardEffect{
			effect(models.EffectDamage, 3, models.TargetOpponent),
			effect(models.EffectBuff, 2, models.TargetSelf),
		}},
	{ID: "light-goddess", Name: "Light Goddess", Cost: 6, Attack: 5, Defense: 7,
		Description: "Heals allies with holy light.", Type: models.CardCreature, Rarity: models.RarityLegendary,
		Effects: []models.CardEffect{effect(models.EffectHeal, 5, models.TargetSelf)}},
	{ID: "fireball", Name: "Fireball", Cost: 2,
		Description: "Deals 3 damage.", Type: models.CardSpell, Rarity: models.RarityCommon,
		Effects: []models.CardEffect{effect(models.EffectDamage, 3, models.TargetOpponent)}},
	{ID: "healing-potion", Name: "Healing Potion", Cost: 1,
		Description: "Restores 3 HP.", Type: models.CardSpell, Rarity: models.RarityCommon,
		Effects: []models.CardEffect{effect(models.EffectHeal, 3, models.TargetSelf)}},
	{ID: "lightning-bolt", Name: "Lightning Bolt", Cost: 3,
		Description: "Deals 5 damage.", Type: models.CardSpell, Rarity: models.RarityUncommon,
		Effects: []models.CardEffect{effect(models.EffectDamage, 5, models.TargetOpponent)}},
	{ID: "sword-of-power", Name: "Sword of Power", Cost: 2, Attack: 2,
		Description: "Raises attack by 2.", Type: models.CardArtifact, Rarity: models.RarityUncommon,
		Effects: []models.CardEffect{effect(models.EffectBuff, 2, models.TargetSelf)}},
	{ID: "shield-of-defense", Name: "Shield of Defense", Cost: 2, Defense: 3,
		Description: "Raises defense by 3.", Type: models.CardArtifact, Rarity: models.RarityUncommon,
		Effects: []models.CardEffect{effect(models.EffectBuff, 3, models.TargetSelf)}},
}

// Default returns the built-in card set.
func Default() *Catalog {
	return New(staticCards)
}
