package protocol

import (
	"encoding/json"

	"github.com/kou050223/duelclient/internal/models"
)

// IdentityKeys are the field names a player record may use for its user id.
// Different server message types disagree on the casing; all four are
// accepted and nothing else is.
var IdentityKeys = []string{"uid", "userId", "UserID", "user_id"}

// Defaults applied when a player record omits its bounds.
const (
	DefaultMaxHealth = 30
	DefaultMaxMana   = 10
)

// IdentityOf returns the first identity variant present on rec.
func IdentityOf(rec Object) (string, bool) {
	return rec.String(IdentityKeys...)
}

// IsSelf reports whether any identity variant on rec equals selfID.
func IsSelf(rec Object, selfID string) bool {
	if selfID == "" {
		return false
	}
	for _, k := range IdentityKeys {
		if id, ok := asString(rec[k]); ok && id == selfID {
			return true
		}
	}
	return false
}

// SplitPlayers picks the local player and the opponent out of a player
// list. The first record matching selfID is the local player. Another
// record is taken as the opponent by exclusion only when the list holds
// exactly two records.
func SplitPlayers(records []Object, selfID string) (self, opponent Object, selfIdx int) {
	selfIdx = -1
	for i, rec := range records {
		if IsSelf(rec, selfID) {
			self, selfIdx = rec, i
			break
		}
	}
	if selfIdx >= 0 && len(records) == 2 {
		other := records[1-selfIdx]
		if !IsSelf(other, selfID) {
			opponent = other
		}
	}
	return self, opponent, selfIdx
}

// TurnFlag reads the "is it my turn" sub-field of a player record.
func TurnFlag(rec Object) (bool, bool) {
	return rec.Bool("isMyTurn", "IsMyTurn", "is_my_turn", "myTurn")
}

// HandOf reads a player record's hand, if it carries one.
func HandOf(rec Object) ([]models.Card, bool) {
	vals, ok := rec.Values("hand", "Hand")
	if !ok {
		return nil, false
	}
	return DecodeCards(vals), true
}

// DecodePlayer converts a player record of either the UI shape
// (health/maxHealth/field) or the server duel shape (hp/maxHp/playArea/
// deckSize) into a Player.
func DecodePlayer(rec Object) models.Player {
	var p models.Player
	if id, ok := rec.String("id", "ID"); ok {
		p.ID = id
	} else if id, ok := IdentityOf(rec); ok {
		p.ID = id
	}
	p.Name, _ = rec.String("name", "Name", "displayName", "username")

	p.MaxHealth = DefaultMaxHealth
	if n, ok := rec.Int("maxHealth", "maxHp", "MaxHP", "max_hp"); ok {
		p.MaxHealth = n
	}
	p.Health = p.MaxHealth
	if n, ok := rec.Int("health", "hp", "HP"); ok {
		p.Health = n
	}
	p.MaxMana = DefaultMaxMana
	if n, ok := rec.Int("maxMana", "MaxMana", "max_mana"); ok {
		p.MaxMana = n
	}
	p.Mana, _ = rec.Int("mana", "Mana")

	if hand, ok := HandOf(rec); ok {
		p.Hand = hand
	}
	if vals, ok := rec.Values("deck", "Deck"); ok {
		p.Deck = DecodeCards(vals)
	} else if n, ok := rec.Int("deckSize", "DeckSize", "deck_size"); ok && n > 0 {
		// Only the count is known; the cards themselves stay hidden.
		p.Deck = make([]models.Card, n)
	}
	if vals, ok := rec.Values("field", "Field", "playArea", "play_area"); ok {
		p.Field = DecodeCards(vals)
	}
	p.Clamp()
	return p
}

func DecodeCards(vals []interface{}) []models.Card {
	cards := make([]models.Card, 0, len(vals))
	for _, v := range vals {
		if c, ok := DecodeCard(v); ok {
			cards = append(cards, c)
		}
	}
	return cards
}

// DecodeCard accepts a full card object, a server card ({id:int, attackPts,
// defensePts}) or a bare card id.
func DecodeCard(v interface{}) (models.Card, bool) {
	if id, ok := asString(v); ok {
		return models.Card{ID: id}, true
	}
	rec, ok := asObject(v)
	if !ok {
		return models.Card{}, false
	}
	var c models.Card
	c.ID, _ = rec.String("id", "ID", "cardId")
	c.Name, _ = rec.String("name", "Name")
	c.Cost, _ = rec.Int("cost", "Cost")
	c.Attack, _ = rec.Int("attack", "attackPts", "attack_pts", "Attack")
	c.Defense, _ = rec.Int("defense", "defensePts", "defense_pts", "Defense")
	c.Description, _ = rec.String("description")
	c.Image, _ = rec.String("image")
	if t, ok := rec.String("type"); ok {
		c.Type = models.CardType(t)
	}
	if r, ok := rec.String("rarity"); ok {
		c.Rarity = models.Rarity(r)
	}
	if effects, ok := rec.List("effects"); ok {
		for _, e := range effects {
			var eff models.CardEffect
			t, _ := e.String("type")
			target, _ := e.String("target")
			eff.Type, eff.Target = models.EffectType(t), models.EffectTarget(target)
			eff.Value, _ = e.Int("value")
			c.Effects = append(c.Effects, eff)
		}
	}
	return c, true
}

// RoomName reduces a roomJoined payload to an identifier. Servers send
// either a bare id or a room object.
func RoomName(v interface{}) string {
	if s, ok := asString(v); ok {
		return s
	}
	if rec, ok := asObject(v); ok {
		if id, ok := rec.String("id", "roomId", "room_id", "ID"); ok {
			return id
		}
	}
	if v == nil {
		return ""
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
