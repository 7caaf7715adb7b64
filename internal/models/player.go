package models

// Player is one side of a duel as seen by this client. For the opponent only
// len(Deck) is meaningful.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"maxHealth"`
	Mana      int    `json:"mana"`
	MaxMana   int    `json:"maxMana"`
	Hand      []Card `json:"hand"`
	Deck      []Card `json:"deck"`
	Field     []Card `json:"field"`
}

// Clamp forces Health into [0, MaxHealth] and Mana into [0, MaxMana].
// Negative maxima are treated as zero.
func (p *Player) Clamp() {
	if p.MaxHealth < 0 {
		p.MaxHealth = 0
	}
	if p.MaxMana < 0 {
		p.MaxMana = 0
	}
	p.Health = clamp(p.Health, 0, p.MaxHealth)
	p.Mana = clamp(p.Mana, 0, p.MaxMana)
}

// Clone returns a deep copy so snapshot readers never alias store state.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Hand = CloneCards(p.Hand)
	cp.Deck = CloneCards(p.Deck)
	cp.Field = CloneCards(p.Field)
	return &cp
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
