package game

import "github.com/kou050223/duelclient/internal/models"

// Side names one of the two seats from this client's point of view.
type Side string

const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
	SideNone     Side = ""
)

type Phase string

const (
	PhaseDraw   Phase = "draw"
	PhaseMain   Phase = "main"
	PhaseBattle Phase = "battle"
	PhaseEnd    Phase = "end"
)

// PhaseForStatus maps a server game status onto a phase. "playing" and
// "active" mean the duel is underway; "finished" ends it; anything else is
// treated as the pre-game draw phase.
func PhaseForStatus(status string) Phase {
	switch status {
	case "playing", "active":
		return PhaseBattle
	case "finished":
		return PhaseEnd
	default:
		return PhaseDraw
	}
}

// Snapshot is the client's whole view of one match. Values returned by the
// Store are deep copies; mutating them has no effect on the store.
type Snapshot struct {
	GameID      string         `json:"gameId"`
	DuelID      string         `json:"duelId"`
	Player      *models.Player `json:"player,omitempty"`
	Opponent    *models.Player `json:"opponent,omitempty"`
	CurrentTurn Side           `json:"currentTurn"`
	Phase       Phase          `json:"phase"`
	TurnNumber  int            `json:"turnNumber"`
	Winner      Side           `json:"winner,omitempty"`

	SelectedCard *models.Card `json:"selectedCard,omitempty"`

	IsConnected     bool   `json:"isConnected"`
	ConnectionError string `json:"connectionError,omitempty"`

	CurrentRoom      string `json:"currentRoom,omitempty"`
	IsSearchingMatch bool   `json:"isSearchingMatch"`
	MatchmakingError string `json:"matchmakingError,omitempty"`
}

func initialSnapshot() Snapshot {
	return Snapshot{
		CurrentTurn: SidePlayer,
		Phase:       PhaseDraw,
		TurnNumber:  1,
	}
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	cp := s
	cp.Player = s.Player.Clone()
	cp.Opponent = s.Opponent.Clone()
	if s.SelectedCard != nil {
		c := models.CloneCards([]models.Card{*s.SelectedCard})[0]
		cp.SelectedCard = &c
	}
	return cp
}

func (s *Snapshot) normalize() {
	if s.Player != nil {
		s.Player.Clamp()
	}
	if s.Opponent != nil {
		s.Opponent.Clamp()
	}
	if s.TurnNumber < 1 {
		s.TurnNumber = 1
	}
}
