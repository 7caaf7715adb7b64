package game

import (
	"sync"

	"github.com/kou050223/duelclient/internal/models"
)

// Kind tells the store how a mutation relates to existing state.
type Kind int

const (
	// Merge applies a partial update; anything the mutation does not touch
	// is kept.
	Merge Kind = iota
	// Resync applies a full snapshot from the server. Turn-dependent local
	// state left over from before a reconnect gap (winner, card selection)
	// is discarded before the mutation runs.
	Resync
)

func (k Kind) String() string {
	if k == Resync {
		return "resync"
	}
	return "merge"
}

// Listener receives a copy of the snapshot after every mutation. Listeners
// run synchronously on the mutating goroutine and must not mutate the store.
type Listener func(Snapshot)

// Store owns the single mutable match snapshot.
type Store struct {
	// notifyMu serializes mutate+notify so listeners observe mutations in
	// the order they were applied.
	notifyMu sync.Mutex
	mu       sync.Mutex
	state    Snapshot

	listeners map[int]Listener
	nextID    int
}

func NewStore() *Store {
	return &Store{
		state:     initialSnapshot(),
		listeners: make(map[int]Listener),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Update runs fn against the live snapshot, re-establishes the
// health/mana bounds and notifies listeners.
func (s *Store) Update(kind Kind, fn func(*Snapshot)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if kind == Resync {
		s.state.Winner = SideNone
		s.state.SelectedCard = nil
	}
	fn(&s.state)
	s.state.normalize()
	snap := s.state.Clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *Store) merge(fn func(*Snapshot)) { s.Update(Merge, fn) }

func (s *Store) SetPlayer(p *models.Player) {
	s.merge(func(st *Snapshot) { st.Player = p.Clone() })
}

func (s *Store) SetOpponent(p *models.Player) {
	s.merge(func(st *Snapshot) { st.Opponent = p.Clone() })
}

// SetHand replaces the local player's hand; no-op before the player is known.
func (s *Store) SetHand(cards []models.Card) {
	s.merge(func(st *Snapshot) {
		if st.Player != nil {
			st.Player.Hand = models.CloneCards(cards)
		}
	})
}

func (s *Store) AddCardToHand(card models.Card) {
	s.merge(func(st *Snapshot) {
		if st.Player != nil {
			st.Player.Hand = append(st.Player.Hand, models.CloneCards([]models.Card{card})...)
		}
	})
}

func (s *Store) RemoveCardFromHand(cardID string) {
	s.merge(func(st *Snapshot) {
		if st.Player == nil {
			return
		}
		kept := st.Player.Hand[:0]
		for _, c := range st.Player.Hand {
			if c.ID != cardID {
				kept = append(kept, c)
			}
		}
		st.Player.Hand = kept
	})
}

func (s *Store) SetIsMyTurn(mine bool) {
	s.merge(func(st *Snapshot) { st.CurrentTurn = TurnOwner(mine) })
}

func (s *Store) SetCurrentTurn(side Side) {
	s.merge(func(st *Snapshot) { st.CurrentTurn = side })
}

func (s *Store) SetPhase(p Phase) {
	s.merge(func(st *Snapshot) { st.Phase = p })
}

func (s *Store) SetGameStatus(status string) {
	s.merge(func(st *Snapshot) { st.Phase = PhaseForStatus(status) })
}

func (s *Store) SetWinner(w Side) {
	s.merge(func(st *Snapshot) { st.Winner = w })
}

// UpdatePlayerHP clamp-sets the local player's health.
func (s *Store) UpdatePlayerHP(hp int) {
	s.merge(func(st *Snapshot) {
		if st.Player != nil {
			st.Player.Health = hp
		}
	})
}

// UpdateOpponentHP clamp-sets the opponent's health.
func (s *Store) UpdateOpponentHP(hp int) {
	s.merge(func(st *Snapshot) {
		if st.Opponent != nil {
			st.Opponent.Health = hp
		}
	})
}

// SelectCard records the card the user picked; nil clears the selection.
func (s *Store) SelectCard(card *models.Card) {
	s.merge(func(st *Snapshot) {
		if card == nil {
			st.SelectedCard = nil
			return
		}
		c := models.CloneCards([]models.Card{*card})[0]
		st.SelectedCard = &c
	})
}

func (s *Store) SetConnectionStatus(connected bool, errMsg string) {
	s.merge(func(st *Snapshot) {
		st.IsConnected = connected
		st.ConnectionError = errMsg
	})
}

func (s *Store) SetCurrentRoom(room string) {
	s.merge(func(st *Snapshot) { st.CurrentRoom = room })
}

func (s *Store) SetSearchingMatch(searching bool) {
	s.merge(func(st *Snapshot) { st.IsSearchingMatch = searching })
}

func (s *Store) SetMatchmakingError(msg string) {
	s.merge(func(st *Snapshot) { st.MatchmakingError = msg })
}

// SetDuelID adopts id unless a different duel id is already held. Returns
// whether the store now holds id.
func (s *Store) SetDuelID(id string) bool {
	adopted := false
	s.merge(func(st *Snapshot) { adopted = AdoptDuelID(st, id) })
	return adopted
}

// AdoptMatch records a found match from any discovery path. Applying it
// more than once for the same duel is harmless.
func (s *Store) AdoptMatch(duelID string) bool {
	adopted := false
	s.merge(func(st *Snapshot) {
		adopted = AdoptDuelID(st, duelID)
		st.IsSearchingMatch = false
		st.CurrentRoom = ""
		st.MatchmakingError = ""
	})
	return adopted
}

// Reset returns the store to its initial state. Connection status survives
// a reset since the channel is owned elsewhere.
func (s *Store) Reset() {
	s.merge(func(st *Snapshot) {
		connected, connErr := st.IsConnected, st.ConnectionError
		*st = initialSnapshot()
		st.IsConnected, st.ConnectionError = connected, connErr
	})
}

// AdoptDuelID sets the correlation id on st once. An empty id or a
// conflicting one is ignored.
func AdoptDuelID(st *Snapshot, id string) bool {
	if id == "" {
		return false
	}
	if st.DuelID == "" {
		st.DuelID = id
	}
	return st.DuelID == id
}

// TurnOwner maps an "is it my turn" flag onto a side.
func TurnOwner(mine bool) Side {
	if mine {
		return SidePlayer
	}
	return SideOpponent
}
