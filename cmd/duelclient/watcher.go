package main

import (
	"github.com/kou050223/duelclient/internal/game"
	"github.com/kou050223/duelclient/internal/models"
	"github.com/sirupsen/logrus"
)

// attacker is the outbound side of the duel channel used by autoplay.
type attacker interface {
	Attack(card models.Card) error
}

// watcher turns snapshot changes into log lines and, with autoplay on,
// into attacks.
type watcher struct {
	store    *game.Store
	out      attacker
	logger   *logrus.Logger
	autoplay bool

	prev game.Snapshot
	// turnOpen is set when a player turn begins and cleared by the attack.
	turnOpen bool
}

func newWatcher(store *game.Store, out attacker, logger *logrus.Logger, autoplay bool) *watcher {
	return &watcher{store: store, out: out, logger: logger, autoplay: autoplay, prev: store.Snapshot()}
}

func (w *watcher) observe(s game.Snapshot) {
	prev := w.prev
	w.prev = s

	if s.IsConnected != prev.IsConnected {
		if s.IsConnected {
			w.logger.Info("Connected to duel server")
		} else {
			w.logger.Warn("Disconnected from duel server")
		}
	}
	if s.ConnectionError != "" && s.ConnectionError != prev.ConnectionError {
		w.logger.Error(s.ConnectionError)
	}
	if s.MatchmakingError != "" && s.MatchmakingError != prev.MatchmakingError {
		w.logger.Error(s.MatchmakingError)
	}
	if s.IsSearchingMatch && !prev.IsSearchingMatch {
		w.logger.Info("Searching for an opponent")
	}
	if s.CurrentRoom != "" && s.CurrentRoom != prev.CurrentRoom {
		w.logger.Infof("Joined room %s", s.CurrentRoom)
	}
	if s.Phase == game.PhaseBattle && prev.Phase != game.PhaseBattle {
		w.logger.WithField("duel", s.DuelID).Info("Duel started")
	}
	if s.CurrentTurn != prev.CurrentTurn || s.TurnNumber != prev.TurnNumber {
		w.logger.Debugf("Turn %d: %s", s.TurnNumber, s.CurrentTurn)
	}
	if s.Winner != game.SideNone && s.Winner != prev.Winner {
		w.logger.Infof("Duel over: %s wins", s.Winner)
	}

	if w.autoplay {
		w.play(prev, s)
	}
}

// play attacks once per turn with the highest-attack card in hand. A turn
// begins when the turn passes to the player, when battle starts on the
// player's turn, or when the turn number advances.
func (w *watcher) play(prev, s game.Snapshot) {
	if s.Phase != game.PhaseBattle || s.CurrentTurn != game.SidePlayer || s.Winner != game.SideNone {
		w.turnOpen = false
		return
	}
	if prev.Phase != game.PhaseBattle || prev.CurrentTurn != game.SidePlayer || prev.TurnNumber != s.TurnNumber {
		w.turnOpen = true
	}
	if !w.turnOpen || s.Player == nil || len(s.Player.Hand) == 0 {
		return
	}

	best := s.Player.Hand[0]
	for _, c := range s.Player.Hand[1:] {
		if c.Attack > best.Attack {
			best = c
		}
	}
	w.store.SelectCard(&best)
	if err := w.out.Attack(best); err != nil {
		w.logger.Warnf("Attack with %s failed: %v", best.ID, err)
		return
	}
	w.turnOpen = false
	w.logger.Infof("Attacked with %s (%d)", best.Name, best.Attack)
}
