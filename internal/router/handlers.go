package router

import (
	"github.com/kou050223/duelclient/internal/game"
	"github.com/kou050223/duelclient/internal/protocol"
)

func (r *Router) applyGameUpdate(f protocol.Frame, st *game.Snapshot) {
	b := body(f, "player", "opponent", "hand", "isMyTurn", "gameStatus")
	if rec, ok := b.Object("player"); ok {
		st.Player = r.decodePlayer(rec)
	}
	if rec, ok := b.Object("opponent"); ok {
		st.Opponent = r.decodePlayer(rec)
	}
	if vals, ok := b.Values("hand"); ok && st.Player != nil {
		st.Player.Hand = r.enrichCards(protocol.DecodeCards(vals))
	}
	if mine, ok := b.Bool("isMyTurn"); ok {
		st.CurrentTurn = game.TurnOwner(mine)
	}
	if status, ok := b.String("gameStatus"); ok && status != "" {
		st.Phase = game.PhaseForStatus(status)
	}
}

func (r *Router) applyHPUpdate(f protocol.Frame, st *game.Snapshot) {
	b := body(f, "playerHp", "opponentHp")
	if hp, ok := b.Int("playerHp"); ok && st.Player != nil {
		st.Player.Health = hp
	}
	if hp, ok := b.Int("opponentHp"); ok && st.Opponent != nil {
		st.Opponent.Health = hp
	}
}

func (r *Router) applyGameEnd(f protocol.Frame, st *game.Snapshot) {
	st.Phase = game.PhaseEnd
	if w, ok := body(f, "winner").String("winner"); ok {
		if side := r.winnerSide(w, st); side != game.SideNone {
			st.Winner = side
		}
	}
}

// winnerSide accepts either a side name or a user id.
func (r *Router) winnerSide(w string, st *game.Snapshot) game.Side {
	switch {
	case w == string(game.SidePlayer), w == string(game.SideOpponent):
		return game.Side(w)
	case w == "":
		return game.SideNone
	case w == r.self(), st.Player != nil && w == st.Player.ID:
		return game.SidePlayer
	case st.Opponent != nil && w == st.Opponent.ID:
		return game.SideOpponent
	}
	return game.SideNone
}

func (r *Router) applyRoomJoined(f protocol.Frame, st *game.Snapshot) {
	room, _ := f.Fields.Get("content", "room", "roomId")
	st.CurrentRoom = protocol.RoomName(room)
	st.IsSearchingMatch = true
}

func (r *Router) applyGameReady(_ protocol.Frame, st *game.Snapshot) {
	st.IsSearchingMatch = false
}

func (r *Router) applyGameStart(f protocol.Frame, st *game.Snapshot) {
	st.Phase = game.PhaseBattle
	st.IsSearchingMatch = false
	st.CurrentRoom = ""

	c := f.Content()
	if c == nil {
		return
	}
	if id, ok := c.String("duelId", "duel_id"); ok {
		game.AdoptDuelID(st, id)
	}
	r.applyPlayers(c, st)
}

func (r *Router) applyMatchCancelled(_ protocol.Frame, st *game.Snapshot) {
	st.IsSearchingMatch = false
	st.MatchmakingError = MatchCancelledMessage
	st.CurrentRoom = ""
}

// applyError surfaces the server's message. The channel stays open, so the
// connected flag is left alone.
func (r *Router) applyError(f protocol.Frame, st *game.Snapshot) {
	msg := f.ErrorMessage()
	r.logger.Errorf("Server error: %s", msg)
	st.ConnectionError = msg
}

// applyDuelData resynchronizes from a full duel snapshot:
// {id, duelId, players, status, turnCount, activeIdx}.
func (r *Router) applyDuelData(f protocol.Frame, st *game.Snapshot) {
	c := body(f, "players", "status", "turnCount")
	if id, ok := c.String("duelId", "duel_id"); ok {
		game.AdoptDuelID(st, id)
	}
	if id, ok := c.String("gameId", "id"); ok {
		st.GameID = id
	}
	r.applyPlayers(c, st)
	if status, ok := c.String("status"); ok && status != "" {
		st.Phase = game.PhaseForStatus(status)
	}
	if n, ok := c.Int("turnCount", "turnNumber"); ok {
		st.TurnNumber = n
	}
}

// applyPlayers splits a players list into self and opponent and takes the
// turn owner from the self record, falling back to activeIdx.
func (r *Router) applyPlayers(c protocol.Object, st *game.Snapshot) {
	players, ok := c.List("players")
	if !ok {
		return
	}
	selfRec, oppRec, selfIdx := protocol.SplitPlayers(players, r.self())
	if selfRec != nil {
		st.Player = r.decodePlayer(selfRec)
	}
	if oppRec != nil {
		st.Opponent = r.decodePlayer(oppRec)
	}

	if selfRec != nil {
		if mine, ok := protocol.TurnFlag(selfRec); ok {
			st.CurrentTurn = game.TurnOwner(mine)
			return
		}
	}
	if active, ok := c.Int("activeIdx", "active_idx"); ok && selfIdx >= 0 {
		st.CurrentTurn = game.TurnOwner(active == selfIdx)
	}
}
