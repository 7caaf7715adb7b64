// Package router turns inbound frames into store mutations.
package router

import (
	"context"

	"github.com/kou050223/duelclient/internal/catalog"
	"github.com/kou050223/duelclient/internal/game"
	"github.com/kou050223/duelclient/internal/models"
	"github.com/kou050223/duelclient/internal/protocol"
	"github.com/sirupsen/logrus"
)

// Recorder receives every well-formed inbound frame before it is applied.
type Recorder interface {
	Record(ctx context.Context, f protocol.Frame, raw []byte) error
}

// event is one row of the dispatch table. A nil apply means the frame is
// recognized but carries nothing for the snapshot.
type event struct {
	kind  game.Kind
	apply func(r *Router, f protocol.Frame, st *game.Snapshot)
}

var events = map[string]event{
	protocol.TypePong:           {kind: game.Merge},
	protocol.TypeUserConnected:  {kind: game.Merge},
	protocol.TypeTestResponse:   {kind: game.Merge},
	protocol.TypeGameUpdate:     {kind: game.Merge, apply: (*Router).applyGameUpdate},
	protocol.TypeHPUpdate:       {kind: game.Merge, apply: (*Router).applyHPUpdate},
	protocol.TypeGameEnd:        {kind: game.Merge, apply: (*Router).applyGameEnd},
	protocol.TypeRoomJoined:     {kind: game.Merge, apply: (*Router).applyRoomJoined},
	protocol.TypeGameReady:      {kind: game.Merge, apply: (*Router).applyGameReady},
	protocol.TypeGameStart:      {kind: game.Resync, apply: (*Router).applyGameStart},
	protocol.TypeMatchCancelled: {kind: game.Merge, apply: (*Router).applyMatchCancelled},
	protocol.TypeError:          {kind: game.Merge, apply: (*Router).applyError},
	protocol.TypeDuelData:       {kind: game.Resync, apply: (*Router).applyDuelData},
}

// KindOf reports how frames of type typ are applied, and whether typ is
// known at all.
func KindOf(typ string) (game.Kind, bool) {
	ev, ok := events[typ]
	return ev.kind, ok
}

// MatchCancelledMessage is shown when the server cancels matchmaking.
const MatchCancelledMessage = "Matchmaking was cancelled"

// Router classifies frames and applies them to a Store in arrival order.
type Router struct {
	store    *game.Store
	selfID   func() string
	catalog  *catalog.Catalog
	recorder Recorder
	logger   *logrus.Logger
}

type Option func(*Router)

// WithCatalog fills in card fields the server omits from catalog data.
func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Router) { r.catalog = c }
}

// WithRecorder journals every decoded frame.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) { r.recorder = rec }
}

// New builds a router. selfID returns the local user id at dispatch time
// ("" when signed out).
func New(store *game.Store, selfID func() string, logger *logrus.Logger, opts ...Option) *Router {
	r := &Router{store: store, selfID: selfID, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch decodes and applies one raw frame. Malformed and unknown frames
// are logged and dropped; Dispatch never fails.
func (r *Router) Dispatch(ctx context.Context, raw []byte) {
	f, err := protocol.Decode(raw)
	if err != nil {
		r.logger.Warnf("Dropping malformed frame: %v. Data: %s", err, string(raw))
		return
	}
	r.logger.WithField("type", f.Type).Debug("Received frame")

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, f, raw); err != nil {
			r.logger.Warnf("Failed to journal %s frame: %v", f.Type, err)
		}
	}

	ev, ok := events[f.Type]
	if !ok {
		r.logger.Infof("Unknown message type '%s'. Ignoring.", f.Type)
		return
	}
	if ev.apply == nil {
		r.logInformational(f)
		return
	}
	r.store.Update(ev.kind, func(st *game.Snapshot) { ev.apply(r, f, st) })
}

func (r *Router) logInformational(f protocol.Frame) {
	switch f.Type {
	case protocol.TypeUserConnected:
		who, _ := f.Fields.String(protocol.IdentityKeys...)
		r.logger.Infof("User connected: %s", who)
	case protocol.TypeTestResponse:
		content, _ := f.Fields.String("content")
		r.logger.Infof("Test response: %s", content)
	}
}

func (r *Router) self() string {
	if r.selfID == nil {
		return ""
	}
	return r.selfID()
}

// body returns whichever of the top-level fields or the nested content
// object carries any of keys. Servers use both layouts.
func body(f protocol.Frame, keys ...string) protocol.Object {
	if _, ok := f.Fields.Get(keys...); ok {
		return f.Fields
	}
	if c := f.Content(); c != nil {
		return c
	}
	return f.Fields
}

func (r *Router) decodePlayer(rec protocol.Object) *models.Player {
	p := protocol.DecodePlayer(rec)
	p.Hand = r.enrichCards(p.Hand)
	p.Field = r.enrichCards(p.Field)
	return &p
}

func (r *Router) enrichCards(cards []models.Card) []models.Card {
	if r.catalog == nil {
		return cards
	}
	for i := range cards {
		cards[i] = r.catalog.Enrich(cards[i])
	}
	return cards
}
