// cmd/duelclient/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kou050223/duelclient/internal/auth"
	"github.com/kou050223/duelclient/internal/catalog"
	"github.com/kou050223/duelclient/internal/config"
	"github.com/kou050223/duelclient/internal/connection"
	"github.com/kou050223/duelclient/internal/game"
	"github.com/kou050223/duelclient/internal/journal"
	"github.com/kou050223/duelclient/internal/matchmaking"
	"github.com/kou050223/duelclient/internal/middleware"
	"github.com/kou050223/duelclient/internal/router"
	"github.com/sirupsen/logrus"
)

type options struct {
	match    bool
	socket   bool
	guest    bool
	autoplay bool
	echo     string
}

func main() {
	var opts options
	flag.BoolVar(&opts.match, "match", false, "join matchmaking after connecting")
	flag.BoolVar(&opts.socket, "socket-match", false, "request the match over the duel channel instead of the HTTP API")
	flag.BoolVar(&opts.guest, "guest", false, "play as a generated guest when DUEL_USER_ID is empty")
	flag.BoolVar(&opts.autoplay, "autoplay", false, "attack with the strongest card in hand on each of our battle turns")
	flag.StringVar(&opts.echo, "echo", "", "send a test frame with this content once connected")
	flag.Parse()

	cfg := config.Load()

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Fatalf("duelclient exited: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *logrus.Logger) error {
	cards := loadCatalog(ctx, cfg, logger)

	tokens, err := tokenSource(cfg, opts, logger)
	if err != nil {
		return err
	}
	selfID := func() string {
		if ident := tokens.Identity(); ident != nil {
			return ident.UID()
		}
		return ""
	}

	store := game.NewStore()
	if cfg.DuelID != "" {
		store.SetDuelID(cfg.DuelID)
	}

	routerOpts := []router.Option{router.WithCatalog(cards)}
	if cfg.RedisAddr != "" {
		rdb, err := journal.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("Frame journal disabled: %v", err)
		} else {
			defer rdb.Close()
			j := journal.New(rdb, cfg.JournalKey, selfID, func() string { return store.Snapshot().DuelID })
			routerOpts = append(routerOpts, router.WithRecorder(j))
			logger.Infof("Journaling frames to Redis at %s", cfg.RedisAddr)
		}
	}
	rt := router.New(store, selfID, logger, routerOpts...)

	connCfg := connection.DefaultConfig(cfg.WSURL)
	connCfg.MaxReconnectAttempts = cfg.MaxReconnectAttempts
	connCfg.MaxReconnectDelay = cfg.MaxReconnectDelay
	connCfg.HeartbeatInterval = cfg.HeartbeatInterval
	dialer := connection.WebsocketDialer(&http.Client{Transport: middleware.LogTransport(logger, nil)})
	mgr := connection.NewManager(connCfg, dialer, rt, store, logger)
	mgr.SetDuelID(cfg.DuelID)
	defer mgr.Close()

	api, err := matchmaking.NewClient(cfg.APIURL, tokens, logger)
	if err != nil {
		return err
	}
	coord := matchmaking.NewCoordinator(api, store, mgr, selfID, cfg.PollInterval, logger)
	defer coord.Close()

	w := newWatcher(store, mgr, logger, opts.autoplay)
	updates := make(chan game.Snapshot, 1)
	unsubscribe := store.Subscribe(func(s game.Snapshot) {
		mgr.SetDuelID(s.DuelID)
		offerLatest(updates, s)
	})
	defer unsubscribe()

	if err := mgr.Watch(ctx, tokens.Identity(), cfg.WSURL); err != nil {
		logger.Warnf("Initial connect failed: %v", err)
	}

	pendingMatch, pendingEcho := opts.match, opts.echo
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			if store.Snapshot().IsSearchingMatch {
				cancelCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				_ = coord.Cancel(cancelCtx)
				cancel()
			}
			return nil
		case s := <-updates:
			w.observe(s)
			if !s.IsConnected {
				continue
			}
			if pendingEcho != "" {
				if err := mgr.Echo(pendingEcho); err == nil {
					pendingEcho = ""
				}
			}
			if pendingMatch && s.DuelID == "" {
				pendingMatch = false
				startMatchmaking(ctx, coord, opts.socket, logger)
			}
		}
	}
}

func startMatchmaking(ctx context.Context, coord *matchmaking.Coordinator, socket bool, logger *logrus.Logger) {
	var err error
	if socket {
		err = coord.FindMatch()
	} else {
		err = coord.Join(ctx)
	}
	if err != nil {
		logger.Errorf("Matchmaking failed: %v", err)
	}
}

// offerLatest replaces any unread snapshot so the consumer only sees the newest.
func offerLatest(ch chan game.Snapshot, s game.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func loadCatalog(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *catalog.Catalog {
	if cfg.DatabaseURL == "" {
		return catalog.Default()
	}
	pool, err := catalog.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warnf("Using built-in cards: %v", err)
		return catalog.Default()
	}
	defer pool.Close()

	cards, err := catalog.LoadPostgres(ctx, pool)
	if err != nil || cards.Len() == 0 {
		logger.Warnf("Using built-in cards: %v", err)
		return catalog.Default()
	}
	logger.Infof("Loaded %d cards from database", cards.Len())
	return cards
}

func tokenSource(cfg *config.Config, opts options, logger *logrus.Logger) (auth.TokenSource, error) {
	uid := cfg.UserID
	if uid == "" && opts.guest {
		uid = auth.GuestID()
		logger.Infof("Playing as %s", uid)
	}
	if uid == "" {
		logger.Warn("DUEL_USER_ID is empty; staying offline")
	}

	if cfg.SigningSecret == "" {
		if uid == "" {
			return auth.StaticSource{}, nil
		}
		return auth.StaticSource{Ident: auth.StaticIdentity{ID: uid}}, nil
	}

	key, err := auth.DeriveSigningKey(cfg.SigningSecret, "duelclient")
	if err != nil {
		return nil, err
	}
	return auth.NewLocalSource(auth.NewSigner(key, cfg.TokenTTL), uid), nil
}
