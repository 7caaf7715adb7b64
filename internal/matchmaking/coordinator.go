// internal/matchmaking/coordinator.go
package matchmaking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kou050223/duelclient/internal/game"
	"github.com/kou050223/duelclient/internal/protocol"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often a pending join is checked over HTTP.
const DefaultPollInterval = 1500 * time.Millisecond

const notConnectedMessage = "Not connected to server. Please try again."

// Sender transmits an outbound frame over the duel channel.
type Sender interface {
	Send(msg protocol.Message) error
}

// Coordinator finds a match through the HTTP API and the duel channel.
// Whichever path reports the match first wins; the store ignores the other.
type Coordinator struct {
	api      API
	store    *game.Store
	sender   Sender
	selfID   func() string
	interval time.Duration
	logger   *logrus.Logger

	mu         sync.Mutex
	pollCancel context.CancelFunc
	pollDone   chan struct{}
	// gen changes on every Join and Cancel; a join reply from an older
	// generation is stale.
	gen uint64
}

// NewCoordinator wires a coordinator. interval <= 0 uses DefaultPollInterval.
func NewCoordinator(api API, store *game.Store, sender Sender, selfID func() string, interval time.Duration, logger *logrus.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Coordinator{
		api:      api,
		store:    store,
		sender:   sender,
		selfID:   selfID,
		interval: interval,
		logger:   logger,
	}
}

// Join submits a matchmaking request. An immediate match is adopted without
// polling; otherwise the status endpoint is polled until a terminal status.
func (c *Coordinator) Join(ctx context.Context) error {
	c.stopPolling()
	gen := c.nextGen()
	c.store.SetMatchmakingError("")
	c.store.SetSearchingMatch(true)

	res, err := c.api.Join(ctx)
	if !c.current(gen) {
		c.logger.Infof("Discarding matchmaking join reply (%s): search was cancelled", res.Status)
		return nil
	}
	if err != nil {
		c.store.SetSearchingMatch(false)
		c.store.SetMatchmakingError("Failed to start matchmaking. Please try again.")
		c.logger.Warnf("Matchmaking join failed: %v", err)
		return fmt.Errorf("join matchmaking: %w", err)
	}

	if res.Status == StatusMatched {
		c.adopt(res.DuelID)
		return nil
	}
	if res.Status.Terminal() {
		c.store.SetSearchingMatch(false)
		return nil
	}

	c.logger.Infof("Waiting for an opponent (%s)", res.Status)
	c.startPolling()
	return nil
}

// FindMatch asks for a match over the duel channel. The outcome arrives as
// roomJoined/gameStart frames.
func (c *Coordinator) FindMatch() error {
	c.store.SetMatchmakingError("")
	c.store.SetSearchingMatch(true)
	if err := c.sender.Send(protocol.FindMatch(c.selfID())); err != nil {
		c.store.SetSearchingMatch(false)
		c.store.SetMatchmakingError(notConnectedMessage)
		return err
	}
	return nil
}

// Cancel stops searching locally right away, then tells the server.
// The server call is best effort.
func (c *Coordinator) Cancel(ctx context.Context) error {
	c.nextGen()
	c.stopPolling()
	c.store.SetSearchingMatch(false)
	if err := c.api.Cancel(ctx); err != nil {
		c.logger.Warnf("Matchmaking cancel failed: %v", err)
		return fmt.Errorf("cancel matchmaking: %w", err)
	}
	return nil
}

// Polling reports whether a status poll is running.
func (c *Coordinator) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollDone != nil
}

// Close stops polling and waits for the poller to exit.
func (c *Coordinator) Close() {
	c.stopPolling()
}

func (c *Coordinator) nextGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

func (c *Coordinator) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Coordinator) adopt(duelID string) {
	if !c.store.AdoptMatch(duelID) {
		c.logger.Warnf("Ignoring match %q: already in duel %q", duelID, c.store.Snapshot().DuelID)
		return
	}
	c.logger.WithField("duel", duelID).Info("Match found")
}

func (c *Coordinator) startPolling() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.pollCancel = cancel
	c.pollDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer c.clearPoller(done)
		c.poll(ctx)
	}()
}

func (c *Coordinator) stopPolling() {
	c.mu.Lock()
	cancel, done := c.pollCancel, c.pollDone
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Coordinator) clearPoller(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollDone == done {
		c.pollCancel = nil
		c.pollDone = nil
	}
}

func (c *Coordinator) poll(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// The channel may have delivered the match, or the user cancelled.
		if !c.store.Snapshot().IsSearchingMatch {
			return
		}

		res, err := c.api.Status(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warnf("Matchmaking status failed: %v", err)
			c.store.SetSearchingMatch(false)
			c.store.SetMatchmakingError("Matchmaking failed. Please try again.")
			return
		}

		switch res.Status {
		case StatusMatched:
			c.adopt(res.DuelID)
			return
		case StatusCancelled, StatusNone:
			c.store.SetSearchingMatch(false)
			return
		}
	}
}
