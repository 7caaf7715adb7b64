package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/kou050223/duelclient/internal/auth"
	"github.com/kou050223/duelclient/internal/game"
	"github.com/kou050223/duelclient/internal/models"
	"github.com/kou050223/duelclient/internal/protocol"
	"github.com/kou050223/duelclient/internal/router"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func fastConfig(target string) Config {
	return Config{
		URL:                  target,
		MaxReconnectAttempts: 5,
		BaseDelay:            time.Millisecond,
		MaxReconnectDelay:    8 * time.Millisecond,
		HeartbeatInterval:    time.Hour,
		HeartbeatSettle:      time.Millisecond,
	}
}

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

// fakeChannel is an in-memory Channel whose peer side is driven by the test.
type fakeChannel struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	closeErr error
	writes   [][]byte
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{frames: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeChannel) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case b := <-f.frames:
		return websocket.MessageText, b, nil
	case <-f.closed:
		f.mu.Lock()
		defer f.mu.Unlock()
		return 0, nil, f.closeErr
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (f *fakeChannel) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}

func (f *fakeChannel) Close(code websocket.StatusCode, reason string) error {
	f.drop(code)
	return nil
}

// drop ends the channel as if the peer had closed it with code. 1006 models
// a transport loss without a close frame.
func (f *fakeChannel) drop(code websocket.StatusCode) {
	f.once.Do(func() {
		f.mu.Lock()
		f.closeErr = websocket.CloseError{Code: code}
		f.mu.Unlock()
		close(f.closed)
	})
}

// fakeDialer hands out scripted results and records the urls it was asked for.
type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	next  func(n int) (Channel, error)
	block chan struct{}
}

func (d *fakeDialer) dial(ctx context.Context, target string) (Channel, error) {
	d.mu.Lock()
	d.urls = append(d.urls, target)
	n := len(d.urls)
	block, next := d.block, d.next
	d.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return next(n)
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) url(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

type nopHandler struct{}

func (nopHandler) Dispatch(context.Context, []byte) {}

var me = auth.StaticIdentity{ID: "me", BearerToken: "tok"}

func TestReconnectDelayBounds(t *testing.T) {
	for n := 0; n <= 10; n++ {
		floor := time.Second << n
		if floor > 30*time.Second {
			floor = 30 * time.Second
		}
		for _, j := range []time.Duration{0, 500 * time.Millisecond, time.Second - 1} {
			d := ReconnectDelay(n, time.Second, 30*time.Second, j)
			assert.GreaterOrEqual(t, d, floor, "attempt %d", n)
			assert.Less(t, d, floor+time.Second, "attempt %d", n)
		}
	}
	assert.Equal(t, 30*time.Second, ReconnectDelay(62, time.Second, 30*time.Second, 0))
}

func TestBuildURLAndRedact(t *testing.T) {
	got, err := BuildURL("ws://host/ws", "secret", "me", "d1")
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "secret", u.Query().Get("token"))
	assert.Equal(t, "me", u.Query().Get("uid"))
	assert.Equal(t, "d1", u.Query().Get("duelId"))

	assert.NotContains(t, RedactURL(got), "secret")

	got, err = BuildURL("ws://host/ws", "", "me", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://host/ws?uid=me", got)

	_, err = BuildURL("http://host/ws", "", "", "")
	assert.Error(t, err)
}

func TestCloseClassification(t *testing.T) {
	code, clean := closeInfo(errors.New("EOF"))
	assert.Equal(t, websocket.StatusAbnormalClosure, code)
	assert.False(t, clean)
	assert.True(t, shouldReconnect(code, clean))

	code, clean = closeInfo(websocket.CloseError{Code: websocket.StatusNormalClosure})
	assert.True(t, clean)
	assert.False(t, shouldReconnect(code, clean))

	code, clean = closeInfo(websocket.CloseError{Code: websocket.StatusAbnormalClosure})
	assert.False(t, clean)
	assert.True(t, shouldReconnect(code, clean))

	assert.False(t, shouldReconnect(websocket.StatusGoingAway, false))
	assert.Contains(t, describeClose(InvalidAuthTokenError, nil), "auth token")
}

func TestSendWithoutChannelIsReported(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := game.NewStore()
	m := NewManager(fastConfig("ws://host/ws"), nil, nopHandler{}, store, logger)

	err := m.Send(protocol.Ping())
	assert.ErrorIs(t, err, ErrNotConnected)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestConnectWithoutIdentityIsWithheld(t *testing.T) {
	d := &fakeDialer{next: func(int) (Channel, error) { return newFakeChannel(), nil }}
	m := NewManager(fastConfig("ws://host/ws"), d.dial, nopHandler{}, game.NewStore(), quietLogger())

	assert.ErrorIs(t, m.Connect(context.Background()), ErrNoIdentity)
	assert.Equal(t, 0, d.count())
	assert.Equal(t, StateIdle, m.State())
}

func TestLifecycleAbnormalCloseThenExhaustRetries(t *testing.T) {
	first := newFakeChannel()
	d := &fakeDialer{next: func(n int) (Channel, error) {
		if n == 1 {
			return first, nil
		}
		return nil, errors.New("connection refused")
	}}
	store := game.NewStore()
	m := NewManager(fastConfig("ws://host/ws"), d.dial, nopHandler{}, store, quietLogger())
	t.Cleanup(m.Close)

	assert.Equal(t, StateIdle, m.State())
	require.NoError(t, m.Watch(context.Background(), me, "ws://host/ws"))

	assert.Equal(t, StateOpen, m.State())
	assert.True(t, store.Snapshot().IsConnected)
	assert.Equal(t, 0, m.Attempt())

	first.drop(websocket.StatusAbnormalClosure)

	// 1 initial dial plus one per scheduled retry.
	require.Eventually(t, func() bool {
		return d.count() == 6 && m.State() == StateIdle
	}, waitFor, tick)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 6, d.count())
	assert.Equal(t, 5, m.Attempt())
	assert.Contains(t, m.LastError(), "connection refused")

	snap := store.Snapshot()
	assert.False(t, snap.IsConnected)
	assert.Contains(t, snap.ConnectionError, "connection refused")

	// A manual reconnect starts over.
	d.mu.Lock()
	d.next = func(int) (Channel, error) { return newFakeChannel(), nil }
	d.mu.Unlock()
	require.NoError(t, m.Reconnect(context.Background()))
	assert.Equal(t, StateOpen, m.State())
	assert.Equal(t, 0, m.Attempt())
	assert.Empty(t, m.LastError())
}

func TestFirstRetryUsesExponentZero(t *testing.T) {
	first := newFakeChannel()
	d := &fakeDialer{next: func(n int) (Channel, error) {
		if n == 1 {
			return first, nil
		}
		return newFakeChannel(), nil
	}}
	cfg := fastConfig("ws://host/ws")
	cfg.BaseDelay = 40 * time.Millisecond
	cfg.MaxReconnectDelay = time.Second
	m := NewManager(cfg, d.dial, nopHandler{}, game.NewStore(), quietLogger())
	t.Cleanup(m.Close)

	m.SetIdentity(me)
	require.NoError(t, m.Connect(context.Background()))

	start := time.Now()
	first.drop(websocket.StatusAbnormalClosure)
	require.Eventually(t, func() bool { return m.State() == StateBackoff }, waitFor, time.Millisecond)
	assert.Equal(t, 1, m.Attempt())

	require.Eventually(t, func() bool { return d.count() == 2 && m.State() == StateOpen }, waitFor, time.Millisecond)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 40*time.Millisecond+cfg.MaxJitter+500*time.Millisecond)
	assert.Equal(t, 0, m.Attempt())
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	for _, code := range []websocket.StatusCode{websocket.StatusNormalClosure, websocket.StatusGoingAway, InvalidAuthTokenError} {
		ch := newFakeChannel()
		d := &fakeDialer{next: func(int) (Channel, error) { return ch, nil }}
		m := NewManager(fastConfig("ws://host/ws"), d.dial, nopHandler{}, game.NewStore(), quietLogger())
		m.SetIdentity(me)
		require.NoError(t, m.Connect(context.Background()))

		ch.drop(code)
		require.Eventually(t, func() bool { return m.State() == StateIdle }, waitFor, tick)
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, d.count(), "code %d", code)
		m.Close()
	}
}

func TestDisconnectSuppressesPendingReconnect(t *testing.T) {
	first := newFakeChannel()
	d := &fakeDialer{next: func(n int) (Channel, error) {
		if n == 1 {
			return first, nil
		}
		return newFakeChannel(), nil
	}}
	cfg := fastConfig("ws://host/ws")
	cfg.BaseDelay = 50 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	store := game.NewStore()
	m := NewManager(cfg, d.dial, nopHandler{}, store, quietLogger())
	t.Cleanup(m.Close)
	m.SetIdentity(me)
	require.NoError(t, m.Connect(context.Background()))

	first.drop(websocket.StatusAbnormalClosure)
	require.Eventually(t, func() bool { return m.State() == StateBackoff }, waitFor, time.Millisecond)
	m.Disconnect()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, d.count())
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, store.Snapshot().IsConnected)

	require.NoError(t, m.Reconnect(context.Background()))
	assert.Equal(t, 2, d.count())
	assert.Equal(t, StateOpen, m.State())
}

func TestConnectWhileConnectingIsNoop(t *testing.T) {
	d := &fakeDialer{
		next:  func(int) (Channel, error) { return newFakeChannel(), nil },
		block: make(chan struct{}),
	}
	m := NewManager(fastConfig("ws://host/ws"), d.dial, nopHandler{}, game.NewStore(), quietLogger())
	t.Cleanup(m.Close)
	m.SetIdentity(me)

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()
	require.Eventually(t, func() bool { return m.State() == StateConnecting }, waitFor, time.Millisecond)

	assert.NoError(t, m.Connect(context.Background()))
	close(d.block)
	require.NoError(t, <-done)

	assert.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 1, d.count())
	assert.Equal(t, StateOpen, m.State())
}

type gatedIdentity struct {
	gate chan struct{}
}

func (g gatedIdentity) UID() string { return "me" }

func (g gatedIdentity) Token(ctx context.Context) (string, error) {
	<-g.gate
	return "tok", nil
}

func TestDisconnectDuringTokenFetchDiscardsAttempt(t *testing.T) {
	d := &fakeDialer{next: func(int) (Channel, error) { return newFakeChannel(), nil }}
	m := NewManager(fastConfig("ws://host/ws"), d.dial, nopHandler{}, game.NewStore(), quietLogger())
	t.Cleanup(m.Close)
	ident := gatedIdentity{gate: make(chan struct{})}
	m.SetIdentity(ident)

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()
	require.Eventually(t, func() bool { return m.State() == StateConnecting }, waitFor, time.Millisecond)

	m.Disconnect()
	close(ident.gate)
	require.NoError(t, <-done)

	assert.Equal(t, 0, d.count())
	assert.Equal(t, StateIdle, m.State())
}

func TestWatchDedupesByValue(t *testing.T) {
	d := &fakeDialer{next: func(int) (Channel, error) { return newFakeChannel(), nil }}
	store := game.NewStore()
	m := NewManager(fastConfig(""), d.dial, nopHandler{}, store, quietLogger())
	t.Cleanup(m.Close)
	ctx := context.Background()

	require.NoError(t, m.Watch(ctx, nil, "ws://host/ws"))
	assert.Equal(t, 0, d.count())

	require.NoError(t, m.Watch(ctx, me, "ws://host/ws"))
	assert.Equal(t, 1, d.count())

	// Same uid and url through a fresh value, then a late duel id.
	require.NoError(t, m.Watch(ctx, auth.StaticIdentity{ID: "me", BearerToken: "tok2"}, "ws://host/ws"))
	m.SetDuelID("d1")
	require.NoError(t, m.Watch(ctx, me, "ws://host/ws"))
	assert.Equal(t, 1, d.count())
	assert.Equal(t, StateOpen, m.State())

	require.NoError(t, m.Watch(ctx, nil, "ws://host/ws"))
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, store.Snapshot().IsConnected)

	require.NoError(t, m.Watch(ctx, me, "ws://host/ws"))
	assert.Equal(t, 2, d.count())
	assert.Contains(t, d.url(1), "duelId=d1")

	// A different user swaps the channel.
	require.NoError(t, m.Watch(ctx, auth.StaticIdentity{ID: "other"}, "ws://host/ws"))
	assert.Equal(t, 3, d.count())
	assert.Contains(t, d.url(2), "uid=other")
}

func TestHeartbeatPingsOpenChannel(t *testing.T) {
	ch := newFakeChannel()
	d := &fakeDialer{next: func(int) (Channel, error) { return ch, nil }}
	cfg := fastConfig("ws://host/ws")
	cfg.HeartbeatInterval = 10 * time.Millisecond
	m := NewManager(cfg, d.dial, nopHandler{}, game.NewStore(), quietLogger())
	t.Cleanup(m.Close)
	m.SetIdentity(me)
	require.NoError(t, m.Connect(context.Background()))

	require.Eventually(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.writes) >= 2
	}, waitFor, tick)
	ch.mu.Lock()
	assert.JSONEq(t, `{"type":"ping"}`, string(ch.writes[0]))
	ch.mu.Unlock()
}

// duelServer is a websocket endpoint that records handshakes and answers pings.
type duelServer struct {
	*httptest.Server
	mu      sync.Mutex
	queries []url.Values
	conns   []*websocket.Conn
	pings   atomic.Int32
}

func newDuelServer(t *testing.T) *duelServer {
	s := &duelServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.conns = append(s.conns, c)
		s.mu.Unlock()

		ctx := context.Background()
		for {
			_, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			var msg map[string]interface{}
			if json.Unmarshal(data, &msg) == nil && msg["type"] == protocol.TypePing {
				s.pings.Add(1)
				_ = c.Write(ctx, websocket.MessageText, []byte(`{"type":"pong"}`))
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *duelServer) wsURL() string { return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws" }

func (s *duelServer) conn(i int) *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[i]
}

func (s *duelServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func TestWebsocketEndToEnd(t *testing.T) {
	srv := newDuelServer(t)
	store := game.NewStore()
	rt := router.New(store, func() string { return "me" }, quietLogger())

	cfg := fastConfig(srv.wsURL())
	cfg.HeartbeatInterval = 20 * time.Millisecond
	m := NewManager(cfg, nil, rt, store, quietLogger())
	t.Cleanup(m.Close)
	m.SetDuelID("d1")

	require.NoError(t, m.Watch(context.Background(), me, srv.wsURL()))
	require.NoError(t, m.Connect(context.Background()))
	require.Eventually(t, func() bool { return srv.count() == 1 }, waitFor, tick)

	srv.mu.Lock()
	q := srv.queries[0]
	srv.mu.Unlock()
	assert.Equal(t, "tok", q.Get("token"))
	assert.Equal(t, "me", q.Get("uid"))
	assert.Equal(t, "d1", q.Get("duelId"))

	require.Eventually(t, func() bool { return srv.pings.Load() >= 1 }, waitFor, tick)

	frame := `{"type":"duelData","content":{"id":"g1","activeIdx":0,"status":"active","players":[
		{"userId":"me","hp":25,"maxHp":30,"mana":3,"maxMana":10},
		{"userId":"them","hp":30,"maxHp":30}]}}`
	require.NoError(t, srv.conn(0).Write(context.Background(), websocket.MessageText, []byte(frame)))
	require.Eventually(t, func() bool {
		s := store.Snapshot()
		return s.Player != nil && s.Player.Health == 25
	}, waitFor, tick)
	snap := store.Snapshot()
	assert.Equal(t, game.SidePlayer, snap.CurrentTurn)
	assert.Equal(t, game.PhaseBattle, snap.Phase)
	assert.True(t, snap.IsConnected)

	// Transport loss without a close frame.
	require.NoError(t, srv.conn(0).CloseNow())
	require.Eventually(t, func() bool {
		return srv.count() == 2 && m.State() == StateOpen
	}, waitFor, tick)
	assert.Equal(t, 0, m.Attempt())

	// Server-initiated normal closure ends the session for good.
	require.NoError(t, srv.conn(1).Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool { return m.State() == StateIdle }, waitFor, tick)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, srv.count())
	assert.False(t, store.Snapshot().IsConnected)
}

func TestOutboundIntents(t *testing.T) {
	ch := newFakeChannel()
	d := &fakeDialer{next: func(int) (Channel, error) { return ch, nil }}
	m := NewManager(fastConfig("ws://host/ws"), d.dial, nopHandler{}, game.NewStore(), quietLogger())
	t.Cleanup(m.Close)
	m.SetIdentity(me)
	require.NoError(t, m.Connect(context.Background()))

	require.NoError(t, m.Attack(models.Card{ID: "fireball-1", Attack: 4}))
	require.NoError(t, m.FindMatch())
	require.NoError(t, m.Echo("hello"))

	ch.mu.Lock()
	defer ch.mu.Unlock()
	require.Len(t, ch.writes, 3)
	assert.JSONEq(t, `{"type":"attack","cardId":"fireball-1","attackPower":4}`, string(ch.writes[0]))
	assert.JSONEq(t, `{"type":"findMatch","playerId":"me"}`, string(ch.writes[1]))
	assert.JSONEq(t, `{"type":"test","content":"hello","userId":"me"}`, string(ch.writes[2]))
}
