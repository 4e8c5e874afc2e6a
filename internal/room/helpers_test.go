package room_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koopa0/classic-pong/internal/events"
	"github.com/koopa0/classic-pong/internal/game"
	"github.com/koopa0/classic-pong/internal/protocol"
	"github.com/koopa0/classic-pong/internal/room"
	apperrors "github.com/koopa0/classic-pong/pkg/errors"
	"github.com/koopa0/classic-pong/pkg/logger"
)

var connSeq atomic.Int64

// fakeConn 記錄收到的訊息
type fakeConn struct {
	id string

	mu     sync.Mutex
	msgs   []protocol.Message
	closed bool

	// onSend 在訊息入列後呼叫（不持有 mu）
	onSend func(protocol.Message)
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("conn-%d", connSeq.Add(1))}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg protocol.Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrConnectionClosed
	}
	c.msgs = append(c.msgs, msg)
	hook := c.onSend
	c.mu.Unlock()

	if hook != nil {
		hook(msg)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Types() []protocol.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]protocol.Type, len(c.msgs))
	for i, m := range c.msgs {
		types[i] = m.Type()
	}
	return types
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// recorder 記錄發布的事件
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]events.Type, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}

func testConfig() room.Config {
	cfg := room.DefaultConfig()
	cfg.IdleTimeout = 0
	cfg.Seed = 42
	return cfg
}

func newTestManager(t *testing.T, cfg room.Config) (*room.Manager, *recorder) {
	t.Helper()
	rec := &recorder{}
	m := room.NewManager(cfg, logger.Discard(), rec)
	t.Cleanup(m.Stop)
	return m, rec
}

// activePair 建立兩位真人並開賽
func activePair(t *testing.T, m *room.Manager) (*fakeConn, *fakeConn, *room.Room) {
	t.Helper()
	c1, c2 := newFakeConn(), newFakeConn()
	if _, _, _, err := m.Register(c1, false, ""); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := m.Register(c2, false, ""); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkReady(c1); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkReady(c2); err != nil {
		t.Fatal(err)
	}
	return c1, c2, m.Lookup(c1)
}

// finish 讓 slot 1 在下一個 tick 拿下比賽
func finish(r *room.Room, cfg room.Config) {
	r.MutateState(func(s *game.State) {
		s.Score1 = cfg.Game.WinningScore - 1
		s.Ball.X, s.Ball.Y = cfg.Game.ScreenWidth-2, 10
		s.Ball.VX, s.Ball.VY = 5, 0
	})
	r.Advance(time.Now())
}
