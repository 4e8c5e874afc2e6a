// Package room 管理連線、配對與房間生命週期
//
// 系統設計問題：
//
//	連線隨時可能進出，如何把它們配對到房間，並讓輸入、tick、離線三方安全地共享房間？
//
// 核心挑戰：
//  1. 配對：真人依序填入最小編號且有空位的房間；電腦對戰永遠開新房
//  2. 並發：讀取器、編排迴圈、清理迴圈同時操作同一房間
//  3. 資源回收：離線立即釋放位置，長時間閒置的房間自動關閉
//
// 設計方案：
//   - Manager 是顯式擁有的註冊表（無全域變數），以 RWMutex 保護
//   - 每個 Room 自帶 Mutex，單一寫入者
//   - 鎖順序固定為 Manager → Room
//   - 未知或過期連線的操作一律靜默 no-op
package room

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/koopa0/classic-pong/internal/bot"
	"github.com/koopa0/classic-pong/internal/events"
	"github.com/koopa0/classic-pong/internal/game"
	"github.com/koopa0/classic-pong/internal/protocol"
)

// Config 房間管理配置
type Config struct {
	Game game.Config
	Bot  bot.Config

	// IdleTimeout waiting / finished 的房間閒置多久後關閉；0 表示不清理
	IdleTimeout time.Duration
	// CleanupInterval 清理掃描間隔
	CleanupInterval time.Duration
	// Seed 非 0 時每個房間的亂數源可重現（測試使用）
	Seed uint64
}

// DefaultConfig 返回預設配置
func DefaultConfig() Config {
	return Config{
		Game:            game.DefaultConfig(),
		Bot:             bot.DefaultConfig(),
		IdleTimeout:     5 * time.Minute,
		CleanupInterval: 30 * time.Second,
	}
}

// binding 連線所在的房間與位置
type binding struct {
	room *Room
	slot int
}

// Manager 房間管理器
type Manager struct {
	cfg       Config
	logger    *slog.Logger
	publisher events.Publisher

	mu     sync.RWMutex
	rooms  map[int]*Room
	conns  map[string]binding // connID -> binding
	nextID int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager 創建房間管理器
//
// IdleTimeout > 0 時啟動背景清理 goroutine。
func NewManager(cfg Config, logger *slog.Logger, publisher events.Publisher) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Second
	}

	m := &Manager{
		cfg:       cfg,
		logger:    logger.With("component", "room"),
		publisher: publisher,
		rooms:     make(map[int]*Room),
		conns:     make(map[string]binding),
		stopCh:    make(chan struct{}),
	}

	if cfg.IdleTimeout > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m
}

// Register 把連線放進房間
//
// wantsBot 為 true 時建立專屬房間，電腦佔 slot 2，房間立即滿員。
// 否則加入最小編號、有空位的真人房間，沒有則開新房。
// 已註冊的連線會先離開原房間。
func (m *Manager) Register(conn Conn, wantsBot bool, difficulty string) (roomID, slot int, full bool, err error) {
	m.Unregister(conn)

	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if wantsBot {
		id := m.nextID + 1
		rng := m.newRand(id)
		b, err := bot.New(m.cfg.Bot, m.cfg.Game, difficulty, 2, rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())))
		if err != nil {
			return 0, 0, false, err
		}
		m.nextID = id

		r := newRoom(id, m.cfg.Game, rng, m.publish, now)
		r.bot = b
		r.slots[0] = conn
		m.rooms[id] = r
		m.conns[conn.ID()] = binding{room: r, slot: 1}

		m.publish(events.Event{Type: events.RoomCreated, RoomID: id, Bot: true, Difficulty: difficulty, Time: now})
		m.logger.Info("bot room created", "room_id", id, "conn_id", conn.ID(), "difficulty", difficulty)
		return id, 1, true, nil
	}

	ids := make([]int, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		r := m.rooms[id]
		r.mu.Lock()
		if r.bot != nil || r.phase != PhaseWaiting {
			r.mu.Unlock()
			continue
		}
		free := 0
		for i, c := range r.slots {
			if c == nil {
				free = i + 1
				break
			}
		}
		if free == 0 {
			r.mu.Unlock()
			continue
		}
		r.slots[free-1] = conn
		r.lastActive = now
		full := r.fullLocked()
		r.mu.Unlock()

		m.conns[conn.ID()] = binding{room: r, slot: free}
		m.logger.Info("player joined room", "room_id", id, "conn_id", conn.ID(), "slot", free, "full", full)
		return id, free, full, nil
	}

	m.nextID++
	id := m.nextID
	r := newRoom(id, m.cfg.Game, m.newRand(id), m.publish, now)
	r.slots[0] = conn
	m.rooms[id] = r
	m.conns[conn.ID()] = binding{room: r, slot: 1}

	m.publish(events.Event{Type: events.RoomCreated, RoomID: id, Time: now})
	m.logger.Info("room created", "room_id", id, "conn_id", conn.ID())
	return id, 1, false, nil
}

// Lookup 返回連線所在房間；未註冊時為 nil
func (m *Manager) Lookup(conn Conn) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[conn.ID()].room
}

// Slot 返回連線的位置；未註冊時為 0
func (m *Manager) Slot(conn Conn) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[conn.ID()].slot
}

// Unregister 移除連線
//
// 對手（若有）會收到 DISCONNECT 並回到 waiting；房間沒有真人時立即關閉。
// 未註冊的連線為 no-op。
func (m *Manager) Unregister(conn Conn) {
	m.mu.Lock()
	b, ok := m.conns[conn.ID()]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, conn.ID())

	r := b.room
	r.mu.Lock()
	peers := r.removeLocked(b.slot)
	isBot := r.bot != nil
	r.mu.Unlock()

	closed := len(peers) == 0
	if closed {
		delete(m.rooms, r.ID)
	}
	m.mu.Unlock()

	m.logger.Info("player left room", "room_id", r.ID, "conn_id", conn.ID(), "slot", b.slot)

	for _, p := range peers {
		if err := p.Send(protocol.Disconnect{}); err != nil {
			m.logger.Debug("peer disconnect notice dropped", "room_id", r.ID, "conn_id", p.ID(), "error", err)
		}
	}
	if closed {
		m.publish(events.Event{Type: events.RoomClosed, RoomID: r.ID, Bot: isBot, Reason: "empty", Time: time.Now()})
		m.logger.Info("room closed", "room_id", r.ID, "reason", "empty")
	}
}

// MarkReady 轉交 READY；未註冊的連線為 no-op
func (m *Manager) MarkReady(conn Conn) error {
	r, slot := m.resolve(conn)
	if r == nil {
		return nil
	}
	return r.MarkReady(slot)
}

// RequestRematch 轉交 PLAY_AGAIN；未註冊的連線為 no-op
func (m *Manager) RequestRematch(conn Conn) error {
	r, slot := m.resolve(conn)
	if r == nil {
		return nil
	}
	return r.RequestRematch(slot)
}

// SetInput 轉交 INPUT；未註冊的連線為 no-op
func (m *Manager) SetInput(conn Conn, up, down bool) error {
	r, slot := m.resolve(conn)
	if r == nil {
		return nil
	}
	return r.SetInput(slot, up, down)
}

func (m *Manager) resolve(conn Conn) (*Room, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b := m.conns[conn.ID()]
	return b.room, b.slot
}

// ActiveRooms 返回 active 階段的房間快照（依編號排序）
func (m *Manager) ActiveRooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.Phase() == PhaseActive {
			active = append(active, r)
		}
	}
	slices.SortFunc(active, func(a, b *Room) int { return a.ID - b.ID })
	return active
}

// Stats 獲取統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	byPhase := map[Phase]int{PhaseWaiting: 0, PhaseActive: 0, PhaseFinished: 0}
	botRooms := 0
	for _, r := range m.rooms {
		s := r.summary(now)
		byPhase[s.phase]++
		if s.bot {
			botRooms++
		}
	}

	return map[string]any{
		"total_rooms":       len(m.rooms),
		"total_connections": len(m.conns),
		"bot_rooms":         botRooms,
		"by_phase":          byPhase,
	}
}

// cleanupLoop 定期關閉閒置房間
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := m.ReapIdle(now); n > 0 {
				m.logger.Info("idle rooms reaped", "count", n)
			}
		case <-m.stopCh:
			return
		}
	}
}

// ReapIdle 關閉在 waiting / finished 閒置超過 IdleTimeout 的房間，返回關閉數量
//
// active 的房間不會被清理。IdleTimeout 為 0 時不做事。
func (m *Manager) ReapIdle(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	var reaped []*Room
	var conns []Conn
	for id, r := range m.rooms {
		s := r.summary(now)
		if s.phase == PhaseActive || s.idle < m.cfg.IdleTimeout {
			continue
		}
		humans := r.Humans()
		for _, c := range humans {
			delete(m.conns, c.ID())
		}
		conns = append(conns, humans...)
		reaped = append(reaped, r)
		delete(m.rooms, id)
	}
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.Send(protocol.Disconnect{})
		_ = c.Close()
	}
	for _, r := range reaped {
		m.publish(events.Event{Type: events.RoomClosed, RoomID: r.ID, Bot: r.IsBot(), Reason: "idle", Time: now})
		m.logger.Info("room closed", "room_id", r.ID, "reason", "idle")
	}
	return len(reaped)
}

// Stop 停止清理並關閉所有房間
//
// 每條連線收到 DISCONNECT 後關閉。可重複呼叫。
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()

		m.mu.Lock()
		var conns []Conn
		for id, r := range m.rooms {
			conns = append(conns, r.Humans()...)
			delete(m.rooms, id)
		}
		clear(m.conns)
		m.mu.Unlock()

		for _, c := range conns {
			_ = c.Send(protocol.Disconnect{})
			_ = c.Close()
		}
		m.logger.Info("room manager stopped", "closed_connections", len(conns))
	})
}

func (m *Manager) publish(ev events.Event) {
	if err := m.publisher.Publish(context.Background(), ev); err != nil {
		m.logger.Warn("publish event failed", "event", ev.Type, "room_id", ev.RoomID, "error", err)
	}
}

// newRand 每個房間一個亂數源
func (m *Manager) newRand(roomID int) *rand.Rand {
	if m.cfg.Seed != 0 {
		return rand.New(rand.NewPCG(m.cfg.Seed, uint64(roomID)))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
