package room

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/koopa0/classic-pong/internal/bot"
	"github.com/koopa0/classic-pong/internal/events"
	"github.com/koopa0/classic-pong/internal/game"
	"github.com/koopa0/classic-pong/internal/protocol"
	apperrors "github.com/koopa0/classic-pong/pkg/errors"
)

// Conn 房間看到的連線
//
// Send 必須是非阻塞的入列：佇列滿時回傳錯誤而不是等待。
type Conn interface {
	ID() string
	Send(msg protocol.Message) error
	Close() error
}

// Phase 房間階段
//
// 有限狀態機：
//
//	waiting → active → finished → active（重賽）
//	   ↑_________|_________|  （任一玩家離開）
type Phase string

const (
	PhaseWaiting  Phase = "waiting"  // 等待玩家到齊並確認
	PhaseActive   Phase = "active"   // 比賽進行中
	PhaseFinished Phase = "finished" // 分出勝負，等待重賽
)

// Room 對戰房間
//
// 並發控制：
//   - mu 保護房間內所有欄位，包含模擬引擎與電腦對手
//   - 讀取器（輸入）、編排迴圈（tick）與管理器（離線）都經過 mu
//   - 需要同時持有管理器鎖時，順序固定為 管理器 → 房間
type Room struct {
	ID int

	mu         sync.Mutex
	slots      [2]Conn // index = slot-1；電腦房間的 slot 2 為 nil
	bot        *bot.Bot
	engine     *game.Engine
	phase      Phase
	ready      [2]bool
	rematch    [2]bool
	createdAt  time.Time
	lastActive time.Time

	gameCfg game.Config
	rng     *rand.Rand
	publish func(events.Event)
}

// TickResult 一個 tick 後需要廣播的內容
type TickResult struct {
	State      game.State
	Recipients []Conn
	Finished   bool // 本 tick 剛分出勝負
}

func newRoom(id int, gameCfg game.Config, rng *rand.Rand, publish func(events.Event), now time.Time) *Room {
	return &Room{
		ID:         id,
		phase:      PhaseWaiting,
		createdAt:  now,
		lastActive: now,
		gameCfg:    gameCfg,
		rng:        rng,
		publish:    publish,
	}
}

func validSlot(slot int) error {
	if slot != 1 && slot != 2 {
		return apperrors.ErrInvalidSlot
	}
	return nil
}

// Phase 返回目前階段
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// IsBot 是否為電腦對戰房間
func (r *Room) IsBot() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bot != nil
}

// Humans 返回目前在房間內的真人連線
func (r *Room) Humans() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.humansLocked()
}

func (r *Room) humansLocked() []Conn {
	conns := make([]Conn, 0, 2)
	for _, c := range r.slots {
		if c != nil {
			conns = append(conns, c)
		}
	}
	return conns
}

// State 返回模擬狀態；尚未開賽時 ok 為 false
func (r *Room) State() (game.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine == nil {
		return game.State{}, false
	}
	return r.engine.State(), true
}

// MarkReady 記錄一個 slot 的準備確認
//
// 每個 slot 每局只計一次。所有位置都有人且確認數達到需求
// （電腦房間 1、真人房間 2）時進入 active。
func (r *Room) MarkReady(slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseWaiting {
		return apperrors.ErrInvalidPhase.WithDetails("ready in " + string(r.phase))
	}
	if r.slots[slot-1] == nil {
		return apperrors.ErrInvalidSlot.WithDetails("slot is empty")
	}

	r.ready[slot-1] = true
	r.lastActive = time.Now()

	if r.fullLocked() && r.countLocked(r.ready) >= r.requiredLocked() {
		r.startLocked()
		r.emitLocked(events.MatchStarted)
	}
	return nil
}

// RequestRematch 記錄一個 slot 的重賽請求
//
// 只在 finished 階段有效；全部真人都請求後以新的引擎重新開始，
// 並在持有房間鎖時通知每位真人 RESTART。
func (r *Room) RequestRematch(slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseFinished {
		return apperrors.ErrInvalidPhase.WithDetails("rematch in " + string(r.phase))
	}
	if r.slots[slot-1] == nil {
		return apperrors.ErrInvalidSlot.WithDetails("slot is empty")
	}

	r.rematch[slot-1] = true
	r.lastActive = time.Now()

	if r.countLocked(r.rematch) < r.requiredLocked() {
		return nil
	}

	r.startLocked()
	r.emitLocked(events.MatchRestarted)

	// 持鎖送出：新一局的第一個 GAME_STATE 必定排在 RESTART 之後
	for _, c := range r.humansLocked() {
		_ = c.Send(protocol.Restart{})
	}
	return nil
}

// SetInput 轉交按鍵狀態給模擬引擎；非 active 階段忽略
func (r *Room) SetInput(slot int, up, down bool) error {
	if err := validSlot(slot); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseActive || r.engine == nil {
		return nil
	}
	r.lastActive = time.Now()
	return r.engine.SetInput(slot, up, down)
}

// Advance 推進一個 tick；非 active 階段時 ok 為 false
//
// 電腦房間先讓電腦決策並寫入其輸入。剛分出勝負時轉為 finished。
func (r *Room) Advance(now time.Time) (res TickResult, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseActive || r.engine == nil {
		return TickResult{}, false
	}

	if r.bot != nil {
		up, down := r.bot.Decide(now, r.engine.State())
		_ = r.engine.SetInput(r.bot.Slot(), up, down)
	}
	r.engine.Tick()

	res.State = r.engine.State()
	res.Recipients = r.humansLocked()
	if res.State.GameOver {
		res.Finished = true
		r.phase = PhaseFinished
		r.lastActive = now
		r.rematch = [2]bool{}
		r.emitLocked(events.MatchFinished)
	}
	return res, true
}

// startLocked 以新的引擎開始一局
func (r *Room) startLocked() {
	r.engine = game.NewEngine(r.gameCfg, r.rng)
	if r.bot != nil {
		r.bot.Reset()
	}
	r.phase = PhaseActive
	r.rematch = [2]bool{}
}

// removeLocked 清空 slot 並回到 waiting，返回仍在房間的真人
func (r *Room) removeLocked(slot int) []Conn {
	r.slots[slot-1] = nil
	r.phase = PhaseWaiting
	r.ready = [2]bool{}
	r.rematch = [2]bool{}
	r.engine = nil
	r.lastActive = time.Now()
	return r.humansLocked()
}

func (r *Room) fullLocked() bool {
	if r.bot != nil {
		return r.slots[0] != nil
	}
	return r.slots[0] != nil && r.slots[1] != nil
}

// requiredLocked 需要的真人確認數
func (r *Room) requiredLocked() int {
	if r.bot != nil {
		return 1
	}
	return 2
}

func (r *Room) countLocked(flags [2]bool) int {
	n := 0
	for i, f := range flags {
		if f && r.slots[i] != nil {
			n++
		}
	}
	return n
}

func (r *Room) emitLocked(t events.Type) {
	if r.publish == nil {
		return
	}
	ev := events.Event{Type: t, RoomID: r.ID, Bot: r.bot != nil, Time: time.Now()}
	if r.bot != nil {
		ev.Difficulty = r.bot.Difficulty()
	}
	if r.engine != nil {
		s := r.engine.State()
		ev.Score1, ev.Score2, ev.Winner = s.Score1, s.Score2, s.Winner
	}
	r.publish(ev)
}

// summary 統計用的快照
type summary struct {
	phase Phase
	bot   bool
	conns int
	idle  time.Duration
}

func (r *Room) summary(now time.Time) summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return summary{
		phase: r.phase,
		bot:   r.bot != nil,
		conns: len(r.humansLocked()),
		idle:  now.Sub(r.lastActive),
	}
}
