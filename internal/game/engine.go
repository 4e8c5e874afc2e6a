// Package game 實作權威端的 Pong 物理模擬
//
// 系統設計問題：
//
//	兩個客戶端看到的畫面必須一致，誰說了算？
//
// 方案：伺服器持有唯一的模擬狀態，固定頻率推進（預設 60 Hz），
// 客戶端只送按鍵意圖，並接收完整快照。
//
// 每個 tick 的順序：
//  1. 依鎖存的按鍵意圖移動球拍並夾限於畫面
//  2. 球依速度位移
//  3. 上下牆反彈（先於球拍判定）
//  4. 球拍碰撞：強制反向、貼齊拍面、依擊球位置改變 vy、加速
//  5. 出界得分並重新發球
//  6. 勝負判定；結束後狀態凍結直到建立新的 Engine
//
// Engine 不是並行安全的，由所屬房間的鎖保護。
package game

import (
	"math"
	"math/rand/v2"

	"github.com/koopa0/classic-pong/internal/protocol"
	apperrors "github.com/koopa0/classic-pong/pkg/errors"
)

// Ball 球（X, Y 為左上角）
type Ball struct {
	X, Y   float64
	VX, VY float64
	Size   float64
}

// Paddle 球拍與其鎖存的按鍵意圖
type Paddle struct {
	X, Y          float64
	Width, Height float64
	Speed         float64
	MoveUp        bool
	MoveDown      bool
}

// State 模擬狀態
//
// Winner 為 0 表示尚未分出勝負。
type State struct {
	Ball     Ball
	Paddle1  Paddle
	Paddle2  Paddle
	Score1   int
	Score2   int
	GameOver bool
	Winner   int
	Tick     int
}

// Paddle 依 slot 取得球拍
func (s State) Paddle(slot int) Paddle {
	if slot == 2 {
		return s.Paddle2
	}
	return s.Paddle1
}

// Snapshot 轉換為線路上的 GAME_STATE
func (s State) Snapshot() protocol.GameState {
	return protocol.GameState{
		Ball: protocol.BallSnapshot{
			X: s.Ball.X, Y: s.Ball.Y, VX: s.Ball.VX, VY: s.Ball.VY,
		},
		Paddle1:  paddleSnapshot(s.Paddle1),
		Paddle2:  paddleSnapshot(s.Paddle2),
		Score1:   s.Score1,
		Score2:   s.Score2,
		GameOver: s.GameOver,
		Winner:   s.Winner,
		Tick:     s.Tick,
	}
}

func paddleSnapshot(p Paddle) protocol.PaddleSnapshot {
	return protocol.PaddleSnapshot{X: p.X, Y: p.Y, Width: p.Width, Height: p.Height}
}

// Engine 單一房間的模擬引擎
type Engine struct {
	cfg   Config
	rng   *rand.Rand
	state State
}

// NewEngine 建立新的一局
//
// rng 為 nil 時使用不固定種子的亂數源。
func NewEngine(cfg Config, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	e := &Engine{cfg: cfg, rng: rng}
	paddleY := cfg.ScreenHeight/2 - cfg.PaddleHeight/2
	e.state = State{
		Ball: Ball{Size: cfg.BallSize},
		Paddle1: Paddle{
			X: cfg.Paddle1X(), Y: paddleY,
			Width: cfg.PaddleWidth, Height: cfg.PaddleHeight,
			Speed: cfg.PaddleSpeed,
		},
		Paddle2: Paddle{
			X: cfg.Paddle2X(), Y: paddleY,
			Width: cfg.PaddleWidth, Height: cfg.PaddleHeight,
			Speed: cfg.PaddleSpeed,
		},
	}

	dir := 1.0
	if e.rng.IntN(2) == 0 {
		dir = -1
	}
	e.serve(dir)
	return e
}

// State 返回目前狀態的副本
func (e *Engine) State() State { return e.state }

// SetState 直接覆寫狀態（測試與回放使用）
func (e *Engine) SetState(s State) { e.state = s }

// SetInput 鎖存某一側的按鍵意圖
//
// 同時按上下時淨位移為 0，由 Tick 處理。比賽結束後為 no-op。
func (e *Engine) SetInput(slot int, up, down bool) error {
	var p *Paddle
	switch slot {
	case 1:
		p = &e.state.Paddle1
	case 2:
		p = &e.state.Paddle2
	default:
		return apperrors.ErrInvalidSlot
	}
	if e.state.GameOver {
		return nil
	}
	p.MoveUp, p.MoveDown = up, down
	return nil
}

// Tick 推進一個固定時間步
func (e *Engine) Tick() {
	s := &e.state
	if s.GameOver {
		return
	}
	s.Tick++

	e.movePaddle(&s.Paddle1)
	e.movePaddle(&s.Paddle2)

	b := &s.Ball
	b.X += b.VX
	b.Y += b.VY

	// 牆面反彈強制方向
	maxY := e.cfg.ScreenHeight - b.Size
	if b.Y < 0 {
		b.Y = 0
		b.VY = math.Abs(b.VY)
	} else if b.Y > maxY {
		b.Y = maxY
		b.VY = -math.Abs(b.VY)
	}

	// 只判定球正在接近的那支球拍
	switch {
	case b.VX < 0 && overlaps(*b, s.Paddle1):
		b.VX = math.Abs(b.VX)
		b.X = s.Paddle1.X + s.Paddle1.Width
		e.deflect(b, s.Paddle1)
	case b.VX > 0 && overlaps(*b, s.Paddle2):
		b.VX = -math.Abs(b.VX)
		b.X = s.Paddle2.X - b.Size
		e.deflect(b, s.Paddle2)
	}

	switch {
	case b.X < 0:
		s.Score2++
		e.serve(-1) // 朝失分的左側發球
	case b.X > e.cfg.ScreenWidth:
		s.Score1++
		e.serve(1)
	default:
		return
	}

	switch {
	case s.Score1 >= e.cfg.WinningScore:
		s.GameOver, s.Winner = true, 1
	case s.Score2 >= e.cfg.WinningScore:
		s.GameOver, s.Winner = true, 2
	}
	if s.GameOver {
		s.Paddle1.MoveUp, s.Paddle1.MoveDown = false, false
		s.Paddle2.MoveUp, s.Paddle2.MoveDown = false, false
	}
}

func (e *Engine) movePaddle(p *Paddle) {
	switch {
	case p.MoveUp && !p.MoveDown:
		p.Y -= p.Speed
	case p.MoveDown && !p.MoveUp:
		p.Y += p.Speed
	}
	p.Y = clamp(p.Y, 0, e.cfg.ScreenHeight-p.Height)
}

// deflect 依擊中球拍的相對位置決定 vy，並提升水平速度
func (e *Engine) deflect(b *Ball, p Paddle) {
	rel := clamp((b.Y+b.Size/2-p.Y)/p.Height, 0, 1)
	b.VY = (rel - 0.5) * 2 * e.cfg.BallSpeedY

	speed := math.Min(math.Abs(b.VX)*e.cfg.SpeedUp, e.cfg.MaxBallSpeed)
	b.VX = math.Copysign(speed, b.VX)
}

// serve 球回到中央，dir 為水平方向（-1 往左、1 往右）
func (e *Engine) serve(dir float64) {
	b := &e.state.Ball
	b.X = e.cfg.ScreenWidth / 2
	b.Y = e.cfg.ScreenHeight / 2
	b.VX = math.Copysign(e.cfg.BallSpeedX, dir)
	b.VY = (e.rng.Float64()*2 - 1) * e.cfg.BallSpeedY
}

func overlaps(b Ball, p Paddle) bool {
	return b.X < p.X+p.Width && b.X+b.Size > p.X &&
		b.Y < p.Y+p.Height && b.Y+b.Size > p.Y
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
