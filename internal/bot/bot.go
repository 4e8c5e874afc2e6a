// Package bot 實作電腦對手的決策
//
// 電腦只透過與真人相同的輸入介面（上/下按鍵）控制球拍，
// 由編排迴圈每個 tick 呼叫 Decide，再把結果交給模擬引擎。
//
// 決策流程：
//  1. 反應延遲：距上次決策不足 ReactionDelay 時不動
//  2. 預測落點：直線外推球到達拍面的 y，牆面反彈以折返處理
//  3. 失誤：以 1-Accuracy 的機率加上 ±MaxError 的隨機偏移
//  4. 死區：目標與球拍中心差距在 DeadZone 內時不動
package bot

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/koopa0/classic-pong/internal/game"
	apperrors "github.com/koopa0/classic-pong/pkg/errors"
)

// Preset 難度參數
type Preset struct {
	Accuracy      float64       `yaml:"accuracy"`
	ReactionDelay time.Duration `yaml:"reaction_delay"`
}

// Config 電腦對手參數
type Config struct {
	MaxError float64           `yaml:"max_error"`
	DeadZone float64           `yaml:"dead_zone"`
	Presets  map[string]Preset `yaml:"presets"`
}

// DefaultConfig 返回預設參數
func DefaultConfig() Config {
	return Config{
		MaxError: 50,
		DeadZone: 15,
		Presets: map[string]Preset{
			"easy":   {Accuracy: 0.6, ReactionDelay: 100 * time.Millisecond},
			"medium": {Accuracy: 0.8, ReactionDelay: 50 * time.Millisecond},
			"hard":   {Accuracy: 0.95, ReactionDelay: 20 * time.Millisecond},
		},
	}
}

// Validate 檢查參數
func (c Config) Validate() error {
	if c.MaxError < 0 || c.DeadZone < 0 {
		return fmt.Errorf("bot max_error and dead_zone must be >= 0")
	}
	for name, p := range c.Presets {
		if p.Accuracy < 0 || p.Accuracy > 1 {
			return fmt.Errorf("bot preset %q: accuracy %v out of [0,1]", name, p.Accuracy)
		}
		if p.ReactionDelay < 0 {
			return fmt.Errorf("bot preset %q: negative reaction delay", name)
		}
	}
	return nil
}

// Bot 單一房間的電腦對手
//
// 不是並行安全的，由所屬房間的鎖保護。
type Bot struct {
	cfg        Config
	preset     Preset
	difficulty string
	field      game.Config
	slot       int
	rng        *rand.Rand
	last       time.Time
}

// New 建立控制 slot 的電腦對手
func New(cfg Config, field game.Config, difficulty string, slot int, rng *rand.Rand) (*Bot, error) {
	if slot != 1 && slot != 2 {
		return nil, apperrors.ErrInvalidSlot
	}
	preset, ok := cfg.Presets[difficulty]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "unknown difficulty").WithDetails(difficulty)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Bot{
		cfg:        cfg,
		preset:     preset,
		difficulty: difficulty,
		field:      field,
		slot:       slot,
		rng:        rng,
	}, nil
}

// Difficulty 返回難度名稱
func (b *Bot) Difficulty() string { return b.difficulty }

// Slot 返回控制的位置
func (b *Bot) Slot() int { return b.slot }

// Reset 清除反應計時（新的一局）
func (b *Bot) Reset() { b.last = time.Time{} }

// Decide 依目前狀態決定按鍵
func (b *Bot) Decide(now time.Time, s game.State) (up, down bool) {
	if !b.last.IsZero() && now.Sub(b.last) < b.preset.ReactionDelay {
		return false, false
	}
	b.last = now

	target := b.Target(s)
	if b.rng.Float64() > b.preset.Accuracy {
		target += (b.rng.Float64()*2 - 1) * b.cfg.MaxError
	}

	p := s.Paddle(b.slot)
	center := p.Y + p.Height/2
	switch {
	case target < center-b.cfg.DeadZone:
		return true, false
	case target > center+b.cfg.DeadZone:
		return false, true
	}
	return false, false
}

// Target 預測球心到達拍面時的 y（不含失誤）
//
// 球遠離時回到畫面中央；球沒有水平速度時追球。
func (b *Bot) Target(s game.State) float64 {
	ball := s.Ball
	centerY := ball.Y + ball.Size/2

	approaching := (b.slot == 2 && ball.VX > 0) || (b.slot == 1 && ball.VX < 0)
	switch {
	case ball.VX == 0:
		return centerY
	case !approaching:
		return b.field.ScreenHeight / 2
	}

	p := s.Paddle(b.slot)
	faceX := p.X - ball.Size
	if b.slot == 1 {
		faceX = p.X + p.Width
	}
	t := (faceX - ball.X) / ball.VX
	if t < 0 {
		return centerY
	}
	return fold(centerY+ball.VY*t, b.field.ScreenHeight)
}

// fold 把外推的 y 依牆面反彈折回 [0, h]
func fold(y, h float64) float64 {
	period := 2 * h
	y = math.Mod(y, period)
	if y < 0 {
		y += period
	}
	if y > h {
		y = period - y
	}
	return y
}
