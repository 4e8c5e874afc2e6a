package game_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/koopa0/classic-pong/internal/game"
	apperrors "github.com/koopa0/classic-pong/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t testing.TB, cfg game.Config) *game.Engine {
	t.Helper()
	require.NoError(t, cfg.Validate())
	return game.NewEngine(cfg, rand.New(rand.NewPCG(1, 2)))
}

// place 把球放到指定位置與速度，其餘狀態不變
func place(e *game.Engine, x, y, vx, vy float64) {
	s := e.State()
	s.Ball.X, s.Ball.Y, s.Ball.VX, s.Ball.VY = x, y, vx, vy
	e.SetState(s)
}

func TestNewEngine_InitialState(t *testing.T) {
	cfg := game.DefaultConfig()
	e := newEngine(t, cfg)
	s := e.State()

	assert.Equal(t, 400.0, s.Ball.X)
	assert.Equal(t, 300.0, s.Ball.Y)
	assert.Equal(t, cfg.BallSpeedX, math.Abs(s.Ball.VX))
	assert.LessOrEqual(t, math.Abs(s.Ball.VY), cfg.BallSpeedY)

	assert.Equal(t, 20.0, s.Paddle1.X)
	assert.Equal(t, 765.0, s.Paddle2.X)
	assert.Equal(t, 250.0, s.Paddle1.Y)
	assert.Equal(t, 250.0, s.Paddle2.Y)
	assert.Zero(t, s.Score1)
	assert.Zero(t, s.Score2)
	assert.False(t, s.GameOver)
	assert.Zero(t, s.Winner)
}

func TestEngine_PaddleBounceScenario(t *testing.T) {
	t.Run("default config speeds up", func(t *testing.T) {
		e := newEngine(t, game.DefaultConfig())
		place(e, 37, 290, -5, 0)

		e.Tick()
		s := e.State()

		assert.Equal(t, 35.0, s.Ball.X)
		assert.Greater(t, s.Ball.VX, 0.0)
		assert.InDelta(t, 5.25, s.Ball.VX, 1e-9)
	})

	t.Run("speed capped at base speed", func(t *testing.T) {
		cfg := game.DefaultConfig()
		cfg.MaxBallSpeed = cfg.BallSpeedX
		e := newEngine(t, cfg)
		place(e, 37, 290, -5, 2)

		e.Tick()
		s := e.State()

		assert.Equal(t, 35.0, s.Ball.X)
		assert.Equal(t, 5.0, s.Ball.VX)
	})
}

func TestEngine_PaddleCollision(t *testing.T) {
	cfg := game.DefaultConfig()

	tests := []struct {
		name     string
		x, y, vx float64
		validate func(t *testing.T, s game.State)
	}{
		{
			name: "left paddle top edge sends ball up",
			x:    38, y: 245, vx: -5,
			validate: func(t *testing.T, s game.State) {
				assert.Greater(t, s.Ball.VX, 0.0)
				assert.Equal(t, s.Paddle1.X+s.Paddle1.Width, s.Ball.X)
				assert.Less(t, s.Ball.VY, 0.0)
			},
		},
		{
			name: "left paddle bottom edge sends ball down",
			x:    38, y: 340, vx: -5,
			validate: func(t *testing.T, s game.State) {
				assert.Greater(t, s.Ball.VX, 0.0)
				assert.Greater(t, s.Ball.VY, 0.0)
			},
		},
		{
			name: "right paddle center",
			x:    748, y: 292.5, vx: 5,
			validate: func(t *testing.T, s game.State) {
				assert.Less(t, s.Ball.VX, 0.0)
				assert.Equal(t, s.Paddle2.X-s.Ball.Size, s.Ball.X)
				assert.InDelta(t, 0, s.Ball.VY, 1e-9)
			},
		},
		{
			name: "ball moving away from paddle is not deflected",
			x:    30, y: 290, vx: 5,
			validate: func(t *testing.T, s game.State) {
				assert.Equal(t, 35.0, s.Ball.X)
				assert.Equal(t, 5.0, s.Ball.VX)
			},
		},
		{
			name: "max speed is respected",
			x:    38, y: 290, vx: -cfg.MaxBallSpeed,
			validate: func(t *testing.T, s game.State) {
				assert.Equal(t, cfg.MaxBallSpeed, s.Ball.VX)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, cfg)
			place(e, tt.x, tt.y, tt.vx, 0)
			e.Tick()
			tt.validate(t, e.State())
		})
	}
}

func TestEngine_NoDoubleBounce(t *testing.T) {
	e := newEngine(t, game.DefaultConfig())
	place(e, 37, 290, -5, 0)

	e.Tick()
	require.Greater(t, e.State().Ball.VX, 0.0)

	// 球仍與球拍重疊，但已經遠離
	for i := 0; i < 3; i++ {
		e.Tick()
		assert.Greater(t, e.State().Ball.VX, 0.0)
	}
}

func TestEngine_WallBounce(t *testing.T) {
	cfg := game.DefaultConfig()

	t.Run("top", func(t *testing.T) {
		e := newEngine(t, cfg)
		place(e, 400, 2, 5, -4)
		e.Tick()
		s := e.State()
		assert.Equal(t, 0.0, s.Ball.Y)
		assert.Equal(t, 4.0, s.Ball.VY)
	})

	t.Run("bottom", func(t *testing.T) {
		e := newEngine(t, cfg)
		place(e, 400, cfg.ScreenHeight-cfg.BallSize-1, 5, 4)
		e.Tick()
		s := e.State()
		assert.Equal(t, cfg.ScreenHeight-cfg.BallSize, s.Ball.Y)
		assert.Equal(t, -4.0, s.Ball.VY)
	})
}

func TestEngine_Scoring(t *testing.T) {
	cfg := game.DefaultConfig()

	t.Run("ball past left edge scores for slot 2", func(t *testing.T) {
		e := newEngine(t, cfg)
		place(e, 2, 10, -5, 0)
		e.Tick()
		s := e.State()

		assert.Equal(t, 0, s.Score1)
		assert.Equal(t, 1, s.Score2)
		assert.Equal(t, cfg.ScreenWidth/2, s.Ball.X)
		assert.Equal(t, cfg.ScreenHeight/2, s.Ball.Y)
		assert.Less(t, s.Ball.VX, 0.0, "serve goes toward the side scored against")
		assert.LessOrEqual(t, math.Abs(s.Ball.VY), cfg.BallSpeedY)
	})

	t.Run("ball past right edge scores for slot 1", func(t *testing.T) {
		e := newEngine(t, cfg)
		place(e, cfg.ScreenWidth-2, 10, 5, 0)
		e.Tick()
		s := e.State()

		assert.Equal(t, 1, s.Score1)
		assert.Equal(t, 0, s.Score2)
		assert.Greater(t, s.Ball.VX, 0.0)
	})
}

func TestEngine_GameOverFreezesState(t *testing.T) {
	cfg := game.DefaultConfig()
	e := newEngine(t, cfg)

	s := e.State()
	s.Score1, s.Score2 = 4, 0
	e.SetState(s)
	place(e, cfg.ScreenWidth-2, 10, 5, 0)

	e.Tick()
	final := e.State()
	require.True(t, final.GameOver)
	assert.Equal(t, 1, final.Winner)
	assert.Equal(t, 5, final.Score1)

	require.NoError(t, e.SetInput(1, true, false))
	for i := 0; i < 10; i++ {
		e.Tick()
	}
	assert.Equal(t, final, e.State())
}

func TestEngine_SetInput(t *testing.T) {
	cfg := game.DefaultConfig()

	tests := []struct {
		name     string
		slot     int
		up, down bool
		ticks    int
		validate func(t *testing.T, s game.State, err error)
	}{
		{
			name: "up clamps at top", slot: 1, up: true, ticks: 100,
			validate: func(t *testing.T, s game.State, err error) {
				require.NoError(t, err)
				assert.Equal(t, 0.0, s.Paddle1.Y)
			},
		},
		{
			name: "down clamps at bottom", slot: 2, down: true, ticks: 100,
			validate: func(t *testing.T, s game.State, err error) {
				require.NoError(t, err)
				assert.Equal(t, cfg.ScreenHeight-cfg.PaddleHeight, s.Paddle2.Y)
			},
		},
		{
			name: "both keys cancel out", slot: 1, up: true, down: true, ticks: 10,
			validate: func(t *testing.T, s game.State, err error) {
				require.NoError(t, err)
				assert.Equal(t, 250.0, s.Paddle1.Y)
				assert.True(t, s.Paddle1.MoveUp)
				assert.True(t, s.Paddle1.MoveDown)
			},
		},
		{
			name: "slot out of range", slot: 3, up: true, ticks: 1,
			validate: func(t *testing.T, s game.State, err error) {
				assert.True(t, apperrors.IsInvalidSlot(err))
				assert.False(t, s.Paddle1.MoveUp)
				assert.False(t, s.Paddle2.MoveUp)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, cfg)
			// 球固定在中央上下移動，不影響球拍
			place(e, 400, 300, 0, 0)
			err := e.SetInput(tt.slot, tt.up, tt.down)
			for i := 0; i < tt.ticks; i++ {
				e.Tick()
			}
			tt.validate(t, e.State(), err)
		})
	}
}

func TestEngine_SameSeedIsDeterministic(t *testing.T) {
	cfg := game.DefaultConfig()
	a := game.NewEngine(cfg, rand.New(rand.NewPCG(9, 9)))
	b := game.NewEngine(cfg, rand.New(rand.NewPCG(9, 9)))

	for i := 0; i < 2000; i++ {
		a.Tick()
		b.Tick()
	}
	assert.Equal(t, a.State(), b.State())
}

// TestEngine_Invariants 隨機輸入下長時間運行，檢查每個 tick 的不變量
func TestEngine_Invariants(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long simulation in short mode")
	}

	cfg := game.DefaultConfig()
	cfg.WinningScore = 1000
	rng := rand.New(rand.NewPCG(3, 4))
	e := newEngine(t, cfg)

	prev := e.State()
	for i := 0; i < 50000; i++ {
		if i%15 == 0 {
			_ = e.SetInput(1, rng.IntN(2) == 0, rng.IntN(2) == 0)
			_ = e.SetInput(2, rng.IntN(2) == 0, rng.IntN(2) == 0)
		}
		e.Tick()
		s := e.State()

		require.GreaterOrEqual(t, s.Ball.Y, 0.0)
		require.LessOrEqual(t, s.Ball.Y, cfg.ScreenHeight-cfg.BallSize)
		for _, p := range []game.Paddle{s.Paddle1, s.Paddle2} {
			require.GreaterOrEqual(t, p.Y, 0.0)
			require.LessOrEqual(t, p.Y, cfg.ScreenHeight-cfg.PaddleHeight)
		}
		require.LessOrEqual(t, math.Abs(s.Ball.VX), cfg.MaxBallSpeed)

		gained := (s.Score1 - prev.Score1) + (s.Score2 - prev.Score2)
		require.GreaterOrEqual(t, s.Score1, prev.Score1)
		require.GreaterOrEqual(t, s.Score2, prev.Score2)
		require.LessOrEqual(t, gained, 1)

		// 本 tick 撞到左拍時 vx 必須朝右
		if prev.Ball.VX < 0 && s.Ball.VX > 0 {
			require.Equal(t, s.Paddle1.X+s.Paddle1.Width, s.Ball.X)
		}
		if prev.Ball.VX > 0 && s.Ball.VX < 0 && gained == 0 {
			require.Equal(t, s.Paddle2.X-s.Ball.Size, s.Ball.X)
		}
		prev = s
	}
}

func BenchmarkEngine_Tick(b *testing.B) {
	cfg := game.DefaultConfig()
	cfg.WinningScore = math.MaxInt
	e := newEngine(b, cfg)
	_ = e.SetInput(1, true, false)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Tick()
	}
}
