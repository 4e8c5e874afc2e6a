package game

import "fmt"

// Config 模擬參數
//
// 所有長度單位為像素，速度單位為每 tick 像素。
type Config struct {
	ScreenWidth  float64 `yaml:"screen_width"`
	ScreenHeight float64 `yaml:"screen_height"`

	PaddleWidth  float64 `yaml:"paddle_width"`
	PaddleHeight float64 `yaml:"paddle_height"`
	PaddleOffset float64 `yaml:"paddle_offset"` // 球拍與左右邊界的距離
	PaddleSpeed  float64 `yaml:"paddle_speed"`

	BallSize     float64 `yaml:"ball_size"`
	BallSpeedX   float64 `yaml:"ball_speed_x"`
	BallSpeedY   float64 `yaml:"ball_speed_y"`
	MaxBallSpeed float64 `yaml:"max_ball_speed"`
	SpeedUp      float64 `yaml:"speed_up"` // 每次擊球後水平速度的倍率

	WinningScore int `yaml:"winning_score"`
}

// DefaultConfig 返回預設參數（800×600 畫面、先得 5 分獲勝）
func DefaultConfig() Config {
	return Config{
		ScreenWidth:  800,
		ScreenHeight: 600,
		PaddleWidth:  15,
		PaddleHeight: 100,
		PaddleOffset: 20,
		PaddleSpeed:  7,
		BallSize:     15,
		BallSpeedX:   5,
		BallSpeedY:   4,
		MaxBallSpeed: 15,
		SpeedUp:      1.05,
		WinningScore: 5,
	}
}

// Validate 檢查參數是否能構成可玩的場地
func (c Config) Validate() error {
	switch {
	case c.ScreenWidth <= 0 || c.ScreenHeight <= 0:
		return fmt.Errorf("screen size must be positive, got %vx%v", c.ScreenWidth, c.ScreenHeight)
	case c.PaddleWidth <= 0 || c.PaddleHeight <= 0 || c.PaddleHeight > c.ScreenHeight:
		return fmt.Errorf("paddle size %vx%v does not fit the screen", c.PaddleWidth, c.PaddleHeight)
	case c.PaddleOffset < 0 || 2*(c.PaddleOffset+c.PaddleWidth) >= c.ScreenWidth:
		return fmt.Errorf("paddle offset %v leaves no playfield", c.PaddleOffset)
	case c.PaddleSpeed <= 0:
		return fmt.Errorf("paddle speed must be positive")
	case c.BallSize <= 0 || c.BallSize >= c.ScreenHeight:
		return fmt.Errorf("ball size %v does not fit the screen", c.BallSize)
	case c.BallSpeedX <= 0 || c.BallSpeedY < 0:
		return fmt.Errorf("ball speed must be positive")
	case c.MaxBallSpeed < c.BallSpeedX:
		return fmt.Errorf("max ball speed %v is below base speed %v", c.MaxBallSpeed, c.BallSpeedX)
	case c.MaxBallSpeed >= c.PaddleWidth+c.BallSize:
		// 一個 tick 內不得越過整個球拍，否則碰撞檢測會漏判
		return fmt.Errorf("max ball speed %v must be below paddle width + ball size (%v)",
			c.MaxBallSpeed, c.PaddleWidth+c.BallSize)
	case c.SpeedUp < 1:
		return fmt.Errorf("speed up factor must be >= 1, got %v", c.SpeedUp)
	case c.WinningScore < 1:
		return fmt.Errorf("winning score must be >= 1, got %d", c.WinningScore)
	}
	return nil
}

// Paddle1X 左側球拍的 x
func (c Config) Paddle1X() float64 { return c.PaddleOffset }

// Paddle2X 右側球拍的 x
func (c Config) Paddle2X() float64 { return c.ScreenWidth - c.PaddleOffset - c.PaddleWidth }
