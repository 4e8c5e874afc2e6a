// Package config 載入伺服器配置
//
// 來源優先序（後者覆蓋前者）：
//  1. Default() 內建預設值
//  2. YAML 配置檔
//  3. .env 檔（不覆蓋已存在的環境變數）
//  4. PONG_* 環境變數
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/koopa0/classic-pong/internal/bot"
	"github.com/koopa0/classic-pong/internal/events"
	"github.com/koopa0/classic-pong/internal/game"
	"github.com/koopa0/classic-pong/internal/protocol"
	"github.com/koopa0/classic-pong/internal/room"
)

// DotEnvFile 預設的 .env 路徑
const DotEnvFile = ".env"

// Config 整個應用的配置
type Config struct {
	Server struct {
		ListenAddr      string        `yaml:"listen_addr"` // TCP
		HTTPAddr        string        `yaml:"http_addr"`   // /ws、/health、/stats；空字串停用
		TickRate        int           `yaml:"tick_rate"`
		SendBuffer      int           `yaml:"send_buffer"` // 每條連線的發送佇列長度
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		InputRate       float64       `yaml:"input_rate"` // 每條連線每秒可接受的訊息數；0 停用限流
		InputBurst      int           `yaml:"input_burst"`
	} `yaml:"server"`

	Game game.Config `yaml:"game"`

	Bot bot.Config `yaml:"bot"`

	Room struct {
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
		Seed            uint64        `yaml:"seed"`
	} `yaml:"room"`

	Protocol struct {
		Codec     string `yaml:"codec"`
		MaxBuffer int    `yaml:"max_buffer"`
	} `yaml:"protocol"`

	Events events.Config `yaml:"events"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
}

// Default 返回完整的預設配置
func Default() *Config {
	cfg := &Config{
		Game: game.DefaultConfig(),
		Bot:  bot.DefaultConfig(),
	}

	cfg.Server.ListenAddr = ":5555"
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.TickRate = 60
	cfg.Server.SendBuffer = 256
	cfg.Server.WriteTimeout = 5 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.InputRate = 120
	cfg.Server.InputBurst = 60

	cfg.Room.IdleTimeout = 5 * time.Minute
	cfg.Room.CleanupInterval = 30 * time.Second

	cfg.Protocol.Codec = protocol.CodecJSON
	cfg.Protocol.MaxBuffer = protocol.DefaultMaxBuffer

	cfg.Events.SubjectPrefix = events.DefaultSubjectPrefix

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Log.Output = "stdout"
	return cfg
}

// Load 依序套用預設值、配置檔、.env 與環境變數，並驗證結果
//
// path 為空時跳過配置檔。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - 路徑來自命令列參數
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv 套用 PONG_* 環境變數
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PONG_LISTEN_ADDR": &c.Server.ListenAddr,
		"PONG_HTTP_ADDR":   &c.Server.HTTPAddr,
		"PONG_CODEC":       &c.Protocol.Codec,
		"PONG_NATS_URL":    &c.Events.NATSURL,
		"PONG_LOG_LEVEL":   &c.Log.Level,
		"PONG_LOG_FORMAT":  &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PONG_TICK_RATE":     &c.Server.TickRate,
		"PONG_WINNING_SCORE": &c.Game.WinningScore,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate 檢查配置
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is required")
	}
	if c.Server.TickRate < 1 || c.Server.TickRate > 1000 {
		return fmt.Errorf("server.tick_rate must be in [1,1000], got %d", c.Server.TickRate)
	}
	if c.Server.SendBuffer < 1 {
		return fmt.Errorf("server.send_buffer must be positive, got %d", c.Server.SendBuffer)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout)
	}
	if c.Server.InputRate < 0 || c.Server.InputBurst < 0 {
		return errors.New("server.input_rate and server.input_burst must be >= 0")
	}
	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}
	if err := c.Bot.Validate(); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	for _, d := range []string{protocol.DifficultyEasy, protocol.DifficultyMedium, protocol.DifficultyHard} {
		if _, ok := c.Bot.Presets[d]; !ok {
			return fmt.Errorf("bot.presets.%s is required", d)
		}
	}
	if c.Room.IdleTimeout < 0 {
		return errors.New("room.idle_timeout must be >= 0")
	}
	if c.Room.CleanupInterval <= 0 {
		return fmt.Errorf("room.cleanup_interval must be positive, got %v", c.Room.CleanupInterval)
	}
	if _, err := protocol.NewCodec(c.Protocol.Codec); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	if c.Protocol.MaxBuffer < 1 {
		return fmt.Errorf("protocol.max_buffer must be positive, got %d", c.Protocol.MaxBuffer)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// TickInterval 每個 tick 的間隔
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Server.TickRate)
}

// RoomConfig 轉換為房間管理器配置
func (c *Config) RoomConfig() room.Config {
	return room.Config{
		Game:            c.Game,
		Bot:             c.Bot,
		IdleTimeout:     c.Room.IdleTimeout,
		CleanupInterval: c.Room.CleanupInterval,
		Seed:            c.Room.Seed,
	}
}
