// Package events 發布對局生命週期事件
//
// 房間建立、開賽、結束、重賽、關閉時發出事件，供外部系統（排行榜、統計、監控）訂閱。
// 發布是 fire-and-forget：失敗只記錄日誌，不影響對局。
//
// 實作：
//   - NATSPublisher：core NATS publish 到 <prefix>.<event>
//   - LogPublisher：寫入結構化日誌（未配置 NATS 時使用）
//   - Nop：丟棄（測試使用）
package events

import (
	"context"
	"log/slog"
	"time"
)

// Type 事件類型
type Type string

const (
	RoomCreated    Type = "room_created"
	MatchStarted   Type = "match_started"
	MatchFinished  Type = "match_finished"
	MatchRestarted Type = "match_restarted"
	RoomClosed     Type = "room_closed"
)

// Event 對局事件
type Event struct {
	Type       Type      `json:"type"`
	RoomID     int       `json:"room_id"`
	Bot        bool      `json:"bot"`
	Difficulty string    `json:"difficulty,omitempty"`
	Score1     int       `json:"score1"`
	Score2     int       `json:"score2"`
	Winner     int       `json:"winner,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Time       time.Time `json:"time"`
}

// Publisher 事件發布者
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Config 事件發布配置
type Config struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// New 依配置建立發布者；未設定 NATS URL 時寫入日誌
func New(cfg Config, logger *slog.Logger) (Publisher, error) {
	if cfg.NATSURL == "" {
		return NewLogPublisher(logger), nil
	}
	return NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix, logger)
}

// LogPublisher 把事件寫入日誌
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher 建立日誌發布者
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "events")}
}

// Publish 記錄事件
func (p *LogPublisher) Publish(ctx context.Context, ev Event) error {
	attrs := []any{
		"event", string(ev.Type),
		"room_id", ev.RoomID,
		"bot", ev.Bot,
	}
	if ev.Type == MatchFinished {
		attrs = append(attrs, "score1", ev.Score1, "score2", ev.Score2, "winner", ev.Winner)
	}
	if ev.Reason != "" {
		attrs = append(attrs, "reason", ev.Reason)
	}
	p.logger.InfoContext(ctx, "match event", attrs...)
	return nil
}

// Close 無資源需要釋放
func (p *LogPublisher) Close() error { return nil }

// Nop 丟棄所有事件
type Nop struct{}

// Publish 不做任何事
func (Nop) Publish(context.Context, Event) error { return nil }

// Close 不做任何事
func (Nop) Close() error { return nil }
