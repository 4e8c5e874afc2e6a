// Package logger 提供結構化日誌功能
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey 用於上下文的鍵類型
type contextKey string

const (
	// ConnIDKey 連線 ID 的上下文鍵
	ConnIDKey contextKey = "conn_id"
	// RoomIDKey 房間 ID 的上下文鍵
	RoomIDKey contextKey = "room_id"
)

// New 建立日誌記錄器
//
// output 可為 "stdout"、"stderr" 或檔案路徑。
func New(level, format, output string) (*slog.Logger, error) {
	var w io.Writer
	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		// #nosec G304 - output 來自配置檔
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, err
		}
		w = file
	}
	return NewWithWriter(w, level, format), nil
}

// NewWithWriter 以指定 writer 建立日誌記錄器（測試使用）
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: strings.EqualFold(level, "debug"), // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(&contextHandler{Handler: handler})
}

// Discard 返回丟棄所有輸出的日誌記錄器
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

// ParseLevel 解析日誌級別
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler 從上下文中提取連線與房間資訊
type contextHandler struct {
	slog.Handler
}

// Handle 處理日誌記錄
func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if connID, ok := ctx.Value(ConnIDKey).(string); ok && connID != "" {
		r.AddAttrs(slog.String("conn_id", connID))
	}
	if roomID, ok := ctx.Value(RoomIDKey).(int); ok && roomID != 0 {
		r.AddAttrs(slog.Int("room_id", roomID))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs 保留 contextHandler 包裝
func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup 保留 contextHandler 包裝
func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithConnID 添加連線 ID 到上下文
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ConnIDKey, connID)
}

// WithRoomID 添加房間 ID 到上下文
func WithRoomID(ctx context.Context, roomID int) context.Context {
	return context.WithValue(ctx, RoomIDKey, roomID)
}
