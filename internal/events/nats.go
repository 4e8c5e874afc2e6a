package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix 預設主題前綴
const DefaultSubjectPrefix = "pong"

// NATSPublisher 以 core NATS 發布事件（不經 JetStream，無持久化）
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher 連接 NATS
//
// 斷線後無限重連，重連期間的訊息由 nats.go 的重連緩衝暫存。
func NewNATSPublisher(url, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger = logger.With("component", "events", "transport", "nats")

	conn, err := nats.Connect(
		url,
		nats.Name("classic-pong"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}

	return &NATSPublisher{conn: conn, prefix: prefix, logger: logger}, nil
}

// Subject 返回事件的主題名稱
func Subject(prefix string, t Type) string {
	return prefix + "." + string(t)
}

// Publish 發布事件
func (p *NATSPublisher) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(Subject(p.prefix, ev.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close 送出緩衝中的訊息後關閉連線
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
