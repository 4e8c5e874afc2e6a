package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/koopa0/classic-pong/internal/protocol"
	apperrors "github.com/koopa0/classic-pong/pkg/errors"
	"github.com/koopa0/classic-pong/pkg/logger"
)

// transport 底層連線（TCP 或 WebSocket）
//
// WriteRecord 只會由 writePump 呼叫。
type transport interface {
	WriteRecord(b []byte) error
	Close() error
	RemoteAddr() string
}

// pinger 需要保活的傳輸層（WebSocket）
type pinger interface {
	Ping() error
}

// Client 一條客戶端連線
//
// 實作 room.Conn。發送是非阻塞的：訊息先編碼再放入 send 佇列，
// 佇列滿時丟棄並回傳 ErrSendBufferFull，慢客戶端不會拖住編排迴圈。
type Client struct {
	id     string
	codec  protocol.Codec
	tr     transport
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger
	ctx    context.Context

	closeOnce sync.Once
}

func newClient(tr transport, codec protocol.Codec, sendBuffer int, log *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		codec:  codec,
		tr:     tr,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: log,
		ctx:    logger.WithConnID(context.Background(), id),
	}
}

// ID 連線 ID（UUID）
func (c *Client) ID() string { return c.id }

// RemoteAddr 對端位址
func (c *Client) RemoteAddr() string { return c.tr.RemoteAddr() }

// Send 編碼並放入發送佇列
func (c *Client) Send(msg protocol.Message) error {
	b, err := c.codec.Encode(msg)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "encode "+string(msg.Type()))
	}

	select {
	case <-c.done:
		return apperrors.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- b:
		return nil
	default:
		return apperrors.ErrSendBufferFull.WithDetails(string(msg.Type()))
	}
}

// Close 關閉連線；佇列中剩餘的訊息會先盡量送出
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// writePump 把佇列中的記錄寫到傳輸層
//
// 結束時一定關閉傳輸層，讓讀取端的阻塞讀取返回。
func (c *Client) writePump(pingInterval time.Duration) {
	defer c.tr.Close()

	var tick <-chan time.Time
	if _, ok := c.tr.(pinger); ok && pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case b := <-c.send:
			if err := c.tr.WriteRecord(b); err != nil {
				c.logger.DebugContext(c.ctx, "write failed", "error", err)
				c.Close()
				return
			}

		case <-tick:
			if err := c.tr.(pinger).Ping(); err != nil {
				c.logger.DebugContext(c.ctx, "ping failed", "error", err)
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			return
		}
	}
}

// flush 盡量送出關閉前已入列的訊息（例如 DISCONNECT）
func (c *Client) flush() {
	for {
		select {
		case b := <-c.send:
			if err := c.tr.WriteRecord(b); err != nil {
				return
			}
		default:
			return
		}
	}
}

// tcpTransport TCP 連線，記錄直接首尾相接寫出
type tcpTransport struct {
	conn         net.Conn
	writeTimeout time.Duration
}

func (t *tcpTransport) WriteRecord(b []byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := t.conn.Write(b)
	return err
}

func (t *tcpTransport) Close() error       { return t.conn.Close() }
func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

// wsTransport WebSocket 連線，每筆記錄一個 frame
type wsTransport struct {
	conn         *websocket.Conn
	frameType    int
	writeTimeout time.Duration
}

func (t *wsTransport) WriteRecord(b []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(t.frameType, b)
}

func (t *wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeTimeout))
}

func (t *wsTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
