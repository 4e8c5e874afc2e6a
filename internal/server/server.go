package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koopa0/classic-pong/internal/config"
	"github.com/koopa0/classic-pong/internal/limiter"
	"github.com/koopa0/classic-pong/internal/protocol"
	"github.com/koopa0/classic-pong/internal/room"
)

const (
	readBufferSize = 4096
	pingInterval   = 54 * time.Second
	pongWait       = 60 * time.Second
)

// Server 接受 TCP 與 WebSocket 連線並驅動編排迴圈
type Server struct {
	cfg     *config.Config
	manager *room.Manager
	loop    *Loop
	codec   protocol.Codec
	logger  *slog.Logger

	upgrader websocket.Upgrader
	tcpLn    net.Listener
	httpLn   net.Listener
	httpSrv  *http.Server

	mu      sync.Mutex
	clients map[string]*Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 建立伺服器（尚未監聽）
func New(cfg *config.Config, manager *room.Manager, logger *slog.Logger) (*Server, error) {
	codec, err := protocol.NewCodec(cfg.Protocol.Codec)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		manager: manager,
		loop:    NewLoop(manager, cfg.TickInterval(), logger),
		codec:   codec,
		logger:  logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 展示客戶端可能來自任意來源
				return true
			},
		},
		clients: make(map[string]*Client),
	}
	return s, nil
}

// Loop 返回編排迴圈
func (s *Server) Loop() *Loop { return s.loop }

// Start 綁定監聽位址並在背景開始服務
func (s *Server) Start(ctx context.Context) error {
	tcpLn, err := net.Listen("tcp", s.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.cfg.Server.ListenAddr, err)
	}
	s.tcpLn = tcpLn

	if s.cfg.Server.HTTPAddr != "" {
		httpLn, err := net.Listen("tcp", s.cfg.Server.HTTPAddr)
		if err != nil {
			tcpLn.Close()
			return fmt.Errorf("listen http %s: %w", s.cfg.Server.HTTPAddr, err)
		}
		s.httpLn = httpLn
		s.httpSrv = &http.Server{
			Handler:           NewHandler(s, s.logger).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		_ = s.loop.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.acceptTCP()
	}()

	if s.httpSrv != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.httpSrv.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("http server failed", "error", err)
			}
		}()
	}

	s.logger.Info("server started",
		"tcp_addr", s.TCPAddr(),
		"http_addr", s.HTTPAddr(),
		"codec", s.codec.Name(),
		"tick_rate", s.cfg.Server.TickRate)
	return nil
}

// TCPAddr 實際的 TCP 監聽位址
func (s *Server) TCPAddr() string {
	if s.tcpLn == nil {
		return ""
	}
	return s.tcpLn.Addr().String()
}

// HTTPAddr 實際的 HTTP 監聽位址；停用時為空字串
func (s *Server) HTTPAddr() string {
	if s.httpLn == nil {
		return ""
	}
	return s.httpLn.Addr().String()
}

// ClientCount 目前的連線數
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Shutdown 優雅關閉
//
// 停止接受新連線 → 停止編排迴圈 → 關閉所有房間（通知 DISCONNECT）→ 關閉剩餘連線 → 等待 goroutine 結束。
func (s *Server) Shutdown(ctx context.Context) error {
	if s.tcpLn != nil {
		s.tcpLn.Close()
	}
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.manager.Stop()

	s.mu.Lock()
	for _, c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

// acceptTCP 接受 TCP 連線直到監聽器關閉
func (s *Server) acceptTCP() {
	for {
		conn, err := s.tcpLn.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", "error", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		tr := &tcpTransport{conn: conn, writeTimeout: s.cfg.Server.WriteTimeout}
		buf := make([]byte, readBufferSize)
		s.serve(tr, "tcp", func() ([]byte, error) {
			n, err := conn.Read(buf)
			return buf[:n], err
		})
	}
}

// serveWS 升級為 WebSocket
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	frameType := websocket.TextMessage
	if s.codec.Name() == protocol.CodecMsgpack {
		frameType = websocket.BinaryMessage
	}
	writeTimeout := s.cfg.Server.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	tr := &wsTransport{conn: conn, frameType: frameType, writeTimeout: writeTimeout}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.serve(tr, "websocket", func() ([]byte, error) {
		for {
			typ, data, err := conn.ReadMessage()
			if err != nil {
				return nil, err
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
				return data, nil
			}
		}
	})
}

// serve 為連線啟動讀寫 goroutine
//
// read 每次返回一段任意長度的位元組；記錄邊界由串流解碼器處理。
func (s *Server) serve(tr transport, kind string, read func() ([]byte, error)) {
	c := newClient(tr, s.codec, s.cfg.Server.SendBuffer, s.logger)

	s.mu.Lock()
	s.clients[c.ID()] = c
	s.mu.Unlock()

	s.logger.InfoContext(c.ctx, "client connected", "transport", kind, "remote", tr.RemoteAddr())

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(c, read)
	}()
}

func (s *Server) writePump(c *Client) {
	var interval time.Duration
	if _, ok := c.tr.(pinger); ok {
		interval = pingInterval
	}
	c.writePump(interval)
}

// readPump 讀取、解碼、分派，直到出錯或客戶端要求斷線
func (s *Server) readPump(c *Client, read func() ([]byte, error)) {
	defer func() {
		s.manager.Unregister(c)
		c.Close()

		s.mu.Lock()
		delete(s.clients, c.ID())
		s.mu.Unlock()

		s.logger.InfoContext(c.ctx, "client disconnected")
	}()

	dec := protocol.NewDecoder(s.codec, s.cfg.Protocol.MaxBuffer)
	bucket := limiter.NewTokenBucket(s.cfg.Server.InputRate, s.cfg.Server.InputBurst, time.Now())
	for {
		p, err := read()
		if len(p) > 0 {
			dropped := dec.Dropped()
			limited := 0
			for _, msg := range dec.Feed(p) {
				// DISCONNECT 不受限流影響
				if _, bye := msg.(protocol.Disconnect); !bye && !bucket.Allow() {
					limited++
					continue
				}
				if !s.dispatch(c, msg) {
					return
				}
			}
			if n := dec.Dropped() - dropped; n > 0 {
				s.logger.DebugContext(c.ctx, "malformed records dropped", "count", n)
			}
			if limited > 0 {
				s.logger.DebugContext(c.ctx, "rate limited records dropped", "count", limited)
			}
		}
		if err != nil {
			s.logger.DebugContext(c.ctx, "read ended", "error", err)
			return
		}
	}
}
