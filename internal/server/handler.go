package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Handler HTTP 端點：健康檢查、統計與 WebSocket 入口
type Handler struct {
	server *Server
	logger *slog.Logger
}

// NewHandler 建立 HTTP 處理器
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	return &Handler{
		server: server,
		logger: logger.With("component", "http"),
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))
	mux.HandleFunc("GET /ws", wrap(h.server.serveWS))

	return mux
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "ok",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 房間與連線統計
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats := h.server.manager.Stats()
	stats["clients"] = h.server.ClientCount()
	stats["codec"] = h.server.codec.Name()
	h.jsonResponse(w, stats, http.StatusOK)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encode json response", "error", err)
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
	}, status)
}

// loggerMiddleware 記錄每個請求
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("http handler panicked",
					"error", err,
					"path", r.URL.Path)
				h.errorResponse(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// responseWriter 記錄狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack WebSocket 升級需要底層連線
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}
