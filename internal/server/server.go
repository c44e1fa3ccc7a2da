package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/cliffyan/go-source-finder/internal/config"
	"github.com/cliffyan/go-source-finder/internal/mcp"
	"github.com/cliffyan/go-source-finder/internal/sources"
)

const requestIDHeader = "X-Request-ID"

// Finder 来源检索服务
type Finder interface {
	mcp.SourceFinder
	Configured() bool
}

// Server HTTP 服务器
type Server struct {
	config     *config.Config
	finder     Finder
	mcpHandler *mcp.Handler
	providers  []string
	logger     *zap.Logger
	httpServer *http.Server
	sessions   map[string]*Session
	sessionsMu sync.RWMutex
	// closing is closed when shutdown begins so long-lived streams return
	closing chan struct{}
}

// Session MCP 会话信息
type Session struct {
	ID        string
	CreatedAt time.Time
}

// New 创建新的服务器实例；providers 仅用于健康检查输出
func New(cfg *config.Config, finder Finder, mcpHandler *mcp.Handler, providers []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:     cfg,
		finder:     finder,
		mcpHandler: mcpHandler,
		providers:  providers,
		logger:     logger,
		sessions:   make(map[string]*Session),
		closing:    make(chan struct{}),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	var once sync.Once
	s.httpServer.RegisterOnShutdown(func() {
		once.Do(func() { close(s.closing) })
	})
	return s
}

// Handler 构建路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/sources/find", s.handleFindSources)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/mcp", s.handleMCP)

	var handler http.Handler = s.withRequestID(mux)
	if s.config.Server.CORS.Enabled {
		c := cors.New(cors.Options{
			AllowedOrigins:   []string{s.config.Server.CORS.Origin},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "mcp-session-id", requestIDHeader},
			ExposedHeaders:   []string{requestIDHeader, "mcp-session-id"},
			AllowCredentials: true,
		})
		handler = c.Handler(handler)
	}
	return handler
}

// Run 启动 HTTP 服务器并阻塞；ctx 结束后在 grace 内等待进行中的请求完成再返回
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.serve(ctx, ln, grace)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	addr := ln.Addr().String()
	s.logger.Info("🚀 starting HTTP server", zap.String("addr", addr))
	s.logger.Info("📡 endpoints",
		zap.String("find", fmt.Sprintf("http://%s/api/v1/sources/find", addr)),
		zap.String("mcp", fmt.Sprintf("http://%s/mcp", addr)),
		zap.String("health", fmt.Sprintf("http://%s/health", addr)))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("🛑 shutting down server", zap.Duration("grace", grace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"service":    s.config.MCP.ServerName,
		"version":    s.config.MCP.ServerVersion,
		"provider":   s.config.Search.Provider,
		"providers":  s.providers,
		"configured": s.finder.Configured(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ Finder = (*sources.Finder)(nil)
