package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cliffyan/go-source-finder/internal/config"
	"github.com/cliffyan/go-source-finder/internal/metrics"
)

// Manager 搜索提供方管理器
type Manager struct {
	providers map[string]Provider
	config    *config.Config
	limiter   *rate.Limiter
	browser   *BrowserManager
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewManager 创建管理器并注册配置启用的提供方
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := newManager(cfg, logger)
	m.initProviders()
	return m
}

func newManager(cfg *config.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		providers: make(map[string]Provider),
		config:    cfg,
		logger:    logger,
	}
	if rps := cfg.Search.RequestsPerSecond; rps > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return m
}

func (m *Manager) initProviders() {
	proxyURL := m.config.ProxyURL()
	g := m.config.Google

	m.Register(NewGoogleEngine(g.BaseURL, g.APIKey, g.CX, proxyURL, m.logger))
	m.Register(NewBingEngine(proxyURL, m.logger))
	m.Register(NewDuckDuckGoEngine(proxyURL, m.logger))

	if m.config.Browser.Enabled {
		m.browser = NewBrowserManager(proxyURL, m.config.Browser.Headless, m.logger)
		m.Register(NewBrowserBingEngine(m.browser, m.logger))
	}

	m.logger.Info("✅ search providers initialized", zap.Strings("providers", m.Names()))
}

// Register 注册提供方，同名覆盖
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.Name()] = p
}

// Names 返回已注册的提供方名称（有序）
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider 按名称取得提供方，返回的实例附带限流与指标
func (m *Manager) Provider(name string) (Provider, error) {
	if !m.config.IsProviderAllowed(name) {
		return nil, fmt.Errorf("search provider %q is not allowed", name)
	}

	m.mu.RLock()
	p, ok := m.providers[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("search provider %q not registered", name)
	}
	return &instrumented{Provider: p, limiter: m.limiter}, nil
}

// Default 返回配置中的默认提供方
func (m *Manager) Default() (Provider, error) {
	return m.Provider(m.config.Search.Provider)
}

// Search 使用指定提供方执行一次原始查询；name 为空时使用默认提供方
func (m *Manager) Search(ctx context.Context, name string, q Query) (Response, error) {
	if name == "" {
		name = m.config.Search.Provider
	}
	p, err := m.Provider(name)
	if err != nil {
		return Response{}, err
	}
	if !p.Configured() {
		return Response{}, fmt.Errorf("search provider %q not configured", name)
	}
	return p.Search(ctx, q)
}

// Close 释放浏览器等资源
func (m *Manager) Close() {
	if m.browser != nil {
		m.browser.Close()
	}
}

// instrumented 为提供方增加限流和请求指标
type instrumented struct {
	Provider
	limiter *rate.Limiter
}

func (p *instrumented) Search(ctx context.Context, q Query) (Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := p.Provider.Search(ctx, q)
	metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	metrics.ProviderRequests.WithLabelValues(p.Name(), status).Inc()
	return resp, err
}
