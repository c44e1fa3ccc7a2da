package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrChromeNotFound 本机没有可用的 Chrome/Chromium
var ErrChromeNotFound = errors.New("chrome/chromium not found")

// BrowserManager 管理共享的无头浏览器进程，按需启动
type BrowserManager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancelFunc  context.CancelFunc
	mu          sync.Mutex
	initialized bool
	proxyURL    string
	headless    bool
	logger      *zap.Logger
}

// NewBrowserManager 创建浏览器管理器；浏览器在首次搜索时才启动
func NewBrowserManager(proxyURL string, headless bool, logger *zap.Logger) *BrowserManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserManager{
		proxyURL: proxyURL,
		headless: headless,
		logger:   logger,
	}
}

func findChromePath() string {
	var paths []string

	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		paths = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			os.Getenv("LOCALAPPDATA") + `\Google\Chrome\Application\chrome.exe`,
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (bm *BrowserManager) ensureStarted() error {
	if bm.initialized {
		return nil
	}

	chromePath := findChromePath()
	if chromePath == "" {
		return ErrChromeNotFound
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.Flag("headless", bm.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(browserUserAgent),
	)
	if bm.proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(bm.proxyURL))
	}

	bm.allocCtx, bm.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	bm.browserCtx, bm.cancelFunc = chromedp.NewContext(bm.allocCtx,
		chromedp.WithLogf(bm.logger.Sugar().Debugf),
	)

	if err := chromedp.Run(bm.browserCtx); err != nil {
		bm.cancelFunc()
		bm.allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	bm.initialized = true
	bm.logger.Info("🌐 browser started", zap.Bool("headless", bm.headless), zap.String("path", chromePath))
	return nil
}

// NewTab 打开新标签页；返回的 context 同时受 parent 取消和 timeout 约束
func (bm *BrowserManager) NewTab(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if err := bm.ensureStarted(); err != nil {
		return nil, nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(bm.browserCtx)
	timeoutCtx, timeoutCancel := context.WithTimeout(tabCtx, timeout)
	stop := context.AfterFunc(parent, timeoutCancel)

	return timeoutCtx, func() {
		stop()
		timeoutCancel()
		tabCancel()
	}, nil
}

// Close 关闭浏览器
func (bm *BrowserManager) Close() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if !bm.initialized {
		return
	}
	bm.cancelFunc()
	bm.allocCancel()
	bm.initialized = false
	bm.logger.Info("🔴 browser closed")
}
