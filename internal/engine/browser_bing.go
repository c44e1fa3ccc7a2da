package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const ProviderBrowserBing = "browser_bing"

// BrowserBingEngine 通过无头浏览器渲染 Bing 结果页
type BrowserBingEngine struct {
	browser *BrowserManager
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewBrowserBingEngine 创建浏览器版 Bing 搜索引擎
func NewBrowserBingEngine(browser *BrowserManager, logger *zap.Logger) *BrowserBingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserBingEngine{
		browser: browser,
		baseURL: "https://www.bing.com/search",
		timeout: 60 * time.Second,
		logger:  logger,
	}
}

// Name 返回引擎名称
func (e *BrowserBingEngine) Name() string {
	return ProviderBrowserBing
}

// Configured 只要能找到浏览器即可使用
func (e *BrowserBingEngine) Configured() bool {
	return e.browser != nil && findChromePath() != ""
}

// Search 使用浏览器执行 Bing 搜索，只抓取第一页
func (e *BrowserBingEngine) Search(ctx context.Context, q Query) (Response, error) {
	tabCtx, cancel, err := e.browser.NewTab(ctx, e.timeout)
	if err != nil {
		return Response{}, err
	}
	defer cancel()

	searchURL := bingSearchURL(e.baseURL, q, 0)
	e.logger.Debug("browser navigating", zap.String("url", searchURL))

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible("#b_results", chromedp.ByID),
		chromedp.Sleep(time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return Response{}, fmt.Errorf("browser navigation failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Response{}, fmt.Errorf("parse HTML failed: %w", err)
	}

	items := parseBingDocument(doc)
	if q.Count > 0 && len(items) > q.Count {
		items = items[:q.Count]
	}
	e.logger.Debug("browser bing parsed", zap.Int("bytes", len(html)), zap.Int("items", len(items)))
	return itemsResponse(items), nil
}
