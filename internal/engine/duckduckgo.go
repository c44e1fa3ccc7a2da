package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const ProviderDuckDuckGo = "duckduckgo"

// DuckDuckGoEngine DuckDuckGo HTML 版搜索
type DuckDuckGoEngine struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewDuckDuckGoEngine 创建 DuckDuckGo 搜索引擎实例
func NewDuckDuckGoEngine(proxyURL string, logger *zap.Logger) *DuckDuckGoEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuckDuckGoEngine{
		client:  newHTTPClient(proxyURL, 30*time.Second),
		baseURL: "https://html.duckduckgo.com/html/",
		logger:  logger,
	}
}

// Name 返回引擎名称
func (e *DuckDuckGoEngine) Name() string {
	return ProviderDuckDuckGo
}

// Configured DuckDuckGo 无需凭据
func (e *DuckDuckGoEngine) Configured() bool {
	return true
}

// Search 执行 DuckDuckGo 搜索
func (e *DuckDuckGoEngine) Search(ctx context.Context, q Query) (Response, error) {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("kl", duckduckgoLocale(q.Lang, q.Region))

	body, err := fetch(ctx, e.client, e.baseURL+"?"+params.Encode(), setHTMLHeaders)
	if err != nil {
		return Response{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Response{}, fmt.Errorf("parse HTML failed: %w", err)
	}

	limit := q.Count
	if limit <= 0 {
		limit = 10
	}
	items := parseDuckDuckGoDocument(doc, limit)
	e.logger.Debug("duckduckgo search done", zap.String("query", q.Text), zap.Int("items", len(items)))
	return itemsResponse(items), nil
}

// duckduckgoLocale 生成 kl 参数，如 in-en；无地区时使用 wt-wt
func duckduckgoLocale(lang, region string) string {
	if region == "" {
		return "wt-wt"
	}
	if lang == "" {
		lang = "en"
	}
	return strings.ToLower(region) + "-" + strings.ToLower(lang)
}

func parseDuckDuckGoDocument(doc *goquery.Document, limit int) []RawItem {
	var items []RawItem

	doc.Find(".result").Each(func(i int, s *goquery.Selection) {
		if len(items) >= limit {
			return
		}

		linkEl := s.Find(".result__a").First()
		if linkEl.Length() == 0 {
			return
		}
		href, exists := linkEl.Attr("href")
		if !exists {
			return
		}

		// 跳转链接形如 //duckduckgo.com/l/?uddg=<url>
		if strings.HasPrefix(href, "//duckduckgo.com/l/") {
			if parsed, err := url.Parse("https:" + href); err == nil {
				href = parsed.Query().Get("uddg")
			}
		}
		if !strings.HasPrefix(href, "http") {
			return
		}

		items = append(items, RawItem{
			"title":   strings.TrimSpace(linkEl.Text()),
			"link":    href,
			"snippet": strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
	})
	return items
}
