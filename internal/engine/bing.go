package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	ProviderBing = "bing"

	bingPageSize = 10
	bingMaxPages = 3
)

var bingLinkPattern = regexp.MustCompile(`<a[^>]*href="(https?://[^"]+)"[^>]*>([^<]+)</a>`)

// BingEngine Bing 网页搜索（HTML 解析，无需 API key）
type BingEngine struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewBingEngine 创建 Bing 搜索引擎实例
func NewBingEngine(proxyURL string, logger *zap.Logger) *BingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BingEngine{
		client:  newHTTPClient(proxyURL, 30*time.Second),
		baseURL: "https://www.bing.com/search",
		logger:  logger,
	}
}

// Name 返回引擎名称
func (e *BingEngine) Name() string {
	return ProviderBing
}

// Configured Bing HTML 搜索始终可用
func (e *BingEngine) Configured() bool {
	return true
}

// Search 执行 Bing 搜索，按页抓取直到满足数量
func (e *BingEngine) Search(ctx context.Context, q Query) (Response, error) {
	limit := q.Count
	if limit <= 0 {
		limit = bingPageSize
	}

	var all []RawItem
	for page := 0; len(all) < limit && page < bingMaxPages; page++ {
		items, err := e.searchPage(ctx, q, page)
		if err != nil {
			if len(all) > 0 {
				break
			}
			return Response{}, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
	}

	if len(all) > limit {
		all = all[:limit]
	}
	return itemsResponse(all), nil
}

func (e *BingEngine) searchPage(ctx context.Context, q Query, page int) ([]RawItem, error) {
	body, err := fetch(ctx, e.client, bingSearchURL(e.baseURL, q, page), setHTMLHeaders)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse HTML failed: %w", err)
	}

	items := parseBingDocument(doc)
	if len(items) == 0 {
		e.logger.Debug("bing selectors matched nothing, trying regex extraction")
		items = extractBingLinks(string(body))
	}

	e.logger.Debug("bing page parsed", zap.Int("page", page), zap.Int("items", len(items)))
	return items, nil
}

func bingSearchURL(baseURL string, q Query, page int) string {
	params := url.Values{}
	params.Set("q", q.Text)
	params.Set("first", fmt.Sprintf("%d", 1+page*bingPageSize))
	lang := q.Lang
	if lang == "" {
		lang = "en"
	}
	params.Set("setlang", lang)
	if q.Region != "" {
		params.Set("cc", q.Region)
	}
	return baseURL + "?" + params.Encode()
}

// parseBingDocument 解析 li.b_algo 结果块
func parseBingDocument(doc *goquery.Document) []RawItem {
	var items []RawItem

	selectors := []string{
		"#b_results > li.b_algo",
		"li.b_algo",
	}
	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			linkEl := s.Find("h2 a").First()
			if linkEl.Length() == 0 {
				return
			}

			href, exists := linkEl.Attr("href")
			if !exists {
				return
			}
			link := bingRealURL(href)
			if !strings.HasPrefix(link, "http") || isBingInternal(link) {
				return
			}

			snippet := ""
			for _, descSel := range []string{".b_caption p", "p", ".b_algoSlug"} {
				if d := strings.TrimSpace(s.Find(descSel).First().Text()); d != "" {
					snippet = d
					break
				}
			}

			items = append(items, RawItem{
				"title":   strings.TrimSpace(linkEl.Text()),
				"link":    link,
				"snippet": snippet,
			})
		})

		if len(items) > 0 {
			break
		}
	}
	return items
}

// extractBingLinks 正则兜底
func extractBingLinks(html string) []RawItem {
	var items []RawItem
	seen := make(map[string]bool)

	for _, match := range bingLinkPattern.FindAllStringSubmatch(html, -1) {
		href := match[1]
		title := strings.TrimSpace(match[2])
		if title == "" || seen[href] || isBingInternal(href) {
			continue
		}
		seen[href] = true
		items = append(items, RawItem{"title": title, "link": href, "snippet": ""})
		if len(items) >= bingPageSize {
			break
		}
	}
	return items
}

func isBingInternal(link string) bool {
	return strings.Contains(link, "bing.com") || strings.Contains(link, "microsoft.com")
}

// bingRealURL 从 Bing 跳转链接 (bing.com/ck/a?u=a1<base64>) 中还原真实地址
func bingRealURL(href string) string {
	if !strings.Contains(href, "bing.com/ck/a") {
		return href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}

	u := strings.TrimPrefix(parsed.Query().Get("u"), "a1")
	if u == "" {
		return href
	}
	decoded, err := base64.RawURLEncoding.DecodeString(u)
	if err != nil || len(decoded) == 0 {
		return href
	}
	return string(decoded)
}
