package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderGoogle = "google"

	// DefaultGoogleBaseURL Google Custom Search JSON API
	DefaultGoogleBaseURL = "https://www.googleapis.com/customsearch/v1"

	googleMaxNum = 10
)

// GoogleEngine Google Custom Search 提供方
type GoogleEngine struct {
	client  *http.Client
	baseURL string
	apiKey  string
	cx      string
	logger  *zap.Logger
}

// NewGoogleEngine 创建 Google Custom Search 提供方
func NewGoogleEngine(baseURL, apiKey, cx, proxyURL string, logger *zap.Logger) *GoogleEngine {
	if baseURL == "" {
		baseURL = DefaultGoogleBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleEngine{
		client:  newHTTPClient(proxyURL, 30*time.Second),
		baseURL: baseURL,
		apiKey:  apiKey,
		cx:      cx,
		logger:  logger,
	}
}

// Name 返回提供方名称
func (e *GoogleEngine) Name() string {
	return ProviderGoogle
}

// Configured API key 与 cx 均存在时才可用
func (e *GoogleEngine) Configured() bool {
	return e.apiKey != "" && e.cx != ""
}

// Search 执行一次 Custom Search 查询
func (e *GoogleEngine) Search(ctx context.Context, q Query) (Response, error) {
	if !e.Configured() {
		return Response{}, errors.New("google custom search credentials missing")
	}

	searchURL, err := e.buildURL(q)
	if err != nil {
		return Response{}, err
	}

	body, err := fetch(ctx, e.client, searchURL, func(req *http.Request) {
		req.Header.Set("Accept", "application/json")
	})
	if err != nil {
		return Response{}, err
	}

	resp, err := decodeItemsBody(body)
	if err != nil {
		return Response{}, err
	}
	e.logger.Debug("google search done",
		zap.String("query", q.Text),
		zap.Stringer("kind", resp.Kind),
		zap.Int("items", len(resp.Items)))
	return resp, nil
}

func (e *GoogleEngine) buildURL(q Query) (string, error) {
	u, err := url.Parse(e.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid google base url: %w", err)
	}

	num := q.Count
	if num <= 0 || num > googleMaxNum {
		num = googleMaxNum
	}

	params := u.Query()
	params.Set("key", e.apiKey)
	params.Set("cx", e.cx)
	params.Set("q", q.Text)
	params.Set("num", strconv.Itoa(num))
	if q.Lang != "" {
		params.Set("lr", "lang_"+q.Lang)
	}
	if q.Region != "" {
		params.Set("gl", q.Region)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// decodeItemsBody 解析 {"items": [...]} 形态的响应体
// 顶层不是对象时视为错误；没有 items 数组时返回 KindUnrecognized。
func decodeItemsBody(body []byte) (Response, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return Response{}, fmt.Errorf("decode search response failed: %w", err)
	}

	raw, ok := top["items"]
	if !ok {
		return Response{Kind: KindUnrecognized}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return Response{Kind: KindUnrecognized}, nil
	}

	items := make([]RawItem, 0, len(elems))
	for _, elem := range elems {
		var item map[string]any
		if err := json.Unmarshal(elem, &item); err != nil || item == nil {
			continue
		}
		items = append(items, RawItem(item))
	}
	return itemsResponse(items), nil
}
