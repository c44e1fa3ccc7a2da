package engine

import (
	"context"
	"fmt"
)

// Provider 搜索服务提供方接口
type Provider interface {
	// Name 返回提供方名称
	Name() string
	// Configured 是否具备发起请求所需的凭据
	Configured() bool
	// Search 执行一次查询
	Search(ctx context.Context, q Query) (Response, error)
}

// Query 单次搜索请求
type Query struct {
	Text   string `json:"text"`
	Count  int    `json:"count,omitempty"`
	Lang   string `json:"lang,omitempty"`
	Region string `json:"region,omitempty"`
}

// ResponseKind 响应形态
type ResponseKind int

const (
	// KindUnrecognized 响应体中没有可识别的结果数组
	KindUnrecognized ResponseKind = iota
	// KindItems 响应体携带 items 数组
	KindItems
)

func (k ResponseKind) String() string {
	switch k {
	case KindItems:
		return "items"
	default:
		return "unrecognized"
	}
}

// RawItem 未经规整的单条命中，值可能不是字符串
type RawItem map[string]any

// Response 提供方响应
type Response struct {
	Kind  ResponseKind
	Items []RawItem
}

// Hits 返回可用的命中；未识别的响应一律视为零结果
func (r Response) Hits() []RawItem {
	switch r.Kind {
	case KindItems:
		return r.Items
	default:
		return nil
	}
}

func itemsResponse(items []RawItem) Response {
	return Response{Kind: KindItems, Items: items}
}

// StatusError 非 2xx 响应
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

func truncateBody(body []byte) string {
	return string(body[:min(len(body), 200)])
}
