package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cliffyan/go-source-finder/internal/config"
	"github.com/cliffyan/go-source-finder/internal/engine"
	"github.com/cliffyan/go-source-finder/internal/sources"
)

const (
	MCPVersion = "2024-11-05"
)

// SourceFinder 来源检索
type SourceFinder interface {
	Find(ctx context.Context, req sources.Request) (*sources.Outcome, error)
}

// RawSearcher 直接调用单个搜索提供方
type RawSearcher interface {
	Search(ctx context.Context, provider string, q engine.Query) (engine.Response, error)
}

// Handler MCP 请求处理器
type Handler struct {
	config   *config.Config
	finder   SourceFinder
	searcher RawSearcher
	logger   *zap.Logger
}

// NewHandler 创建 MCP 处理器
func NewHandler(cfg *config.Config, finder SourceFinder, searcher RawSearcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		config:   cfg,
		finder:   finder,
		searcher: searcher,
		logger:   logger,
	}
}

// HandleRequest 处理 MCP JSON-RPC 请求
func (h *Handler) HandleRequest(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	h.logger.Debug("mcp request", zap.String("method", req.Method), zap.Any("id", req.ID))

	var result any
	var rpcErr *RPCError

	switch req.Method {
	case "initialize":
		result = h.handleInitialize()
	case "notifications/initialized":
		// 通知不需要返回结果
		return JSONRPCResponse{}
	case "tools/list":
		result = ListToolsResult{Tools: GetTools(h.config)}
	case "tools/call":
		res, err := h.handleToolsCall(ctx, req.Params)
		if err != nil {
			rpcErr = &RPCError{Code: CodeInvalidParams, Message: err.Error()}
		}
		result = res
	case "resources/list":
		result = ListResourcesResult{Resources: []any{}}
	case "prompts/list":
		result = ListPromptsResult{Prompts: []any{}}
	default:
		rpcErr = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)}
	}

	if rpcErr != nil {
		h.logger.Warn("mcp error", zap.String("method", req.Method), zap.String("error", rpcErr.Message))
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (h *Handler) handleInitialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: MCPVersion,
		Capabilities: Capability{
			Tools: ToolCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{
			Name:    h.config.MCP.ServerName,
			Version: h.config.MCP.ServerVersion,
		},
	}
}

func (h *Handler) handleToolsCall(ctx context.Context, params any) (*CallToolResult, error) {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	var callParams CallToolParams
	if err := json.Unmarshal(paramsBytes, &callParams); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	h.logger.Info("🔧 tool call", zap.String("name", callParams.Name))

	switch callParams.Name {
	case h.config.MCP.Tools.FindSourcesName:
		return h.handleFindSources(ctx, callParams.Arguments), nil
	case h.config.MCP.Tools.SearchName:
		return h.handleSearch(ctx, callParams.Arguments), nil
	default:
		return textResult(fmt.Sprintf("Unknown tool: %s", callParams.Name), true), nil
	}
}

func (h *Handler) handleFindSources(ctx context.Context, args map[string]any) *CallToolResult {
	text, _ := args["text"].(string)
	if text == "" {
		return textResult("text is required", true)
	}

	req := sources.Request{Text: text}
	req.SourceURL, _ = args["sourceUrl"].(string)
	req.Persona, _ = args["persona"].(string)
	if size, ok := args["size"].(float64); ok {
		if size < 1 || size > 20 {
			return textResult("size must be between 1 and 20", true)
		}
		req.Size = int(size)
	}

	out, err := h.finder.Find(ctx, req)
	if errors.Is(err, sources.ErrNotConfigured) {
		return textResult("Search not configured", true)
	}
	if err != nil {
		return textResult(fmt.Sprintf("Find sources failed: %v", err), true)
	}
	return jsonResult(out)
}

func (h *Handler) handleSearch(ctx context.Context, args map[string]any) *CallToolResult {
	query, _ := args["query"].(string)
	if query == "" {
		return textResult("query is required", true)
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	provider, _ := args["provider"].(string)

	resp, err := h.searcher.Search(ctx, provider, engine.Query{Text: query, Count: limit})
	if err != nil {
		return textResult(fmt.Sprintf("Search failed: %v", err), true)
	}

	hits := resp.Hits()
	if hits == nil {
		hits = []engine.RawItem{}
	}
	return jsonResult(hits)
}

func jsonResult(v any) *CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textResult(fmt.Sprintf("Failed to format results: %v", err), true)
	}
	return textResult(string(data), false)
}
