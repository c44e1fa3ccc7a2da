package mcp

import (
	"github.com/cliffyan/go-source-finder/internal/config"
)

func intPtr(v int) *int { return &v }

// GetTools 获取所有 MCP 工具定义
func GetTools(cfg *config.Config) []Tool {
	return []Tool{
		{
			Name:        cfg.MCP.Tools.FindSourcesName,
			Description: cfg.MCP.Tools.FindSourcesDescription,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"text": {
						Type:        "string",
						Description: "The claim text to find supporting sources for",
					},
					"sourceUrl": {
						Type:        "string",
						Description: "URL the claim was taken from; its page title seeds the queries and its site is excluded",
					},
					"persona": {
						Type:        "string",
						Description: "Optional persona of the requester",
					},
					"size": {
						Type:        "number",
						Description: "Number of sources wanted (default 5, at most 10 are returned)",
						Default:     cfg.Search.DefaultSize,
						Minimum:     intPtr(1),
						Maximum:     intPtr(20),
					},
				},
				Required: []string{"text"},
			},
		},
		{
			Name:        cfg.MCP.Tools.SearchName,
			Description: cfg.MCP.Tools.SearchDescription,
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]Property{
					"query": {
						Type:        "string",
						Description: "The search query string",
					},
					"limit": {
						Type:        "number",
						Description: "Maximum number of results to return (default: 10)",
						Default:     10,
					},
					"provider": {
						Type:        "string",
						Description: "Search provider to use. Defaults to the configured provider.",
						Enum:        config.ValidProviders,
					},
				},
				Required: []string{"query"},
			},
		},
	}
}
