package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Search  SearchConfig  `yaml:"search"`
	Google  GoogleConfig  `yaml:"google"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	Browser BrowserConfig `yaml:"browser"`
	MCP     MCPConfig     `yaml:"mcp"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int        `yaml:"port"`
	Host string     `yaml:"host"`
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Origin  string `yaml:"origin"`
}

// SearchConfig 来源检索配置
type SearchConfig struct {
	Provider          string   `yaml:"provider"`
	AllowedProviders  []string `yaml:"allowed_providers"`
	TimeoutSeconds    int      `yaml:"timeout_seconds"`
	DefaultSize       int      `yaml:"default_size"`
	MaxSize           int      `yaml:"max_size"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// GoogleConfig Google Custom Search 凭据
type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	CX      string `yaml:"cx"`
	BaseURL string `yaml:"base_url"`
}

// ProxyConfig 代理配置
type ProxyConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	Enabled  bool `yaml:"enabled"`
	Headless bool `yaml:"headless"`
}

// MCPConfig MCP 协议配置
type MCPConfig struct {
	ServerName    string         `yaml:"server_name"`
	ServerVersion string         `yaml:"server_version"`
	Tools         MCPToolsConfig `yaml:"tools"`
}

// MCPToolsConfig MCP 工具名称配置
type MCPToolsConfig struct {
	FindSourcesName        string `yaml:"find_sources_name"`
	FindSourcesDescription string `yaml:"find_sources_description"`
	SearchName             string `yaml:"search_name"`
	SearchDescription      string `yaml:"search_description"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ValidProviders 有效的搜索提供方
var ValidProviders = []string{"google", "bing", "duckduckgo", "browser_bing"}

// DefaultConfig 默认配置
var DefaultConfig = Config{
	Server: ServerConfig{
		Port: 3456,
		Host: "0.0.0.0",
		CORS: CORSConfig{
			Enabled: false,
			Origin:  "*",
		},
	},
	Search: SearchConfig{
		Provider:       "google",
		TimeoutSeconds: 8,
		DefaultSize:    5,
		MaxSize:        10,
	},
	Google: GoogleConfig{
		BaseURL: "https://www.googleapis.com/customsearch/v1",
	},
	Proxy: ProxyConfig{
		Enabled: false,
		URL:     "http://127.0.0.1:7890",
	},
	Browser: BrowserConfig{
		Enabled:  false,
		Headless: true,
	},
	MCP: MCPConfig{
		ServerName:    "go-source-finder",
		ServerVersion: "1.0.0",
		Tools: MCPToolsConfig{
			FindSourcesName:        "find_sources",
			FindSourcesDescription: "Find web sources that support a claim. Takes the claim text and optionally the URL it came from; returns deduplicated results with title, url, snippet and reason.",
			SearchName:             "search",
			SearchDescription:      "Run a single raw web search query against a configured provider.",
		},
	},
	Log: LogConfig{
		Level: "info",
	},
}

var configSearchPaths = []string{
	"config.yaml",
	"config.yml",
	"configs/config.yaml",
	"configs/config.yml",
}

// Load 查找并加载配置文件，随后叠加环境变量
// 支持通过 CONFIG_FILE 环境变量指定配置文件路径。任何读取或解析失败都会回退到默认值。
func Load(logger *zap.Logger) *Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultConfig.clone()

	configPath := findConfigFile(logger)
	switch {
	case configPath == "":
		logger.Warn("⚠️ no config file found, using default configuration")
	default:
		logger.Info("📄 loading configuration", zap.String("path", configPath))
		loaded, err := LoadFromFile(configPath)
		if err != nil {
			logger.Warn("⚠️ config file unusable, using defaults", zap.Error(err))
			break
		}
		cfg = *loaded
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.validate(logger)
	cfg.Print(logger)
	return &cfg
}

// LoadFromFile 从指定路径加载配置（不叠加环境变量）
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig.clone()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	cfg.validate(zap.NewNop())
	return &cfg, nil
}

// ApplyEnv 用环境变量覆盖凭据等字段；getenv 通常为 os.Getenv
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Google.APIKey, "GOOGLE_CSE_API_KEY")
	set(&c.Google.CX, "GOOGLE_CSE_CX")
	set(&c.Google.BaseURL, "GOOGLE_CSE_BASE_URL")
	set(&c.Search.Provider, "SEARCH_PROVIDER")

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c Config) clone() Config {
	c.Search.AllowedProviders = slices.Clone(c.Search.AllowedProviders)
	return c
}

func findConfigFile(logger *zap.Logger) string {
	if envPath := os.Getenv("CONFIG_FILE"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		logger.Warn("⚠️ CONFIG_FILE not found, searching default paths", zap.String("path", envPath))
	}

	workDir, _ := os.Getwd()
	searchDirs := []string{workDir}
	if execPath, err := os.Executable(); err == nil {
		if execDir := filepath.Dir(execPath); execDir != workDir {
			searchDirs = append(searchDirs, execDir)
		}
	}

	for _, dir := range searchDirs {
		for _, name := range configSearchPaths {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// validate 验证并修正配置
func (c *Config) validate(logger *zap.Logger) {
	def := DefaultConfig

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		logger.Warn("⚠️ invalid port, using default", zap.Int("port", c.Server.Port), zap.Int("default", def.Server.Port))
		c.Server.Port = def.Server.Port
	}
	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.CORS.Origin == "" {
		c.Server.CORS.Origin = def.Server.CORS.Origin
	}

	c.Search.Provider = strings.TrimSpace(c.Search.Provider)
	if !isValidProvider(c.Search.Provider) {
		logger.Warn("⚠️ invalid search provider, falling back", zap.String("provider", c.Search.Provider), zap.String("default", def.Search.Provider))
		c.Search.Provider = def.Search.Provider
	}

	validAllowed := []string{}
	for _, p := range c.Search.AllowedProviders {
		p = strings.TrimSpace(p)
		if isValidProvider(p) {
			validAllowed = append(validAllowed, p)
		} else {
			logger.Warn("⚠️ invalid search provider ignored", zap.String("provider", p))
		}
	}
	c.Search.AllowedProviders = validAllowed

	if len(c.Search.AllowedProviders) > 0 && !slices.Contains(c.Search.AllowedProviders, c.Search.Provider) {
		logger.Warn("⚠️ provider not in allowed list", zap.String("provider", c.Search.Provider), zap.String("using", c.Search.AllowedProviders[0]))
		c.Search.Provider = c.Search.AllowedProviders[0]
	}

	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = def.Search.TimeoutSeconds
	}
	if c.Search.MaxSize < 1 || c.Search.MaxSize > 10 {
		logger.Warn("⚠️ max_size must be within [1,10], using default", zap.Int("max_size", c.Search.MaxSize))
		c.Search.MaxSize = def.Search.MaxSize
	}
	if c.Search.DefaultSize < 1 {
		c.Search.DefaultSize = def.Search.DefaultSize
	}
	if c.Search.RequestsPerSecond < 0 {
		c.Search.RequestsPerSecond = 0
	}

	if c.Google.BaseURL == "" {
		c.Google.BaseURL = def.Google.BaseURL
	}

	if c.Proxy.Enabled && c.Proxy.URL == "" {
		logger.Warn("⚠️ proxy enabled but URL is empty, using default")
		c.Proxy.URL = def.Proxy.URL
	}

	if c.MCP.ServerName == "" {
		c.MCP.ServerName = def.MCP.ServerName
	}
	if c.MCP.ServerVersion == "" {
		c.MCP.ServerVersion = def.MCP.ServerVersion
	}
	tools := &c.MCP.Tools
	if tools.FindSourcesName == "" {
		tools.FindSourcesName = def.MCP.Tools.FindSourcesName
	}
	if tools.FindSourcesDescription == "" {
		tools.FindSourcesDescription = def.MCP.Tools.FindSourcesDescription
	}
	if tools.SearchName == "" {
		tools.SearchName = def.MCP.Tools.SearchName
	}
	if tools.SearchDescription == "" {
		tools.SearchDescription = def.MCP.Tools.SearchDescription
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Print 打印配置信息；凭据只输出是否存在
func (c *Config) Print(logger *zap.Logger) {
	logger.Info("🔍 search provider",
		zap.String("provider", c.Search.Provider),
		zap.Strings("allowed", c.Search.AllowedProviders),
		zap.Bool("google_key_set", c.Google.APIKey != ""),
		zap.Bool("google_cx_set", c.Google.CX != ""),
		zap.Duration("attempt_timeout", c.AttemptTimeout()))
	if c.Proxy.Enabled {
		logger.Info("🌐 using proxy", zap.String("url", c.Proxy.URL))
	}
	if c.Server.CORS.Enabled {
		logger.Info("🔒 CORS enabled", zap.String("origin", c.Server.CORS.Origin))
	}
	logger.Info("🖥️ server address", zap.String("addr", c.Addr()))
}

// IsProviderAllowed 检查搜索提供方是否被允许使用
func (c *Config) IsProviderAllowed(name string) bool {
	if len(c.Search.AllowedProviders) == 0 {
		return isValidProvider(name)
	}
	return slices.Contains(c.Search.AllowedProviders, name)
}

// AttemptTimeout 单次外部查询的超时
func (c *Config) AttemptTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// Addr 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ProxyURL 启用代理时返回代理地址，否则为空
func (c *Config) ProxyURL() string {
	if !c.Proxy.Enabled {
		return ""
	}
	return c.Proxy.URL
}

func isValidProvider(name string) bool {
	return slices.Contains(ValidProviders, name)
}
