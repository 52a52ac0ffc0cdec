package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "chatbot.yml"

// Config models chatbot.yml.
type Config struct {
	Server struct {
		Addr          string `yaml:"addr"`
		BasePath      string `yaml:"base_path"`
		WebPort       int    `yaml:"web_port"`
		ChromeCDPPort int    `yaml:"chrome_cdp_port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	History struct {
		Size    int         `yaml:"size"`
		Backend string      `yaml:"backend"`
		Redis   RedisConfig `yaml:"redis"`
	} `yaml:"history"`
	Runner struct {
		Shell       string        `yaml:"shell"`
		Workers     int           `yaml:"workers"`
		QueueSize   int           `yaml:"queue_size"`
		SearchDelay time.Duration `yaml:"search_delay"`
		LiveSearch  bool          `yaml:"live_search"`
	} `yaml:"runner"`
	Desktop struct {
		VNCPort        int    `yaml:"vnc_port"`
		ScreenshotPath string `yaml:"screenshot_path"`
		Display        string `yaml:"display"`
		StartCommand   string `yaml:"start_command"`
	} `yaml:"desktop"`
	Health struct {
		Enabled  bool          `yaml:"enabled"`
		Schedule string        `yaml:"schedule"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"health"`
	Services Services        `yaml:"services"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig forwards event log entries to an HTTP endpoint.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Events  []string      `yaml:"events"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
	Enabled *bool         `yaml:"enabled"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// Service addresses one remote MCP service.
type Service struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Services struct {
	Time             Service `yaml:"time"`
	Browser          Service `yaml:"browser"`
	Thinking         Service `yaml:"thinking"`
	Search           Service `yaml:"search"`
	BrowserSecondary Service `yaml:"browser_secondary"`
	Memory           Service `yaml:"memory"`
	DesktopCommander Service `yaml:"desktop_commander"`
}

// NamedService pairs a service with its display name.
type NamedService struct {
	Name string
	Service
}

// All lists the services in a stable order.
func (s Services) All() []NamedService {
	return []NamedService{
		{"time", s.Time},
		{"playwright", s.Browser},
		{"sequentialthinking", s.Thinking},
		{"duckduckgo", s.Search},
		{"puppeteer", s.BrowserSecondary},
		{"memory", s.Memory},
		{"desktop-commander", s.DesktopCommander},
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config.server.addr is required")
	}
	if c.History.Size <= 0 {
		return errors.New("config.history.size must be positive")
	}
	switch c.History.Backend {
	case "memory":
	case "redis":
		if c.History.Redis.Addr == "" {
			return errors.New("config.history.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config.history.backend must be memory or redis, got %q", c.History.Backend)
	}
	if c.Runner.Shell == "" {
		return errors.New("config.runner.shell is required")
	}
	if c.Runner.Workers <= 0 {
		return errors.New("config.runner.workers must be positive")
	}
	if c.Runner.QueueSize <= 0 {
		return errors.New("config.runner.queue_size must be positive")
	}
	if c.Runner.SearchDelay < 0 {
		return errors.New("config.runner.search_delay must not be negative")
	}
	if c.Health.Enabled && c.Health.Schedule == "" {
		return errors.New("config.health.schedule is required when health checks are enabled")
	}
	for _, svc := range c.Services.All() {
		if svc.BaseURL == "" {
			return fmt.Errorf("config.services.%s.base_url is required", svc.Name)
		}
		u, err := url.Parse(svc.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.services.%s.base_url %q is not an http(s) url", svc.Name, svc.BaseURL)
		}
		if svc.Timeout <= 0 {
			return fmt.Errorf("config.services.%s.timeout must be positive", svc.Name)
		}
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url %q is not an http(s) url", i, hook.URL)
		}
		if hook.Timeout < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout must not be negative", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from an explicit path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with chatbot config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional reads the workspace config, falling back to defaults when the file is absent.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses raw YAML on top of the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config yaml: %w", err)
		}
	}
	cfg.Server.BasePath = normalizeBasePath(cfg.Server.BasePath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

const defaultTemplate = `server:
  addr: ":8000"
  base_path: /api
  web_port: 5173
  chrome_cdp_port: 9222

log:
  level: info
  pretty: false

history:
  size: 50
  backend: memory
  redis:
    addr: localhost:6379
    db: 0
    key: chatbot:history

runner:
  shell: /bin/sh
  workers: 4
  queue_size: 64
  search_delay: 1s
  live_search: false

desktop:
  vnc_port: 5900
  screenshot_path: /tmp/screenshot.png
  display: ":1"
  start_command: startxfce4

health:
  enabled: true
  schedule: "@every 30s"
  timeout: 2s

services:
  time:
    base_url: http://localhost:8001
    timeout: 10s
  browser:
    base_url: http://localhost:8002
    timeout: 30s
  thinking:
    base_url: http://localhost:8003
    timeout: 10s
  search:
    base_url: http://localhost:8004
    timeout: 10s
  browser_secondary:
    base_url: http://localhost:8005
    timeout: 30s
  memory:
    base_url: http://localhost:8006
    timeout: 10s
  desktop_commander:
    base_url: http://localhost:8007
    timeout: 10s

# webhooks:
#   - url: https://example.com/hooks/chatbot
#     events: [todo.created, action.finished]
#     secret: change-me
#     timeout: 5s
`
