package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Model      ModelConfig      `toml:"model"`
	UI         UIConfig         `toml:"ui"`
	Playground PlaygroundConfig `toml:"playground"`
	Dispatch   DispatchConfig   `toml:"dispatch"`
	Yahoo      YahooConfig      `toml:"yahoo"`
	Web        WebConfig        `toml:"web"`
	Trace      TraceConfig      `toml:"trace"`

	// Path is the file the config was read from, empty when only defaults apply.
	Path string `toml:"-"`
}

type ModelConfig struct {
	Provider string `toml:"provider" validate:"required,oneof=groq openai"`
	ID       string `toml:"id" validate:"required"`
	BaseURL  string `toml:"base_url" validate:"omitempty,url"`
}

type UIConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type PlaygroundConfig struct {
	Addr           string        `toml:"addr" validate:"required"`
	ReloadInterval time.Duration `toml:"reload_interval" validate:"gt=0"`
}

type DispatchConfig struct {
	Timeout time.Duration `toml:"timeout" validate:"gt=0"`
}

type YahooConfig struct {
	BaseURL           string  `toml:"base_url" validate:"required,url"`
	CookieURL         string  `toml:"cookie_url" validate:"required,url"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
	NewsCount         int     `toml:"news_count" validate:"gte=1,lte=20"`
}

type WebConfig struct {
	SearchCount  int           `toml:"search_count" validate:"gte=1,lte=20"`
	FetchTimeout time.Duration `toml:"fetch_timeout" validate:"gt=0"`
}

type TraceConfig struct {
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
}

func (t TraceConfig) Enabled() bool { return t.Endpoint != "" }

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider: "groq",
			ID:       "llama-3.3-70b-versatile",
			BaseURL:  "https://api.groq.com/openai/v1",
		},
		UI: UIConfig{
			Addr: ":8501",
		},
		Playground: PlaygroundConfig{
			Addr:           ":7777",
			ReloadInterval: 2 * time.Second,
		},
		Dispatch: DispatchConfig{
			Timeout: 2 * time.Minute,
		},
		Yahoo: YahooConfig{
			BaseURL:           "https://query1.finance.yahoo.com",
			CookieURL:         "https://fc.yahoo.com",
			RequestsPerSecond: 2,
			NewsCount:         5,
		},
		Web: WebConfig{
			SearchCount:  5,
			FetchTimeout: 30 * time.Second,
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path means the
// user config directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, &ConfigurationError{Err: fmt.Errorf("decoding %s: %w", path, err)}
		}
		cfg.Path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &ConfigurationError{Err: fmt.Errorf("invalid config: %w", err)}
	}
	return nil
}

func DefaultPath() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "finagent", "config.toml")
}
