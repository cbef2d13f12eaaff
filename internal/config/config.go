package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrMissingAPIKey = errors.New("API key not found in environment variables")

// Config holds every tunable of the chat. Values come from an optional YAML
// file and CLI flags, the API key only ever comes from the environment.
type Config struct {
	Backend     string `yaml:"backend"` // groq, openai or llama
	BaseURL     string `yaml:"baseURL"`
	Model       string `yaml:"model"`
	Prompt      string `yaml:"prompt"`
	RateLimit   int    `yaml:"rateLimit"` // requests per minute, 0 disables
	LlamaServer string `yaml:"llamaServer"`
	LlamaSeed   int    `yaml:"llamaSeed"`

	Listen         string        `yaml:"listen"`
	MaxUploadMB    int           `yaml:"maxUploadMB"`
	UploadTimeout  time.Duration `yaml:"uploadTimeout"`
	SessionIdle    time.Duration `yaml:"sessionIdle"`
	RequestTimeout time.Duration `yaml:"requestTimeout"` // 0 leaves the HTTP client default
	HistoryDB      string        `yaml:"historyDB"`      // empty disables the extraction history

	APIKey string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Backend:       "groq",
		Listen:        "localhost:8000",
		MaxUploadMB:   5,
		UploadTimeout: 180 * time.Second,
		SessionIdle:   30 * time.Minute,
		RateLimit:     30,
		LlamaSeed:     385480504,
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s - %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s - %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("maxUploadMB must be positive, got %d", c.MaxUploadMB)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("uploadTimeout must be positive, got %s", c.UploadTimeout)
	}
	if c.SessionIdle <= 0 {
		return fmt.Errorf("sessionIdle must be positive, got %s", c.SessionIdle)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rateLimit can't be negative, got %d", c.RateLimit)
	}
	return nil
}

// MaxUploadSize is the upload ceiling in bytes.
func (c *Config) MaxUploadSize() int64 {
	return int64(c.MaxUploadMB) << 20
}

// APIKeyEnv names the environment variable holding the backend's key, or
// "" when the backend needs none.
func (c *Config) APIKeyEnv() string {
	switch c.Backend {
	case "groq":
		return "GROQ_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	}
	return ""
}

// LoadAPIKey reads the backend's API key from the environment, after loading
// envFiles (default ".env") if they exist. Variables already set in the
// environment win over the files.
func (c *Config) LoadAPIKey(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s - %w", f, err)
		}
	}

	env := c.APIKeyEnv()
	if env == "" {
		return nil
	}
	c.APIKey = os.Getenv(env)
	if c.APIKey == "" {
		return fmt.Errorf("%s %w", env, ErrMissingAPIKey)
	}
	return nil
}
