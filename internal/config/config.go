package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Rotation    RotationConfig            `json:"rotation"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

// Candidate is one entry of the model rotation priority list.
type Candidate struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type RotationConfig struct {
	// CooldownSeconds is how long a quota-exhausted model is skipped.
	CooldownSeconds int         `json:"cooldown_seconds"`
	Candidates      []Candidate `json:"candidates"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type BasicConfig struct {
	ServerAddress      string `json:"server_address"`
	UploadDir          string `json:"upload_dir"`
	ModifiedDir        string `json:"modified_dir"`
	MaxUploadBytes     int64  `json:"max_upload_bytes"`
	SessionTTL         int    `json:"session_ttl_minutes"`
	CleanInterval      int    `json:"clean_interval_minutes"`
	MinWorkers         int    `json:"min_workers"`
	MaxWorkers         int    `json:"max_workers"`
	QueueSize          int    `json:"queue_size"`
	WorkerIdleTimeout  int    `json:"worker_idle_timeout_minutes"`
	SofficePath        string `json:"soffice_path"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
}

// API keys may come from the environment instead of the config file.
var providerKeyEnv = map[string]string{
	"gemini": "GEMINI_API_KEY",
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	baseDir := filepath.Dir(absPath)
	cfg.BasicConfig.UploadDir = resolvePath(baseDir, cfg.BasicConfig.UploadDir)
	cfg.BasicConfig.ModifiedDir = resolvePath(baseDir, cfg.BasicConfig.ModifiedDir)
	for name, db := range cfg.Databases {
		if db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(baseDir, db.DSN)
			cfg.Databases[name] = db
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.UploadDir == "" {
		c.BasicConfig.UploadDir = "./data/uploads"
	}
	if c.BasicConfig.ModifiedDir == "" {
		c.BasicConfig.ModifiedDir = "./data/modified"
	}
	if c.BasicConfig.MaxUploadBytes <= 0 {
		c.BasicConfig.MaxUploadBytes = 16 << 20
	}
	if c.BasicConfig.SofficePath == "" {
		c.BasicConfig.SofficePath = "soffice"
	}
	if c.BasicConfig.SessionTTL <= 0 {
		c.BasicConfig.SessionTTL = 60
	}
	if c.BasicConfig.CleanInterval <= 0 {
		c.BasicConfig.CleanInterval = 10
	}
	if c.BasicConfig.MinWorkers <= 0 {
		c.BasicConfig.MinWorkers = 2
	}
	if c.BasicConfig.MaxWorkers < c.BasicConfig.MinWorkers {
		c.BasicConfig.MaxWorkers = c.BasicConfig.MinWorkers * 4
	}
	if c.BasicConfig.QueueSize <= 0 {
		c.BasicConfig.QueueSize = 32
	}
	if c.BasicConfig.WorkerIdleTimeout <= 0 {
		c.BasicConfig.WorkerIdleTimeout = 5
	}
	if c.Databases == nil {
		c.Databases = map[string]DatabaseConfig{}
	}
	if _, ok := c.Databases["sqlite3"]; !ok {
		c.Databases["sqlite3"] = DatabaseConfig{DSN: "./data/cvtailor.db"}
	}
	if c.Rotation.CooldownSeconds <= 0 {
		c.Rotation.CooldownSeconds = 300
	}
	if len(c.Rotation.Candidates) == 0 {
		c.Rotation.Candidates = []Candidate{
			{Provider: "gemini", Model: "gemini-2.5-flash"},
			{Provider: "gemini", Model: "gemini-2.5-pro"},
			{Provider: "gemini", Model: "gemini-2.0-flash"},
		}
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	for _, cand := range c.Rotation.Candidates {
		if _, ok := c.Providers[cand.Provider]; !ok {
			c.Providers[cand.Provider] = ProviderConfig{}
		}
	}
}

func (c *Config) applyEnvOverrides() {
	for provider, envKey := range providerKeyEnv {
		prov, ok := c.Providers[provider]
		if !ok || prov.APIKey != "" {
			continue
		}
		if key := os.Getenv(envKey); key != "" {
			prov.APIKey = key
			c.Providers[provider] = prov
		}
	}
}

// Validate reports configuration problems that would only surface at request time.
func (c *Config) Validate() error {
	for _, cand := range c.Rotation.Candidates {
		if cand.Provider == "" || cand.Model == "" {
			return fmt.Errorf("rotation candidate needs both provider and model")
		}
		if _, ok := c.Providers[cand.Provider]; !ok {
			return fmt.Errorf("rotation candidate references unknown provider %s", cand.Provider)
		}
	}
	return nil
}

func resolvePath(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
