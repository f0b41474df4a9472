package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the zrpcd bootstrap file: listen/advertise addresses and
// middleware toggles. Read once at startup, never hot-reloaded.
type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	AdvertiseAddr string `yaml:"advertise_addr"`

	Middleware struct {
		Logging bool `yaml:"logging"`

		RateLimit struct {
			Enabled bool    `yaml:"enabled"`
			Rate    float64 `yaml:"rate"`
			Burst   int     `yaml:"burst"`
		} `yaml:"rate_limit"`

		Retry struct {
			Enabled    bool          `yaml:"enabled"`
			MaxRetries int           `yaml:"max_retries"`
			BaseDelay  time.Duration `yaml:"base_delay"`
		} `yaml:"retry"`

		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"middleware"`

	Metrics struct {
		Enabled        bool   `yaml:"enabled"`
		Addr           string `yaml:"addr"`
		RecentCapacity int    `yaml:"recent_capacity"`
	} `yaml:"metrics"`

	Etcd struct {
		Enabled   bool     `yaml:"enabled"`
		Endpoints []string `yaml:"endpoints"`
	} `yaml:"etcd"`
}

func defaultConfig() *Config {
	c := &Config{ListenAddr: ":9090", AdvertiseAddr: "127.0.0.1:9090"}
	c.Middleware.Logging = true
	c.Middleware.Timeout = 5 * time.Second
	return c
}

func loadConfig(path string) (*Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
