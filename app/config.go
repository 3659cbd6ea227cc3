// Package app loads configuration and assembles the prediction services.
package app

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"churnform/logging"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Model struct {
		Type      string `yaml:"type"`
		Path      string `yaml:"path"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"model"`
	Reference struct {
		Path    string `yaml:"path"`
		Charset string `yaml:"charset"`
	} `yaml:"reference"`
	Schema struct {
		Categories map[string][]string `yaml:"categories"`
	} `yaml:"schema"`
	Feedback struct {
		Path string `yaml:"path"`
	} `yaml:"feedback"`
	Log logging.Config `yaml:"log"`
}

// DefaultConfig matches the file names the form has always used.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Http.Port = 8501
	cfg.Http.Timeout = 30 * time.Second
	cfg.Model.Path = "churn_model.json"
	cfg.Model.CacheSize = 1024
	cfg.Reference.Path = "final_telco.csv"
	cfg.Reference.Charset = "utf-8"
	cfg.Feedback.Path = "feedback_data.csv"
	cfg.Log.Level = "info"
	return cfg
}

// LoadConfig decodes path over DefaultConfig. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogLevelFrom reads only the log level; it feeds the config watcher.
func LogLevelFrom(path string) (string, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return "", err
	}
	return cfg.Log.Level, nil
}

func (c *Config) validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if c.Http.Timeout <= 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Feedback.Path == "" {
		return errors.New("feedback.path is required")
	}
	if c.Model.CacheSize < 0 {
		c.Model.CacheSize = 0
	}
	return nil
}
