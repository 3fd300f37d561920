package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	Analysis   AnalysisConfig   `json:"analysis" yaml:"analysis"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	Mock       MockConfig       `json:"mock" yaml:"mock"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// ServerConfig holds configuration for the web UI
type ServerConfig struct {
	Addr        string   `json:"addr" yaml:"addr"`
	Suggestions []string `json:"suggestions" yaml:"suggestions"`
}

// GenerationConfig selects the image backend
type GenerationConfig struct {
	Backend   string `json:"backend" yaml:"backend"` // gemini | openai | mock
	Model     string `json:"model" yaml:"model"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	ServerURL string `json:"server_url,omitempty" yaml:"server_url,omitempty"`
}

// AnalysisConfig selects the vision backend and how images are sent to it
type AnalysisConfig struct {
	Backend     string `json:"backend" yaml:"backend"` // gemini | ollama | openai | mock
	Model       string `json:"model" yaml:"model"`
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	ServerURL   string `json:"server_url,omitempty" yaml:"server_url,omitempty"`
	MaxImageDim int    `json:"max_image_dim" yaml:"max_image_dim"`
	SendFormat  string `json:"send_format" yaml:"send_format"`
	SendQuality int    `json:"send_quality" yaml:"send_quality"`
}

// SessionConfig holds timing for the interactive session
type SessionConfig struct {
	PhraseInterval Duration `json:"phrase_interval" yaml:"phrase_interval"`
	CallTimeout    Duration `json:"call_timeout" yaml:"call_timeout"`
}

// MockConfig tunes the offline backend
type MockConfig struct {
	Latency        Duration `json:"latency" yaml:"latency"`
	FailGeneration string   `json:"fail_generation,omitempty" yaml:"fail_generation,omitempty"`
	FailAnalysis   string   `json:"fail_analysis,omitempty" yaml:"fail_analysis,omitempty"`
}

// OutputConfig holds configuration for files written by the CLI
type OutputConfig struct {
	DefaultFormat string `json:"default_format" yaml:"default_format"`
	OutputDir     string `json:"output_dir" yaml:"output_dir"`
	Quality       int    `json:"quality" yaml:"quality"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug | info | warn | error
	Format string `json:"format" yaml:"format"` // text | json
}

// Duration is a time.Duration written as "2.5s" in config files
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

var (
	generationBackends = []string{"gemini", "openai", "mock"}
	analysisBackends   = []string{"gemini", "ollama", "openai", "mock"}
)

// DefaultSuggestions are offered on the empty search page
var DefaultSuggestions = []string{
	"Anatomy of a Dragon",
	"How a Volcano Erupts",
	"The Water Cycle",
	"Inside a Honeybee Hive",
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			Suggestions: append([]string(nil), DefaultSuggestions...),
		},
		Generation: GenerationConfig{
			Backend: "gemini",
			Model:   "gemini-2.5-flash-image",
		},
		Analysis: AnalysisConfig{
			Backend:     "gemini",
			Model:       "gemini-2.5-flash",
			MaxImageDim: 1024,
			SendFormat:  "jpg",
			SendQuality: 85,
		},
		Session: SessionConfig{
			PhraseInterval: Duration(2500 * time.Millisecond),
			CallTimeout:    Duration(3 * time.Minute),
		},
		Mock: MockConfig{
			Latency: Duration(1500 * time.Millisecond),
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			OutputDir:     "./output",
			Quality:       90,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file; keys missing
// from the file keep their default values
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isJSON(filename) {
		err = json.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// SaveToFile saves configuration as YAML, or JSON for a .json filename
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isJSON(filename) {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv fills empty API keys from the environment
func (c *Config) ApplyEnv() {
	c.Generation.APIKey = keyFromEnv(c.Generation.Backend, c.Generation.APIKey)
	c.Analysis.APIKey = keyFromEnv(c.Analysis.Backend, c.Analysis.APIKey)
}

func keyFromEnv(backend, current string) string {
	if current != "" {
		return current
	}
	var names []string
	switch backend {
	case "gemini":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	}
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if !contains(generationBackends, c.Generation.Backend) {
		return fmt.Errorf("generation.backend must be one of %s", strings.Join(generationBackends, ", "))
	}

	if !contains(analysisBackends, c.Analysis.Backend) {
		return fmt.Errorf("analysis.backend must be one of %s", strings.Join(analysisBackends, ", "))
	}

	if c.Generation.Backend != "mock" && c.Generation.Model == "" {
		return fmt.Errorf("generation.model cannot be empty")
	}

	if c.Analysis.Backend != "mock" && c.Analysis.Model == "" {
		return fmt.Errorf("analysis.model cannot be empty")
	}

	if c.Analysis.MaxImageDim < 0 {
		return fmt.Errorf("analysis.max_image_dim cannot be negative")
	}

	if c.Analysis.SendFormat != "jpg" && c.Analysis.SendFormat != "png" {
		return fmt.Errorf("analysis.send_format must be jpg or png")
	}

	if c.Analysis.SendQuality < 1 || c.Analysis.SendQuality > 100 {
		return fmt.Errorf("analysis.send_quality must be between 1 and 100")
	}

	if c.Session.PhraseInterval <= 0 {
		return fmt.Errorf("session.phrase_interval must be positive")
	}

	if c.Session.CallTimeout < 0 {
		return fmt.Errorf("session.call_timeout cannot be negative")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Output.DefaultFormat {
	case "jpg", "png", "webp":
	default:
		return fmt.Errorf("output.default_format must be jpg, png or webp")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "infographic-lens", "config.yaml")
}

func isJSON(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
