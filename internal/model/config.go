package model

import "time"

// Config holds the complete claimsort configuration.
// It is built explicitly by the CLI layer and injected into the pipeline;
// nothing in the core reads ambient state.
type Config struct {
	Source       SourceConfig      `yaml:"source" mapstructure:"source"`
	Destination  DestinationConfig `yaml:"destination" mapstructure:"destination"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Match        MatchConfig       `yaml:"match" mapstructure:"match"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
}

// SourceConfig identifies where unprocessed documents are picked up
type SourceConfig struct {
	URL           string `yaml:"url" mapstructure:"url"`                         // Inbox location (path, file://, s3://...)
	MinTextLength int    `yaml:"min_text_length" mapstructure:"min_text_length"` // Below this, a document is skipped as text-absent
}

// DestinationConfig identifies where claim groupings live
type DestinationConfig struct {
	URL string `yaml:"url" mapstructure:"url"` // Root location for claim groupings
}

// LLMConfig holds the language-model service settings
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`     // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`           // Model name (provider-specific)
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`       // Credential (prefer env vars)
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`     // Custom endpoint (e.g. Ollama)
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"`       // Per-call timeout, seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"` // Response length cap

	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// MatchConfig controls claim clustering
type MatchConfig struct {
	WindowDays      int `yaml:"window_days" mapstructure:"window_days"`           // Tolerance window around a claim's anchor date
	CandidateLabels int `yaml:"candidate_labels" mapstructure:"candidate_labels"` // Known labels offered to the model as a naming bias
	MaxPromptChars  int `yaml:"max_prompt_chars" mapstructure:"max_prompt_chars"` // Raw-text prefix submitted to the model
}

// CacheConfig controls the extraction-result cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// RateLimitConfig paces outbound model calls
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// OutputConfig controls CLI reporting
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			URL:           "./inbox",
			MinTextLength: 40,
		},
		Destination: DestinationConfig{
			URL: "./claims",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   60,
			MaxTokens: 800,
		},
		Match: MatchConfig{
			WindowDays:      14,
			CandidateLabels: 5,
			MaxPromptChars:  2500,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Output: OutputConfig{},
	}
}

func defaultCacheDir() string {
	return ".claimsort-cache"
}
