package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"inferd/internal/provider"
	"inferd/internal/scheduler"
)

// Defaults applied by Config.Defaults when the corresponding field is unset.
const (
	DefaultAddr           = ":8080"
	DefaultLogLevel       = "info"
	DefaultModelsDir      = "~/models/llm"
	DefaultHistorySize    = 20
	DefaultMaxTurns       = 5
	DefaultMaxBodyBytes   = 8 << 20
	DefaultRequestTimeout = 2 * time.Minute
	DefaultIdleAfter      = 10 * time.Minute
)

// Duration is a time.Duration that reads "90s" style strings from every
// supported file format.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`

	Scheduler SchedulerConfig  `json:"scheduler" yaml:"scheduler" toml:"scheduler"`
	Providers []ProviderConfig `json:"providers" yaml:"providers" toml:"providers"`

	Primary       string   `json:"primary" yaml:"primary" toml:"primary"`
	FallbackOrder []string `json:"fallback_order" yaml:"fallback_order" toml:"fallback_order"`
	VisionOrder   []string `json:"vision_order" yaml:"vision_order" toml:"vision_order"`
	// VisionFallback names a provider used as the local last resort for images.
	VisionFallback string `json:"vision_fallback" yaml:"vision_fallback" toml:"vision_fallback"`

	// HistorySize is the number of conversation turns kept, counting user and
	// assistant messages separately. Odd values round up to whole exchanges.
	HistorySize int         `json:"history_size" yaml:"history_size" toml:"history_size"`
	MaxTurns    int         `json:"max_turns" yaml:"max_turns" toml:"max_turns"`
	Retry       RetryConfig `json:"retry" yaml:"retry" toml:"retry"`

	CORS           CORSConfig `json:"cors" yaml:"cors" toml:"cors"`
	MaxBodyBytes   int64      `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	RequestTimeout Duration   `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
}

type SchedulerConfig struct {
	BudgetMB  int    `json:"budget_mb" yaml:"budget_mb" toml:"budget_mb"`
	MarginMB  int    `json:"margin_mb" yaml:"margin_mb" toml:"margin_mb"`
	StatePath string `json:"state_path" yaml:"state_path" toml:"state_path"`
	// IdleSchedule is a cron spec such as "@every 1m"; empty disables the sweeper.
	IdleSchedule string       `json:"idle_schedule" yaml:"idle_schedule" toml:"idle_schedule"`
	IdleAfter    Duration     `json:"idle_after" yaml:"idle_after" toml:"idle_after"`
	Slots        []SlotConfig `json:"slots" yaml:"slots" toml:"slots"`
}

// SlotConfig overrides size and priority of a slot created for a llama provider.
type SlotConfig struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	SizeMB   int    `json:"size_mb" yaml:"size_mb" toml:"size_mb"`
	Priority string `json:"priority" yaml:"priority" toml:"priority"`
}

type ProviderConfig struct {
	ID      string   `json:"id" yaml:"id" toml:"id"`
	Kind    string   `json:"kind" yaml:"kind" toml:"kind"`
	BaseURL string   `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKeys []string `json:"api_keys" yaml:"api_keys" toml:"api_keys"`
	// APIKeyEnv lists environment variables holding additional keys.
	APIKeyEnv    []string `json:"api_key_env" yaml:"api_key_env" toml:"api_key_env"`
	Model        string   `json:"model" yaml:"model" toml:"model"`
	VisionModel  string   `json:"vision_model" yaml:"vision_model" toml:"vision_model"`
	MaxTokens    int      `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature  float32  `json:"temperature" yaml:"temperature" toml:"temperature"`
	Timeout      Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
	Capabilities []string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`

	// Llama only. Model may name a file in ModelsDir instead of ModelPath.
	ModelPath   string `json:"model_path" yaml:"model_path" toml:"model_path"`
	Slot        string `json:"slot" yaml:"slot" toml:"slot"`
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`

	MaxInflight int      `json:"max_inflight" yaml:"max_inflight" toml:"max_inflight"`
	MaxWait     Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
}

type RetryConfig struct {
	// Disabled turns off same-provider corrective retries inside the chain.
	Disabled              bool `json:"disabled" yaml:"disabled" toml:"disabled"`
	MaxRetriesPerProvider int  `json:"max_retries_per_provider" yaml:"max_retries_per_provider" toml:"max_retries_per_provider"`
	MaxTotalRetries       int  `json:"max_total_retries" yaml:"max_total_retries" toml:"max_total_retries"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" toml:"allow_credentials"`
	MaxAge           int      `json:"max_age" yaml:"max_age" toml:"max_age"`
}

// HistoryPairs converts HistorySize to (user, assistant) exchanges, rounding up.
func (c Config) HistoryPairs() int {
	if c.HistorySize <= 0 {
		return (DefaultHistorySize + 1) / 2
	}
	return (c.HistorySize + 1) / 2
}

// Defaults fills unset fields in place.
func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.Scheduler.IdleSchedule != "" && c.Scheduler.IdleAfter <= 0 {
		c.Scheduler.IdleAfter = Duration(DefaultIdleAfter)
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		if p.Kind == "llama" && p.Slot == "" {
			p.Slot = p.ID
		}
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	ids := make(map[string]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		switch {
		case strings.TrimSpace(p.ID) == "":
			errs = append(errs, fmt.Errorf("providers[%d]: empty id", i))
			continue
		case !provider.KnownKind(p.Kind):
			errs = append(errs, fmt.Errorf("provider %s: unknown kind %q (want one of %s)", p.ID, p.Kind, strings.Join(provider.Kinds, ", ")))
		}
		if _, dup := ids[p.ID]; dup {
			errs = append(errs, fmt.Errorf("provider %s: duplicate id", p.ID))
		}
		ids[p.ID] = p
		if _, ok := provider.ParseCapabilities(p.Capabilities); !ok {
			errs = append(errs, fmt.Errorf("provider %s: unknown capability in %v", p.ID, p.Capabilities))
		}
		if strings.EqualFold(p.Kind, "llama") && p.ModelPath == "" && p.Model == "" {
			errs = append(errs, fmt.Errorf("provider %s: llama needs model or model_path", p.ID))
		}
	}

	checkOrder := func(name string, order []string) {
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			if seen[id] {
				errs = append(errs, fmt.Errorf("%s: duplicate provider %s", name, id))
			}
			seen[id] = true
			if _, ok := ids[id]; !ok {
				errs = append(errs, fmt.Errorf("%s: unknown provider %s", name, id))
			}
		}
	}
	checkOrder("fallback_order", c.FallbackOrder)
	checkOrder("vision_order", c.VisionOrder)
	if c.Primary != "" {
		if _, ok := ids[c.Primary]; !ok {
			errs = append(errs, fmt.Errorf("primary: unknown provider %s", c.Primary))
		}
	}
	if c.VisionFallback != "" {
		if _, ok := ids[c.VisionFallback]; !ok {
			errs = append(errs, fmt.Errorf("vision_fallback: unknown provider %s", c.VisionFallback))
		}
	}

	slots := make(map[string]bool, len(c.Scheduler.Slots))
	for _, s := range c.Scheduler.Slots {
		if s.Name == "" {
			errs = append(errs, errors.New("scheduler.slots: empty name"))
			continue
		}
		if slots[s.Name] {
			errs = append(errs, fmt.Errorf("scheduler.slots: duplicate %s", s.Name))
		}
		slots[s.Name] = true
		if s.SizeMB < 0 {
			errs = append(errs, fmt.Errorf("scheduler.slots %s: negative size", s.Name))
		}
		if _, err := scheduler.ParsePriority(s.Priority); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.slots %s: %w", s.Name, err))
		}
	}
	if c.Scheduler.MarginMB < 0 {
		errs = append(errs, errors.New("scheduler.margin_mb: negative"))
	}
	return errors.Join(errs...)
}

// Slot returns the slot override for name, if any.
func (c *Config) Slot(name string) (SlotConfig, bool) {
	for _, s := range c.Scheduler.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return SlotConfig{}, false
}

// Keys returns the configured keys followed by non-empty ones from APIKeyEnv.
func (p ProviderConfig) Keys() []string {
	keys := append([]string(nil), p.APIKeys...)
	for _, env := range p.APIKeyEnv {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			keys = append(keys, v)
		}
	}
	return keys
}
