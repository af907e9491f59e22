package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither file, env nor flags provide a value.
const (
	DefaultAPIBaseURL = "http://localhost:8090"
	DefaultWSURL      = "ws://localhost:8090/ws"
	DefaultDBPath     = "./.heartlink"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	API     string
	WS      string
	Session string
	Config  string
	Set     map[string]bool
}

// ParseCommandFlags parses command-line flags and records which were set
// explicitly so they can win over config file and env values.
func ParseCommandFlags() Flags {
	apiPtr := flag.String("api", DefaultAPIBaseURL, "REST API base URL")
	wsPtr := flag.String("ws", DefaultWSURL, "push channel websocket URL")
	sessPtr := flag.String("session", DefaultDBPath, "session store path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{API: *apiPtr, WS: *wsPtr, Session: *sessPtr, Config: *cfgPtr, Set: set}
}

// Load reads and parses the YAML config at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays HEARTLINK_* environment variables onto cfg and reports
// whether any were used.
func ApplyEnv(cfg *Config) bool {
	used := false
	if v := os.Getenv("HEARTLINK_API_URL"); v != "" {
		cfg.API.BaseURL = v
		used = true
	}
	if v := os.Getenv("HEARTLINK_WS_URL"); v != "" {
		cfg.Realtime.URL = v
		used = true
	}
	if v := os.Getenv("HEARTLINK_SESSION_PATH"); v != "" {
		cfg.Session.Path = v
		used = true
	}
	if v := os.Getenv("HEARTLINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
		used = true
	}
	if v := os.Getenv("HEARTLINK_SEND_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sync.SendRPS = f
			used = true
		}
	}
	if v := os.Getenv("HEARTLINK_METRICS_ADDR"); v != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = v
		used = true
	}
	return used
}

// Effective is the merged runtime configuration the app boots with.
type Effective struct {
	Config *Config
	// Source records which layers contributed: "flags", "config", "env",
	// joined with "+" when several applied.
	Source string
}

// LoadEffective merges config file, env overrides and explicit flags (flags
// win) into one Effective result. A missing config file is not an error; a
// malformed one is.
func LoadEffective(flags Flags) (Effective, error) {
	sources := []string{}
	cfg, err := Load(flags.Config)
	switch {
	case err == nil:
		sources = append(sources, "config")
	case os.IsNotExist(err):
		cfg = &Config{}
	default:
		return Effective{}, err
	}

	if ApplyEnv(cfg) {
		sources = append(sources, "env")
	}

	// flags win when explicitly set
	if flags.Set["api"] || cfg.API.BaseURL == "" {
		cfg.API.BaseURL = flags.API
	}
	if flags.Set["ws"] || cfg.Realtime.URL == "" {
		cfg.Realtime.URL = flags.WS
	}
	if flags.Set["session"] || cfg.Session.Path == "" {
		cfg.Session.Path = flags.Session
	}
	if len(flags.Set) > 0 {
		sources = append(sources, "flags")
	}
	if len(sources) == 0 {
		sources = append(sources, "defaults")
	}
	return Effective{Config: cfg, Source: strings.Join(sources, "+")}, nil
}
