package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Settings is the server configuration, loaded from LSCLEAR_* environment
// variables with an optional YAML override file on top.
type Settings struct {
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8000"`
	DataPath     string `envconfig:"DATA_PATH" default:"./data"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"./data/lsclear.db"`
	LogPath      string `envconfig:"LOG_PATH" default:"./data/lsclear.log"`
	ConfigFile   string `envconfig:"CONFIG_FILE" default:""`

	// Terminal session settings
	ShellCommand   string `envconfig:"SHELL_COMMAND" default:"/bin/bash"`
	IdleTimeout    string `envconfig:"IDLE_TIMEOUT" default:"15m"`
	SpawnTimeout   string `envconfig:"SPAWN_TIMEOUT" default:"10s"`
	TerminateGrace string `envconfig:"TERMINATE_GRACE" default:"5s"`
	MaxSessions    int    `envconfig:"MAX_SESSIONS" default:"100"`
	ScrollbackSize int    `envconfig:"SCROLLBACK_SIZE" default:"262144"`
	SweepInterval  string `envconfig:"SWEEP_INTERVAL" default:"1m"`
}

// FileOverrides is the shape of the optional YAML config file. Only
// non-zero fields override the environment values.
type FileOverrides struct {
	ListenAddr   string `yaml:"listen_addr"`
	ShellCommand string `yaml:"shell_command"`
	IdleTimeout  string `yaml:"idle_timeout"`
	MaxSessions  int    `yaml:"max_sessions"`
}

var Cfg Settings

// Load populates Cfg from the environment and, when LSCLEAR_CONFIG_FILE
// is set, merges the YAML overrides. Fatal on malformed input.
func Load() {
	if err := envconfig.Process("LSCLEAR", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if Cfg.ConfigFile != "" {
		if err := ApplyFile(Cfg.ConfigFile); err != nil {
			log.Fatalf("failed to load config file %s: %v", Cfg.ConfigFile, err)
		}
	}
}

// ApplyFile merges a YAML override file into Cfg.
func ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	var ov FileOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if ov.ListenAddr != "" {
		Cfg.ListenAddr = ov.ListenAddr
	}
	if ov.ShellCommand != "" {
		Cfg.ShellCommand = ov.ShellCommand
	}
	if ov.IdleTimeout != "" {
		Cfg.IdleTimeout = ov.IdleTimeout
	}
	if ov.MaxSessions > 0 {
		Cfg.MaxSessions = ov.MaxSessions
	}
	return nil
}

// Duration parses a duration-valued setting, falling back when unset or
// malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("WARNING: invalid duration %q, using %s", value, fallback)
		return fallback
	}
	return d
}
