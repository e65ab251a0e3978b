package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/probelink/probelink/internal/bridge"
	"github.com/probelink/probelink/internal/journal"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration, merged from flags and an optional
// YAML file. A flag set explicitly on the command line wins over the file.
type Config struct {
	MainAddr    string
	ClientAddr  string
	MetricsAddr string

	ConfigFile string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JournalKeep   int

	AcceptRate  int
	AcceptBurst int

	LogFile string
	PIDFile string
	Debug   bool
}

var cfg Config

// init registers flags into the global flag set; main() parses and uses cfg.
func init() {
	flag.StringVar(&cfg.MainAddr, "main", bridge.DefaultMainAddr, "listen address for the probe (main) side")
	flag.StringVar(&cfg.ClientAddr, "client", bridge.DefaultClientAddr, "listen address for the debugger (client) side")
	flag.StringVar(&cfg.MetricsAddr, "metrics", ":9100", "metrics and status listen address; empty disables")
	flag.StringVar(&cfg.ConfigFile, "config", "", "optional YAML config file")
	flag.StringVar(&cfg.RedisAddr, "redis", "", "redis address for the session journal; empty keeps it in memory")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "redis database number")
	flag.IntVar(&cfg.JournalKeep, "journal-keep", journal.DefaultKeep, "finished sessions retained in the journal")
	flag.IntVar(&cfg.AcceptRate, "accept-rate", 25, "accepted connections per second per port; 0 disables throttling")
	flag.IntVar(&cfg.AcceptBurst, "accept-burst", 50, "accept burst headroom per port")
	flag.StringVar(&cfg.LogFile, "log", "", "append logs to this file instead of stdout")
	flag.StringVar(&cfg.PIDFile, "pid", "", "write the process id to this file")
	flag.BoolVar(&cfg.Debug, "debug", false, "enable debug logs")
}

// fileConfig is the YAML form of Config. Fields are pointers so an absent
// key and an explicit zero value ("accept_rate: 0" disables throttling,
// "metrics: \"\"" disables the status server) stay distinguishable.
type fileConfig struct {
	Main          *string `yaml:"main"`
	Client        *string `yaml:"client"`
	Metrics       *string `yaml:"metrics"`
	Redis         *string `yaml:"redis"`
	RedisPassword *string `yaml:"redis_password"`
	RedisDB       *int    `yaml:"redis_db"`
	JournalKeep   *int    `yaml:"journal_keep"`
	AcceptRate    *int    `yaml:"accept_rate"`
	AcceptBurst   *int    `yaml:"accept_burst"`
	Log           *string `yaml:"log"`
	PID           *string `yaml:"pid"`
	Debug         *bool   `yaml:"debug"`
}

// loadConfigFile merges file values into cfg, skipping any flag the user set
// explicitly. Call after flag.Parse.
func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyStr := func(name string, dst *string, v *string) {
		if v != nil && !set[name] {
			*dst = *v
		}
	}
	applyInt := func(name string, dst *int, v *int) {
		if v != nil && !set[name] {
			*dst = *v
		}
	}

	applyStr("main", &cfg.MainAddr, fc.Main)
	applyStr("client", &cfg.ClientAddr, fc.Client)
	applyStr("metrics", &cfg.MetricsAddr, fc.Metrics)
	applyStr("redis", &cfg.RedisAddr, fc.Redis)
	applyStr("redis-password", &cfg.RedisPassword, fc.RedisPassword)
	applyInt("redis-db", &cfg.RedisDB, fc.RedisDB)
	applyInt("journal-keep", &cfg.JournalKeep, fc.JournalKeep)
	applyInt("accept-rate", &cfg.AcceptRate, fc.AcceptRate)
	applyInt("accept-burst", &cfg.AcceptBurst, fc.AcceptBurst)
	applyStr("log", &cfg.LogFile, fc.Log)
	applyStr("pid", &cfg.PIDFile, fc.PID)
	if fc.Debug != nil && !set["debug"] {
		cfg.Debug = *fc.Debug
	}
	return nil
}
