package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// Env is "dev" or "prod"; dev seeds a starter principal set.
	Env    string `yaml:"env"`
	DBPath string `yaml:"db_path"`

	RegistryPath string `yaml:"registry_path"`

	// TimezoneOffsetHours pins every validity-window decision and log
	// timestamp to one fixed offset, independent of the host zone.
	TimezoneOffsetHours int `yaml:"timezone_offset_hours"`

	// LogRetentionDays is the rolling log's horizon: records older than
	// this are overwritten in place by new writes.
	LogRetentionDays   int `yaml:"log_retention_days"`
	SweepIntervalHours int `yaml:"sweep_interval_hours"`

	DeviceTimeoutSeconds int `yaml:"device_timeout_seconds"`
	OpenPulseSeconds     int `yaml:"open_pulse_seconds"`

	MainDevice         string `yaml:"main_device"`
	ExitEvidenceDevice string `yaml:"exit_evidence_device"`
	ExitUser           string `yaml:"exit_user"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

func Default() Config {
	return Config{
		ListenAddr:           ":8080",
		Env:                  "dev",
		DBPath:               "./data/gatehouse.db",
		RegistryPath:         "./config/devices.json",
		TimezoneOffsetHours:  9,
		LogRetentionDays:     30,
		SweepIntervalHours:   6,
		DeviceTimeoutSeconds: 20,
		OpenPulseSeconds:     1,
		MainDevice:           "main",
		ExitEvidenceDevice:   "sub1",
		ExitUser:             "gatecam",
		LogLevel:             "info",
	}
}

// Load merges defaults, the YAML file at path (optional when path is
// empty), and GATEHOUSE_* environment overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	if cfg.LogRetentionDays < 0 {
		cfg.LogRetentionDays = 0
	}
	if cfg.DeviceTimeoutSeconds <= 0 {
		cfg.DeviceTimeoutSeconds = 20
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ListenAddr = getenvDefault("GATEHOUSE_LISTEN_ADDR", c.ListenAddr)
	c.Env = strings.ToLower(getenvDefault("GATEHOUSE_ENV", c.Env))
	c.DBPath = getenvDefault("GATEHOUSE_DB_PATH", c.DBPath)
	c.RegistryPath = getenvDefault("GATEHOUSE_REGISTRY_PATH", c.RegistryPath)
	c.TimezoneOffsetHours = getenvInt("GATEHOUSE_TZ_OFFSET_HOURS", c.TimezoneOffsetHours)
	c.LogRetentionDays = getenvInt("GATEHOUSE_LOG_RETENTION_DAYS", c.LogRetentionDays)
	c.SweepIntervalHours = getenvInt("GATEHOUSE_SWEEP_INTERVAL_HOURS", c.SweepIntervalHours)
	c.DeviceTimeoutSeconds = getenvInt("GATEHOUSE_DEVICE_TIMEOUT_SECONDS", c.DeviceTimeoutSeconds)
	c.OpenPulseSeconds = getenvInt("GATEHOUSE_OPEN_PULSE_SECONDS", c.OpenPulseSeconds)
	c.MainDevice = getenvDefault("GATEHOUSE_MAIN_DEVICE", c.MainDevice)
	c.ExitEvidenceDevice = getenvDefault("GATEHOUSE_EXIT_EVIDENCE_DEVICE", c.ExitEvidenceDevice)
	c.ExitUser = getenvDefault("GATEHOUSE_EXIT_USER", c.ExitUser)
	c.LogLevel = getenvDefault("GATEHOUSE_LOG_LEVEL", c.LogLevel)
	if v := os.Getenv("GATEHOUSE_LOG_JSON"); v != "" {
		c.LogJSON = strings.EqualFold(v, "true") || v == "1"
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
