package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode   `yaml:"mode"`
	HTTPAddr string `yaml:"http_addr"`

	DBDriver string `yaml:"db_driver"` // sqlite|postgres|memory
	DBDSN    string `yaml:"db_dsn"`

	AuthSecret string `yaml:"auth_secret"`

	EnrollGraceMinutes int `yaml:"enroll_grace_minutes"`

	CORSOriginsOnline  []string `yaml:"cors_origins_online"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline"`
}

// FromEnv builds configuration from the environment, optionally
// overlaid by a YAML file named in CONFIG_FILE. Env wins over file. A
// CONFIG_FILE that cannot be opened or parsed is an error, not a silent
// fallback to defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Mode:               ModeOffline,
		HTTPAddr:           ":8080",
		DBDriver:           "sqlite",
		AuthSecret:         "supersecret-dev-key",
		EnrollGraceMinutes: 15,
		CORSOriginsOnline:  []string{"https://app.classware.io"},
		CORSOriginsOffline: []string{"http://localhost:3000"},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if v := os.Getenv("MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("AUTH_HMAC_SECRET"); v != "" {
		cfg.AuthSecret = v
	}
	if v := os.Getenv("ENROLL_GRACE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EnrollGraceMinutes = n
		}
	}
	if v := os.Getenv("CORS_ORIGINS_ONLINE"); v != "" {
		cfg.CORSOriginsOnline = csv(v)
	}
	if v := os.Getenv("CORS_ORIGINS_OFFLINE"); v != "" {
		cfg.CORSOriginsOffline = csv(v)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return yaml.NewDecoder(f).Decode(c)
}

// CORSOrigins picks the origin list for the active mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
