package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Chrome   ChromeConfig   `mapstructure:"chrome"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Replay   ReplayConfig   `mapstructure:"replay"`
	Store    StoreConfig    `mapstructure:"store"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	Charset  string `mapstructure:"charset"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type ChromeConfig struct {
	Path         string `mapstructure:"path"`
	HeadlessMode bool   `mapstructure:"headless"`
	Device       string `mapstructure:"device"`
	MaxInstances int    `mapstructure:"max_instances"`
}

type CaptureConfig struct {
	Duration time.Duration `mapstructure:"duration"`
}

type ReplayConfig struct {
	Linger       time.Duration `mapstructure:"linger"`
	InputTimeout time.Duration `mapstructure:"input_timeout"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // file, mysql
	Dir     string `mapstructure:"dir"`
}

// flagKeys maps CLI flag names onto config keys. Only flags present on the
// given flag set are bound.
var flagKeys = map[string]string{
	"log-level":     "log_level",
	"duration":      "capture.duration",
	"linger":        "replay.linger",
	"input-timeout": "replay.input_timeout",
	"headless":      "chrome.headless",
	"chrome-path":   "chrome.path",
	"device":        "chrome.device",
	"store":         "store.backend",
	"store-dir":     "store.dir",
	"port":          "server.port",
}

// NewFlagSet registers the flags shared by every command. Defaults shown in
// usage are informational; unset flags fall through to env and file values.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("log-level", "INFO", "TRACE, DEBUG, INFO, WARN or ERROR")
	fs.Bool("headless", false, "run Chrome without a window")
	fs.String("chrome-path", "", "Chrome executable, auto-detected when empty")
	fs.String("device", "", "device preset to emulate")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "INFO")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.username", "root")
	v.SetDefault("db.password", "root")
	v.SetDefault("db.name", "webreplay")
	v.SetDefault("db.charset", "utf8mb4")

	v.SetDefault("jwt.secret", "")

	v.SetDefault("chrome.path", "")
	v.SetDefault("chrome.headless", false)
	v.SetDefault("chrome.device", "")
	v.SetDefault("chrome.max_instances", 4)

	v.SetDefault("capture.duration", 100*time.Second)

	v.SetDefault("replay.linger", 10*time.Second)
	v.SetDefault("replay.input_timeout", 5*time.Second)

	v.SetDefault("store.backend", "file")
	v.SetDefault("store.dir", "./recordings")
}

// LoadConfig resolves configuration from defaults, an optional YAML file
// (WEBREPLAY_CONFIG or --config), environment variables such as
// CAPTURE_DURATION or DB_HOST, and finally CLI flags.
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := v.GetString("webreplay_config")
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Capture.Duration <= 0 {
		return fmt.Errorf("capture duration must be positive, got %s", c.Capture.Duration)
	}
	if c.Replay.Linger < 0 {
		return fmt.Errorf("replay linger must not be negative, got %s", c.Replay.Linger)
	}
	switch c.Store.Backend {
	case "file", "mysql":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}
