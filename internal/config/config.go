// Package config loads settings from defaults, a YAML file, MPRISREMOTE_*
// environment variables and command-line flags, in rising precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppName names the config directory and env prefix.
const AppName = "mprisremote"

// Config holds all application configuration
type Config struct {
	Server struct {
		Listen         string `mapstructure:"listen"`
		PollIntervalMs int    `mapstructure:"poll_interval_ms"`
		StopTimeoutMs  int    `mapstructure:"stop_timeout_ms"`
		PushStatus     bool   `mapstructure:"push_status"`
		ReadBuffer     int    `mapstructure:"read_buffer"`
	} `mapstructure:"server"`
	Backend struct {
		Driver      string `mapstructure:"driver"`
		MPDAddress  string `mapstructure:"mpd_address"`
		MPDPassword string `mapstructure:"mpd_password"`
	} `mapstructure:"backend"`
	Preference struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"preference"`
	Format struct {
		ArtistSeparator string `mapstructure:"artist_separator"`
	} `mapstructure:"format"`
	Client struct {
		PollIntervalMs   int    `mapstructure:"poll_interval_ms"`
		ClearDelayMs     int    `mapstructure:"clear_delay_ms"`
		RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`
		Color            string `mapstructure:"color"`
	} `mapstructure:"client"`
	UI struct {
		Color     string `mapstructure:"color"`
		ColorMode string `mapstructure:"color_mode"`
		MaxWidth  int    `mapstructure:"max_width"`
	} `mapstructure:"ui"`
	Artwork struct {
		Enabled      bool `mapstructure:"enabled"`
		Padding      int  `mapstructure:"padding"`
		WidthPixels  int  `mapstructure:"width_pixels"`
		WidthColumns int  `mapstructure:"width_columns"`
	} `mapstructure:"artwork"`
	Feed struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"feed"`
	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
}

// ServerPollInterval returns the status broadcast period.
func (c Config) ServerPollInterval() time.Duration {
	return time.Duration(c.Server.PollIntervalMs) * time.Millisecond
}

// ServerStopTimeout returns the bounded wait for the status task.
func (c Config) ServerStopTimeout() time.Duration {
	return time.Duration(c.Server.StopTimeoutMs) * time.Millisecond
}

// ClientPollInterval returns the client's info polling period.
func (c Config) ClientPollInterval() time.Duration {
	return time.Duration(c.Client.PollIntervalMs) * time.Millisecond
}

// ClientClearDelay returns how long a command reply stays on screen.
func (c Config) ClientClearDelay() time.Duration {
	return time.Duration(c.Client.ClearDelayMs) * time.Millisecond
}

// ClientRequestTimeout returns the per-request deadline; zero means none.
func (c Config) ClientRequestTimeout() time.Duration {
	return time.Duration(c.Client.RequestTimeoutMs) * time.Millisecond
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

// Dir returns $XDG_CONFIG_HOME/mprisremote, falling back to ~/.config/mprisremote.
func Dir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, AppName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8888")
	v.SetDefault("server.poll_interval_ms", 2000)
	v.SetDefault("server.stop_timeout_ms", 5000)
	v.SetDefault("server.push_status", false)
	v.SetDefault("server.read_buffer", 1024)
	v.SetDefault("backend.driver", "dbus")
	v.SetDefault("backend.mpd_address", "localhost:6600")
	v.SetDefault("backend.mpd_password", "")
	v.SetDefault("preference.path", filepath.Join(Dir(), "player_pref.json"))
	v.SetDefault("format.artist_separator", "")
	v.SetDefault("client.poll_interval_ms", 2000)
	v.SetDefault("client.clear_delay_ms", 5000)
	v.SetDefault("client.request_timeout_ms", 10000)
	v.SetDefault("client.color", "2")
	v.SetDefault("ui.color", "2")
	v.SetDefault("ui.color_mode", "manual")
	v.SetDefault("ui.max_width", 45)
	v.SetDefault("artwork.enabled", true)
	v.SetDefault("artwork.padding", 16)
	v.SetDefault("artwork.width_pixels", 300)
	v.SetDefault("artwork.width_columns", 13)
	v.SetDefault("feed.listen", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"listen":      "server.listen",
	"driver":      "backend.driver",
	"mpd-address": "backend.mpd_address",
	"preference":  "preference.path",
	"push-status": "server.push_status",
	"color":       "ui.color",
	"no-artwork":  "artwork.enabled",
	"feed-listen": "feed.listen",
	"log-level":   "log.level",
	"log-file":    "log.file",
}

// Loader owns the viper instance behind a SafeConfig.
type Loader struct {
	v    *viper.Viper
	safe *SafeConfig
}

// Load reads configuration. configFile overrides the XDG lookup when set.
// flags may be nil; only flags the user actually set override the file.
func Load(configFile string, flags *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := Dir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(AppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		applyFlags(v, flags)
	}

	l := &Loader{v: v, safe: &SafeConfig{}}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.safe.Set(cfg)
	return l, nil
}

// applyFlags copies explicitly set flags over the file and env values.
func applyFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if f.Name == "no-artwork" {
			v.Set(key, f.Value.String() != "true")
			return
		}
		v.Set(key, f.Value.String())
	})
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if errs := validateConfig(&cfg); len(errs) > 0 {
		printConfigWarnings(errs)
		applyDefaultsForInvalidFields(&cfg, errs)
	}
	return cfg, nil
}

// Config returns the live, thread-safe configuration.
func (l *Loader) Config() *SafeConfig { return l.safe }

// Get is shorthand for Config().Get().
func (l *Loader) Get() Config { return l.safe.Get() }

// Watch reloads the config file on change and calls onChange with the new
// snapshot. It is a no-op when no config file was found.
func (l *Loader) Watch(onChange func(Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error reloading config %s: %v\n", e.Name, err)
			return
		}
		l.safe.Set(cfg)
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}
