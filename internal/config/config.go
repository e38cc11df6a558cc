// Package config resolves fg's runtime settings from config.toml,
// FG_-prefixed environment variables, and built-in defaults, using
// viper exactly as the teacher repo does (SPEC_FULL.md §3).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize locates and loads config.toml (project .fg/config.toml,
// then user config dir, then home), binds FG_-prefixed environment
// variables over it, and sets defaults for every key fg reads.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("toml")

	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, ".fg", "config.toml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if dir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(dir, "fg", "config.toml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".fg", "config.toml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("FG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		v.WatchConfig()
		v.OnConfigChange(func(fsnotify.Event) {
			// viper re-reads the file itself; nothing else to do here
			// beyond letting the next Get* call observe the new values.
		})
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("json", false)
	v.SetDefault("debug", false)
	v.SetDefault("no_daemon", false)

	v.SetDefault("daemon.idle_timeout", "30m")
	v.SetDefault("daemon.log_max_size_mb", 10)
	v.SetDefault("daemon.log_max_backups", 3)
	v.SetDefault("daemon.log_max_age_days", 28)

	v.SetDefault("sync.cadence_active", "30s")  // accessed within last 5m
	v.SetDefault("sync.cadence_recent", "2m")   // accessed within last hour
	v.SetDefault("sync.cadence_day", "10m")     // accessed within last day
	v.SetDefault("sync.cadence_idle", "1h")     // otherwise
	v.SetDefault("sync.budget_per_hour", 900)
}

// CacheDir returns the directory fg's store, logs, socket, and
// lockfile live under: $FG_CACHE_DIR if set, else the OS user cache
// directory joined with "fg".
func CacheDir() (string, error) {
	if dir := GetString("cache_dir"); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "fg"), nil
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// WriteValue persists key=value into config.toml at path. It loads the existing file (if any) to preserve
// unrelated keys, merges in the new value, and re-encodes with
// BurntSushi/toml.
func WriteValue(path, key string, value interface{}) error {
	settings := map[string]interface{}{}
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &settings); err != nil {
			return fmt.Errorf("parse existing %s: %w", path, err)
		}
	}

	settings[key] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(settings)
}
