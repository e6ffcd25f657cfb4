package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/shelf/internal/auth"
	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/internal/server"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend       = "backend"
	cfgKeyDataDir       = "data_dir"
	cfgKeyListen        = "listen"
	cfgKeyLogLevel      = "log_level"
	cfgKeySessionMaxAge = "session_max_age"
	cfgKeyCORSOrigins   = "cors_origins"
	cfgKeyRateLimit     = "rate_limit"
	cfgKeySecureCookies = "secure_cookies"
)

// settings is the resolved content of config.yaml.
type settings struct {
	Backend       string
	DataDir       string
	Listen        string
	LogLevel      string
	SessionMaxAge time.Duration
	CORSOrigins   []string
	RateLimit     int
	SecureCookies bool
}

// configFile holds the structure written to config.yaml by init.
type configFile struct {
	Backend       string `yaml:"backend"`
	DataDir       string `yaml:"data_dir,omitempty"`
	Listen        string `yaml:"listen"`
	LogLevel      string `yaml:"log_level"`
	SessionMaxAge string `yaml:"session_max_age"`
	RateLimit     int    `yaml:"rate_limit"`
}

// loadSettings reads config.yaml from configDir using Viper. A missing
// config.yaml is not an error; defaults apply.
func loadSettings(configDir string) (settings, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyListen, server.DefaultListen)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeySessionMaxAge, auth.DefaultMaxAge)
	v.SetDefault(cfgKeyRateLimit, server.DefaultRateLimit)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	_ = v.BindEnv(cfgKeyListen, "SHELF_LISTEN")
	_ = v.BindEnv(cfgKeyLogLevel, "SHELF_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	s := settings{
		Backend:       v.GetString(cfgKeyBackend),
		DataDir:       v.GetString(cfgKeyDataDir),
		Listen:        v.GetString(cfgKeyListen),
		LogLevel:      v.GetString(cfgKeyLogLevel),
		SessionMaxAge: v.GetDuration(cfgKeySessionMaxAge),
		CORSOrigins:   v.GetStringSlice(cfgKeyCORSOrigins),
		RateLimit:     v.GetInt(cfgKeyRateLimit),
		SecureCookies: v.GetBool(cfgKeySecureCookies),
	}
	if s.SessionMaxAge <= 0 {
		return settings{}, fmt.Errorf("%s must be a positive duration", cfgKeySessionMaxAge)
	}
	return s, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. It reports whether the file was written.
func writeConfigIfMissing(configDir, dataDir string) (bool, error) {
	path := filepath.Join(configDir, paths.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	cfg := configFile{
		Backend:       types.BackendSQLite,
		DataDir:       dataDir,
		Listen:        server.DefaultListen,
		LogLevel:      "info",
		SessionMaxAge: auth.DefaultMaxAge.String(),
		RateLimit:     server.DefaultRateLimit,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# shelf configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
