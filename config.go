package adbm

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the settings of the adbm command. The library itself never
// reads configuration; callers fill a Target directly.
type Config struct {
	Driver            string `mapstructure:"driver"`
	Host              string `mapstructure:"db_host"`
	Port              string `mapstructure:"db_port"`
	User              string `mapstructure:"db_user"`
	Password          string `mapstructure:"db_password"`
	AuthKey           string `mapstructure:"db_auth_key"`
	Database          string `mapstructure:"db_name"`
	Schema            string `mapstructure:"db_schema"`
	MetadataName      string `mapstructure:"metadata"`
	MigrationFilesDir string `mapstructure:"migrations_dir"`
	LogLevel          string `mapstructure:"log_level"`
	LogFormat         string `mapstructure:"log_format"`
}

var configDefaults = map[string]any{
	"driver":         "rethinkdb",
	"db_host":        "localhost",
	"db_port":        "",
	"db_user":        "",
	"db_password":    "",
	"db_auth_key":    "",
	"db_name":        "adbm",
	"db_schema":      "public",
	"metadata":       DefaultMetadataName,
	"migrations_dir": "migrations",
	"log_level":      "info",
	"log_format":     "text",
}

// LoadConfig reads defaults, then the optional config file, then ADBM_*
// environment variables, later sources winning.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("adbm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// OpenDriver connects to the configured database.
func (c *Config) OpenDriver() (Driver, error) {
	switch strings.ToLower(c.Driver) {
	case "", "rethinkdb":
		return NewRethinkDBDriver(c.Host, c.Port, c.AuthKey, c.Database)
	case "postgres":
		port := c.Port
		if port == "" {
			port = "5432"
		}
		return NewPostgresDriver(c.Host, port, c.User, c.Password, c.Database, c.Schema)
	case "mysql":
		port := c.Port
		if port == "" {
			port = "3306"
		}
		return NewMySqlDriver(c.Host, port, c.User, c.Password, c.Database, "")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, c.Driver)
	}
}
