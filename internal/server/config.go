package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the server configuration.
type Config struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	DataDir string `mapstructure:"data_dir"`
	DevMode bool   `mapstructure:"dev_mode"`
}

// Addr returns the listen address as host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/netvoucher.db")

	// Module defaults
	v.SetDefault("modules.devices.enabled", true)
	v.SetDefault("modules.devices.default_timeout", "10s")
	v.SetDefault("modules.devices.ping_timeout", "2s")
	v.SetDefault("modules.devices.ping_count", 3)
	v.SetDefault("modules.catalog.enabled", true)
	v.SetDefault("modules.orders.enabled", true)
	v.SetDefault("modules.provision.enabled", true)
	v.SetDefault("modules.provision.username_prefix", "hs")
	v.SetDefault("modules.provision.comment_prefix", "netvoucher")
	v.SetDefault("modules.ws.enabled", true)
	v.SetDefault("modules.auth.enabled", true)
	v.SetDefault("modules.auth.token_ttl", "12h")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("netvoucher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/netvoucher")
	}

	// Environment variable support: NV_SERVER_PORT=9090
	v.SetEnvPrefix("NV")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
