package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional YAML file and from environment
// variables with the ODM_ prefix. Environment variables take precedence over
// values from the config file. An empty configPath falls back to config.yaml
// in the working directory; a missing file is not an error as long as the
// required settings arrive through the environment.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("node.port", 3000)
	v.SetDefault("node.poll_interval", 30)
	v.SetDefault("node.poll_retries", 5)
	v.SetDefault("processing.quality", "medium")
	v.SetDefault("processing.dsm", true)
	v.SetDefault("processing.dtm", false)
	v.SetDefault("processing.cancel_on_shutdown", false)
	v.SetDefault("amqp.port", 5671)
	v.SetDefault("amqp.vhost", "/")
	v.SetDefault("amqp.tls", true)
	v.SetDefault("amqp.exchange", "amq.topic")
	v.SetDefault("amqp.routing_key_prefix", "request.status")
	v.SetDefault("amqp.retry_count", 3)
	v.SetDefault("catalog.auth.grant_type", "password")
	v.SetDefault("catalog.auth.scope", "openid")

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// Only a missing default file is tolerated
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Configure environment variables
	v.SetEnvPrefix("ODM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"node.host", "ODM_NODE_HOST"},
		{"node.token", "ODM_NODE_TOKEN"},
		{"amqp.host", "ODM_AMQP_HOST"},
		{"amqp.username", "ODM_AMQP_USERNAME"},
		{"amqp.password", "ODM_AMQP_PASSWORD"},
		{"catalog.url", "ODM_CATALOG_URL"},
		{"catalog.auth.username", "ODM_CATALOG_AUTH_USERNAME"},
		{"catalog.auth.password", "ODM_CATALOG_AUTH_PASSWORD"},
		{"catalog.auth.client_secret", "ODM_CATALOG_AUTH_CLIENT_SECRET"},
		{"server.port", "ODM_SERVER_PORT"},
		{"server.log_level", "ODM_SERVER_LOG_LEVEL"},
	}

	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
