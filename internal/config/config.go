package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Node       NodeConfig       `mapstructure:"node" validate:"required"`
	Processing ProcessingConfig `mapstructure:"processing" validate:"required"`
	AMQP       AMQPConfig       `mapstructure:"amqp" validate:"required"`
	Catalog    CatalogConfig    `mapstructure:"catalog" validate:"required"`
}

// ServerConfig contains settings for the admin HTTP surface and logging.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// NodeConfig contains settings for the remote compute node.
type NodeConfig struct {
	Host  string `mapstructure:"host" validate:"required"`
	Port  int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	Token string `mapstructure:"token"`

	// PollIntervalSeconds is the sleep between poll rounds.
	PollIntervalSeconds int `mapstructure:"poll_interval" validate:"gt=0"`

	// PollRetries bounds the total number of transport failures tolerated
	// across all jobs before the poll loop gives up.
	PollRetries int `mapstructure:"poll_retries" validate:"gt=0"`
}

// URL returns the node's base URL.
func (c NodeConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// PollInterval returns the poll interval as a duration.
func (c NodeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// ProcessingConfig contains the photogrammetry options forwarded to the node
// and the shutdown policy for in-flight jobs.
type ProcessingConfig struct {
	Quality         string  `mapstructure:"quality" validate:"required,oneof=ultra high medium low lowest"`
	DSM             bool    `mapstructure:"dsm"`
	DTM             bool    `mapstructure:"dtm"`
	OrthoResolution float64 `mapstructure:"ortho_resolution" validate:"gte=0"`

	// CancelOnShutdown controls whether non-terminal remote jobs are
	// cancelled during the failure/cancellation unwind. When false, jobs
	// are left running on the node and the unwind only logs.
	CancelOnShutdown bool `mapstructure:"cancel_on_shutdown"`
}

// Options renders the processing settings as the option map sent with job
// creation.
func (c ProcessingConfig) Options() map[string]string {
	opts := map[string]string{
		"feature-quality": c.Quality,
		"dsm":             fmt.Sprintf("%t", c.DSM),
		"dtm":             fmt.Sprintf("%t", c.DTM),
	}
	if c.OrthoResolution > 0 {
		opts["orthophoto-resolution"] = fmt.Sprintf("%g", c.OrthoResolution)
	}
	return opts
}

// AMQPConfig contains settings for the notification broker.
type AMQPConfig struct {
	Host             string `mapstructure:"host" validate:"required"`
	Port             int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	VHost            string `mapstructure:"vhost"`
	Username         string `mapstructure:"username" validate:"required"`
	Password         string `mapstructure:"password" validate:"required"`
	TLS              bool   `mapstructure:"tls"`
	Exchange         string `mapstructure:"exchange" validate:"required"`
	RoutingKeyPrefix string `mapstructure:"routing_key_prefix" validate:"required"`

	// RetryCount is the fixed number of publish attempts per event.
	RetryCount int `mapstructure:"retry_count" validate:"gt=0"`
}

// URL returns the broker connection URL.
func (c AMQPConfig) URL() string {
	scheme := "amqp"
	if c.TLS {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s", scheme, c.Username, c.Password, c.Host, c.Port, c.VHost)
}

// CatalogConfig contains settings for the archival catalog receiving results.
type CatalogConfig struct {
	URL               string      `mapstructure:"url" validate:"required,url"`
	Organization      string      `mapstructure:"organization" validate:"required"`
	OrganizationEmail string      `mapstructure:"organization_email" validate:"omitempty,email"`
	Auth              OAuthConfig `mapstructure:"auth" validate:"required"`
}

// OAuthConfig contains the password-grant credentials for the catalog's
// identity provider.
type OAuthConfig struct {
	TokenURL     string `mapstructure:"token_url" validate:"required,url"`
	Username     string `mapstructure:"username" validate:"required"`
	Password     string `mapstructure:"password" validate:"required"`
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret"`
	GrantType    string `mapstructure:"grant_type" validate:"required"`
	Scope        string `mapstructure:"scope"`
}
