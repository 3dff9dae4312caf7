package config

import (
	"time"
)

// Version holds the ttn-osem-integration version.
var Version string

// Config defines the configuration structure.
type Config struct {
	General struct {
		LogLevel    int  `mapstructure:"log_level"`
		LogToSyslog bool `mapstructure:"log_to_syslog"`
	} `mapstructure:"general"`

	PostgreSQL struct {
		DSN                string `mapstructure:"dsn"`
		Automigrate        bool   `mapstructure:"automigrate"`
		MaxOpenConnections int    `mapstructure:"max_open_connections"`
		MaxIdleConnections int    `mapstructure:"max_idle_connections"`
	} `mapstructure:"postgresql"`

	Redis struct {
		URL        string   `mapstructure:"url"` // deprecated
		Servers    []string `mapstructure:"servers"`
		Cluster    bool     `mapstructure:"cluster"`
		MasterName string   `mapstructure:"master_name"`
		PoolSize   int      `mapstructure:"pool_size"`
		Password   string   `mapstructure:"password"`
		Database   int      `mapstructure:"database"`
		TLSEnabled bool     `mapstructure:"tls_enabled"`
		KeyPrefix  string   `mapstructure:"key_prefix"`
	} `mapstructure:"redis"`

	Integration struct {
		DeviceCacheTTL   time.Duration `mapstructure:"device_cache_ttl"`
		DeduplicationTTL time.Duration `mapstructure:"deduplication_ttl"`
		LastValueTTL     time.Duration `mapstructure:"last_value_ttl"`

		API struct {
			Bind string `mapstructure:"bind"`
		} `mapstructure:"api"`

		Backend struct {
			Type string `mapstructure:"type"`

			MQTT struct {
				Server       string `mapstructure:"server"`
				Username     string `mapstructure:"username"`
				Password     string `mapstructure:"password"`
				QOS          uint8  `mapstructure:"qos"`
				CleanSession bool   `mapstructure:"clean_session"`
				ClientID     string `mapstructure:"client_id"`
				CACert       string `mapstructure:"ca_cert"`
				TLSCert      string `mapstructure:"tls_cert"`
				TLSKey       string `mapstructure:"tls_key"`
				UplinkTopic  string `mapstructure:"uplink_topic"`

				MaxReconnectInterval time.Duration `mapstructure:"max_reconnect_interval"`
			} `mapstructure:"mqtt"`

			AMQP struct {
				URL              string `mapstructure:"url"`
				UplinkQueueName  string `mapstructure:"uplink_queue_name"`
				UplinkRoutingKey string `mapstructure:"uplink_routing_key"`
			} `mapstructure:"amqp"`

			GCPPubSub struct {
				CredentialsFile        string `mapstructure:"credentials_file"`
				ProjectID              string `mapstructure:"project_id"`
				UplinkSubscriptionName string `mapstructure:"uplink_subscription_name"`
			} `mapstructure:"gcp_pub_sub"`
		} `mapstructure:"backend"`
	} `mapstructure:"integration"`

	Monitoring struct {
		Bind                string `mapstructure:"bind"`
		PrometheusEndpoint  bool   `mapstructure:"prometheus_endpoint"`
		HealthcheckEndpoint bool   `mapstructure:"healthcheck_endpoint"`
	} `mapstructure:"monitoring"`
}

// C holds the global configuration.
var C Config

// Get returns the configuration.
func Get() *Config {
	return &C
}

// Set sets the configuration.
func Set(c Config) {
	C = c
}
