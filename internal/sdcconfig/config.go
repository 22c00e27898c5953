// Package sdcconfig loads the provider/consumer configuration surface
// (spec.md §6) via viper + yaml.v3, the same stack the teacher's go.mod
// declares for configuration even though the teacher's own
// internal/config hand-rolls a subset of keys.
package sdcconfig

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// TLSMode is the closed set of transport security modes.
type TLSMode string

const (
	TLSDisabled TLSMode = "disabled"
	TLSServerOnly TLSMode = "server_only"
	TLSMutual     TLSMode = "mutual"
)

// Config is the full configuration surface for one provider or consumer
// process.
type Config struct {
	InterfaceBinding         string        `mapstructure:"interface_binding"`
	MulticastTTL             int           `mapstructure:"multicast_ttl"`
	DiscoveryMaxWait         time.Duration `mapstructure:"discovery_max_wait"`
	DupSuppressionWindow     time.Duration `mapstructure:"dup_suppression_window"`
	SubscriptionDefaultTTL   time.Duration `mapstructure:"subscription_default_ttl"`
	SubscriptionMaxQueue     int           `mapstructure:"subscription_max_queue"`
	PeriodicReportInterval   time.Duration `mapstructure:"periodic_report_interval"`
	TLSMode                  TLSMode       `mapstructure:"tls_mode"`
	TLSCertFile              string        `mapstructure:"tls_cert_file"`
	TLSKeyFile               string        `mapstructure:"tls_key_file"`
	TrustedSANs              []string      `mapstructure:"trusted_sans"`
	MaxConcurrentTransactions int          `mapstructure:"max_concurrent_transactions"`
	MaxDeliveryFailures       int          `mapstructure:"max_delivery_failures"`
	BearerToken               string       `mapstructure:"bearer_token"`
	ListenAddress             string       `mapstructure:"listen_address"`
}

// Defaults mirrors spec.md §6's enumerated default values.
func Defaults() Config {
	return Config{
		MulticastTTL:              1,
		DiscoveryMaxWait:          5 * time.Second,
		DupSuppressionWindow:      10 * time.Second,
		SubscriptionDefaultTTL:    3600 * time.Second,
		SubscriptionMaxQueue:      1024,
		PeriodicReportInterval:    1 * time.Second,
		TLSMode:                   TLSDisabled,
		MaxConcurrentTransactions: 1,
		MaxDeliveryFailures:       3,
		ListenAddress:             ":8080",
	}
}

// Load reads configuration from path (YAML) with SDC_-prefixed
// environment variable overlay, using viper the way the teacher's go.mod
// commits to for project-wide config. An empty path loads defaults plus
// environment overrides only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	cfg := Defaults()
	setDefaults(v, cfg)

	v.SetEnvPrefix("SDC")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("sdcconfig: read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("sdcconfig: unmarshal: %w", err)
	}
	return cfg, nil
}

// Dump renders cfg as YAML for the provider's `config-dump` diagnostic
// subcommand. Keys are yaml.v3's default lowercased field names, not the
// snake_case keys Load reads — mirroring how the
// teacher round-trips its own config struct through yaml.v3 for
// `bd template`/`bd workflow` output.
func Dump(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("sdcconfig: marshal: %w", err)
	}
	return out, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("multicast_ttl", d.MulticastTTL)
	v.SetDefault("discovery_max_wait", d.DiscoveryMaxWait)
	v.SetDefault("dup_suppression_window", d.DupSuppressionWindow)
	v.SetDefault("subscription_default_ttl", d.SubscriptionDefaultTTL)
	v.SetDefault("subscription_max_queue", d.SubscriptionMaxQueue)
	v.SetDefault("periodic_report_interval", d.PeriodicReportInterval)
	v.SetDefault("tls_mode", string(d.TLSMode))
	v.SetDefault("max_concurrent_transactions", d.MaxConcurrentTransactions)
	v.SetDefault("max_delivery_failures", d.MaxDeliveryFailures)
	v.SetDefault("listen_address", d.ListenAddress)
}
