// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func NewConfig(v *viper.Viper) (Config, error) {
	cfg, err := BuildConfig(v)
	if err != nil {
		return cfg, err
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("failed to validate configuration: %w", err)
	}
	return cfg, nil
}

// BuildFlagSet declares the configuration flags.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("planetbounce", pflag.ContinueOnError)
	fs.String(ConfigFileKey, "", "Path to a JSON config file (optional)")
	fs.String(LogLevelKey, defaultLogLevel, "Log level")
	fs.Uint64(ChainIDKey, defaultChainID, "EIP-712 signing domain chain id")
	fs.String(ContractAddressKey, "", "Game contract address")
	fs.String(UpstreamURLKey, "", "Upstream threshold-decryption service base URL (empty: in-process dev service)")
	fs.Uint16(APIPortKey, defaultAPIPort, "API listen port")
	fs.Uint16(MetricsPortKey, defaultMetricsPort, "Metrics listen port")
	return fs
}

// BuildViper builds the viper instance. Every config key may be provided via
// flag, environment variable, or the optional config file; each item takes
// precedence over the one after it.
func BuildViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.AutomaticEnv()
	// Map flag names to env var names. Flags are capitalized, and hyphens
	// are replaced with underscores.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if v.IsSet(ConfigFileKey) && v.GetString(ConfigFileKey) != "" {
		v.SetConfigFile(v.GetString(ConfigFileKey))
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return v, nil
}

func SetDefaultConfigValues(v *viper.Viper) {
	v.SetDefault(LogLevelKey, defaultLogLevel)
	v.SetDefault(ChainIDKey, defaultChainID)
	v.SetDefault(APIPortKey, defaultAPIPort)
	v.SetDefault(MetricsPortKey, defaultMetricsPort)
}

// BuildConfig constructs the configuration using viper.
func BuildConfig(v *viper.Viper) (Config, error) {
	SetDefaultConfigValues(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal viper config: %w", err)
	}
	return cfg, nil
}
