// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Environment variable keys
	ConfigFileEnvKey = "CONFIG_FILE"

	// Top-level configuration keys
	LogLevelKey        = "log-level"
	ChainIDKey         = "chain-id"
	ContractAddressKey = "contract-address"
	UpstreamURLKey     = "upstream-url"
	APIPortKey         = "api-port"
	MetricsPortKey     = "metrics-port"
)
