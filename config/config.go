// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads and validates the node configuration from flags,
// environment variables and an optional JSON config file.
package config

import (
	"fmt"
	"net/url"

	"github.com/luxfi/geth/common"
)

const (
	defaultLogLevel    = "info"
	defaultChainID     = 1337
	defaultAPIPort     = 8080
	defaultMetricsPort = 8081
)

// Config is the top-level node configuration.
type Config struct {
	LogLevel        string `mapstructure:"log-level" json:"log-level"`
	ChainID         uint64 `mapstructure:"chain-id" json:"chain-id"`
	ContractAddress string `mapstructure:"contract-address" json:"contract-address"`
	// UpstreamURL is the base URL of the threshold-decryption service the
	// bridge forwards to. Empty means serve the in-process dev service.
	UpstreamURL string `mapstructure:"upstream-url" json:"upstream-url"`
	APIPort     uint16 `mapstructure:"api-port" json:"api-port"`
	MetricsPort uint16 `mapstructure:"metrics-port" json:"metrics-port"`
}

func (c *Config) Validate() error {
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid contract address %q", c.ContractAddress)
	}
	if c.UpstreamURL != "" {
		u, err := url.Parse(c.UpstreamURL)
		if err != nil {
			return fmt.Errorf("invalid upstream URL: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid upstream URL %q", c.UpstreamURL)
		}
	}
	if c.APIPort == 0 {
		return fmt.Errorf("api port must be non-zero")
	}
	return nil
}

// Contract returns the configured contract address. Call Validate first.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}
