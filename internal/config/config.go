// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads CLI configuration from the XDG config dir, a local .env
// file and BILLPAY_* environment variables.
// Only non-secret settings are kept in the file; the merchant id may also come
// from the OS keychain (see internal/keychain).
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"billpay/cli/internal/xdg"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds CLI settings.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	TokenAPI TokenAPI       `mapstructure:"token_api"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Native   NativeConfig   `mapstructure:"native"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Mock     MockConfig     `mapstructure:"mock"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
}

// GatewayConfig points at the VAS gateway.
type GatewayConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIVersion string        `mapstructure:"api_version"`
	MerchantID string        `mapstructure:"merchant_id"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TokenAPI points at the host's session token validation service.
type TokenAPI struct {
	BaseURL string `mapstructure:"base_url"`
}

// CacheConfig selects the product cache backend ("memory" or "redis").
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// BridgeConfig configures the parent-host transport used in iframe mode.
type BridgeConfig struct {
	HostURL string        `mapstructure:"host_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NativeConfig configures the native shell payment capability.
type NativeConfig struct {
	Addr     string `mapstructure:"addr"`
	Insecure bool   `mapstructure:"insecure"`
}

// LedgerConfig configures the optional receipt ledger.
type LedgerConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MockConfig tunes the standalone mock bank.
type MockConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// CheckoutConfig holds flow options.
type CheckoutConfig struct {
	Country     string `mapstructure:"country"`
	Fulfillment bool   `mapstructure:"fulfillment"`
	POSID       string `mapstructure:"pos_id"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Gateway: GatewayConfig{
			BaseURL:    "https://sandbox-dev.appletreepayments.com",
			APIVersion: "V2",
			Timeout:    20 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     5 * time.Minute,
		},
		Bridge: BridgeConfig{
			Timeout: 30 * time.Second,
		},
		Mock: MockConfig{
			Delay: 2 * time.Second,
		},
		Checkout: CheckoutConfig{
			Country: "ZW",
			POSID:   "Getbucks",
		},
	}
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration. explicitPath overrides the XDG location; a missing
// file yields defaults overlaid with .env and environment values.
func Load(explicitPath string) (Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix("BILLPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	p := explicitPath
	if p == "" {
		var err error
		if p, err = path(); err != nil {
			p = ""
		}
	}
	if p != "" {
		if _, err := os.Stat(p); err == nil {
			v.SetConfigFile(p)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, err
			}
		} else if explicitPath != "" && errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Bridge.Timeout <= 0 {
		c.Bridge.Timeout = 30 * time.Second
	}
	if c.Gateway.APIVersion == "" {
		c.Gateway.APIVersion = "V2"
	}
	return c, nil
}

// Save writes configuration with 0600 permissions to the XDG location.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	v := viper.New()
	setDefaults(v, c)
	v.SetConfigFile(p)
	if err := v.WriteConfigAs(p); err != nil {
		return err
	}
	return os.Chmod(p, 0o600)
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("gateway.base_url", c.Gateway.BaseURL)
	v.SetDefault("gateway.api_version", c.Gateway.APIVersion)
	v.SetDefault("gateway.merchant_id", c.Gateway.MerchantID)
	v.SetDefault("gateway.timeout", c.Gateway.Timeout)
	v.SetDefault("token_api.base_url", c.TokenAPI.BaseURL)
	v.SetDefault("cache.backend", c.Cache.Backend)
	v.SetDefault("cache.redis_addr", c.Cache.RedisAddr)
	v.SetDefault("cache.ttl", c.Cache.TTL)
	v.SetDefault("bridge.host_url", c.Bridge.HostURL)
	v.SetDefault("bridge.timeout", c.Bridge.Timeout)
	v.SetDefault("native.addr", c.Native.Addr)
	v.SetDefault("native.insecure", c.Native.Insecure)
	v.SetDefault("ledger.dsn", c.Ledger.DSN)
	v.SetDefault("mock.delay", c.Mock.Delay)
	v.SetDefault("checkout.country", c.Checkout.Country)
	v.SetDefault("checkout.fulfillment", c.Checkout.Fulfillment)
	v.SetDefault("checkout.pos_id", c.Checkout.POSID)
}
