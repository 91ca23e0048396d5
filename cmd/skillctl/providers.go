package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/skillctl/skillctl/pkg/provider"
)

// providerConfigFromViper reads the providers.<name> section of the config
// file. Every field is optional; zero values fall back to the adapter
// defaults.
func providerConfigFromViper(name string) provider.Config {
	prefix := fmt.Sprintf("providers.%s.", name)

	cfg := provider.Config{
		Bin:       viper.GetString(prefix + "bin"),
		Model:     viper.GetString(prefix + "model"),
		ExtraArgs: viper.GetStringSlice(prefix + "args"),
		Attempts:  uint(viper.GetInt(prefix + "attempts")),
	}
	if seconds := viper.GetInt(prefix + "timeout_seconds"); seconds > 0 {
		cfg.Timeout = time.Duration(seconds) * time.Second
	}
	return cfg
}

// newProvider builds a provider by registry name with its viper config.
func newProvider(name string) (provider.Provider, error) {
	return provider.New(name, providerConfigFromViper(name))
}
