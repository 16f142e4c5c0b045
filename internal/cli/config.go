package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/terradue/aeronet-go"
	"github.com/terradue/aeronet-go/client"
)

// Configuration keys. Each is also read from AERONET_<KEY> with dashes
// replaced by underscores.
const (
	keyBaseURL   = "api-base-url"
	keyCacheDir  = "cache-dir"
	keyCacheTTL  = "cache-ttl"
	keyRateLimit = "rate-limit"
	keyHourly    = "hourly"
)

// initConfig reads the config file and environment into v.
// A missing default config file is not an error; a missing explicit one is.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		v.AddConfigPath(home)
		v.SetConfigName(".aeronet")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AERONET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyBaseURL, client.DefaultBaseURL)
	v.SetDefault(keyCacheTTL, 24*time.Hour)
	v.SetDefault(keyRateLimit, float64(client.DefaultRateLimit))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return usageError(fmt.Errorf("read config: %w", err))
		}
	}
	return nil
}

// bindFlags binds the named flags to their configuration keys.
// Flags are bound when the command runs so that sibling commands sharing a
// key do not override each other.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys ...string) error {
	for _, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			return err
		}
	}
	return nil
}

// searcherConfig builds the library configuration from flags, environment
// and config file. A positional URL argument overrides every other source.
func (o *RootOptions) searcherConfig(args []string) aeronet.Config {
	baseURL := o.viper.GetString(keyBaseURL)
	if len(args) > 0 {
		baseURL = args[0]
	}

	cfg := aeronet.Config{
		BaseURL:   baseURL,
		Hourly:    o.viper.GetBool(keyHourly),
		CacheDir:  o.viper.GetString(keyCacheDir),
		CacheTTL:  o.viper.GetDuration(keyCacheTTL),
		RateLimit: rate.Limit(o.viper.GetFloat64(keyRateLimit)),
		Trace:     o.Verbose,
		Logger:    o.logger,
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = rate.Inf
	}
	return cfg
}

// Logger returns the command logger, or slog.Default() before initialization.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}
