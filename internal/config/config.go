// Package config loads the library and host configuration.
//
// Values are resolved in increasing order of priority: built-in defaults,
// a JSON or TOML file named by the CONFIG environment variable, environment
// variables (optionally seeded from a .env file) and command-line flags.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/patric-chuzhbe/nativebridge/internal/logger"
)

type Config struct {
	RunAddr           string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel          string        `env:"LOG_LEVEL" validate:"loglevel"`
	NetworkGetURL     string        `env:"NETWORK_GET_URL" validate:"url"`
	NetworkGetTimeout time.Duration `env:"NETWORK_GET_TIMEOUT" validate:"gte=0"`
	StrictOwnership   bool          `env:"STRICT_OWNERSHIP"`
	BatchConcurrency  int           `env:"BATCH_CONCURRENCY" validate:"min=1,max=256"`
	TrustedSubnet     string        `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS"`
	GRPCAddr          string        `env:"GRPC_ADDRESS" validate:"omitempty,hostname_port"`
	OwnershipSecret   string        `env:"OWNERSHIP_SECRET" validate:"required,base64url"`
	ConfigFile        string        `env:"CONFIG"`
}

// fileConfig mirrors Config for JSON and TOML files. Pointers tell unset keys
// apart from zero values.
type fileConfig struct {
	RunAddr           *string `json:"server_address" toml:"server_address"`
	LogLevel          *string `json:"log_level" toml:"log_level"`
	NetworkGetURL     *string `json:"network_get_url" toml:"network_get_url"`
	NetworkGetTimeout *string `json:"network_get_timeout" toml:"network_get_timeout"`
	StrictOwnership   *bool   `json:"strict_ownership" toml:"strict_ownership"`
	BatchConcurrency  *int    `json:"batch_concurrency" toml:"batch_concurrency"`
	TrustedSubnet     *string `json:"trusted_subnet" toml:"trusted_subnet"`
	TrustProxyHeaders *bool   `json:"trust_proxy_headers" toml:"trust_proxy_headers"`
	GRPCAddr          *string `json:"grpc_address" toml:"grpc_address"`
	OwnershipSecret   *string `json:"ownership_secret" toml:"ownership_secret"`
}

var defaultConfig = Config{
	RunAddr:           ":8080",
	LogLevel:          "info",
	NetworkGetURL:     "https://jsonplaceholder.typicode.com/posts",
	NetworkGetTimeout: 30 * time.Second,
	StrictOwnership:   false,
	BatchConcurrency:  4,
	GRPCAddr:          ":3200",
	OwnershipSecret:   "bmF0aXZlYnJpZGdlLWRldmVsb3BtZW50LXNpZ25pbmcta2V5",
}

var allowedLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	return allowedLogLevels[fieldLevel.Field().String()]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	disableDotEnv       bool
}

// WithDisableFlagsParsing skips command-line flags. Shared-library builds always use it:
// the host process owns os.Args.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithDisableDotEnv skips loading the .env file from the working directory.
func WithDisableDotEnv(disableDotEnv bool) InitOption {
	return func(options *initOptions) {
		options.disableDotEnv = disableDotEnv
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

// Default returns the built-in configuration without consulting any source.
func Default() *Config {
	values := &Config{}
	applyDefaults(values, defaultConfig)

	return values
}

func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if !options.disableDotEnv {
		if err := godotenv.Load(); err != nil {
			logger.Log.Debugln("Unable to load .env file:", err)
		}
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)

	if path := os.Getenv("CONFIG"); path != "" {
		if err := values.applyFile(path); err != nil {
			return nil, err
		}
		values.ConfigFile = path
	}

	if err := env.Parse(values); err != nil {
		return nil, err
	}

	if !options.disableFlagsParsing {
		if err := values.applyFlags(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}

func (c *Config) applyFlags(args []string) error {
	flags := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	flags.StringVar(&c.RunAddr, "a", c.RunAddr, "address and port to run the HTTP host")
	flags.StringVar(&c.LogLevel, "l", c.LogLevel, "logger level")
	flags.StringVar(&c.NetworkGetURL, "u", c.NetworkGetURL, "endpoint of the network GET operation")
	flags.DurationVar(&c.NetworkGetTimeout, "t", c.NetworkGetTimeout, "timeout of the network GET operation")
	flags.BoolVar(&c.StrictOwnership, "s", c.StrictOwnership, "abort on ownership violations")
	flags.IntVar(&c.BatchConcurrency, "c", c.BatchConcurrency, "number of batch items evaluated concurrently")
	flags.StringVar(&c.TrustedSubnet, "n", c.TrustedSubnet, "CIDR allowed to read the internal stats")
	flags.BoolVar(&c.TrustProxyHeaders, "p", c.TrustProxyHeaders, "take the client address from X-Real-IP and X-Forwarded-For")
	flags.StringVar(&c.GRPCAddr, "g", c.GRPCAddr, "address of the gRPC health endpoint, empty to disable")

	return flags.Parse(args)
}

func (c *Config) applyFile(path string) error {
	var file fileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if file.RunAddr != nil {
		c.RunAddr = *file.RunAddr
	}
	if file.LogLevel != nil {
		c.LogLevel = *file.LogLevel
	}
	if file.NetworkGetURL != nil {
		c.NetworkGetURL = *file.NetworkGetURL
	}
	if file.NetworkGetTimeout != nil {
		timeout, err := time.ParseDuration(*file.NetworkGetTimeout)
		if err != nil {
			return fmt.Errorf("parsing network_get_timeout: %w", err)
		}
		c.NetworkGetTimeout = timeout
	}
	if file.StrictOwnership != nil {
		c.StrictOwnership = *file.StrictOwnership
	}
	if file.BatchConcurrency != nil {
		c.BatchConcurrency = *file.BatchConcurrency
	}
	if file.TrustedSubnet != nil {
		c.TrustedSubnet = *file.TrustedSubnet
	}
	if file.TrustProxyHeaders != nil {
		c.TrustProxyHeaders = *file.TrustProxyHeaders
	}
	if file.GRPCAddr != nil {
		c.GRPCAddr = *file.GRPCAddr
	}
	if file.OwnershipSecret != nil {
		c.OwnershipSecret = *file.OwnershipSecret
	}

	return nil
}
