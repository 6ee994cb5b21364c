package main

import (
	"os"
	"runtime"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/omniledger/signet/pkg/log"
)

const configDotEnvPathEnv = "SIGNET_DOTENV_PATH"

// Config represents the overall application configuration, read from
// environment variables.
type Config struct {
	// PrivateKeyFile is the path to the node key: 32 raw bytes or hex,
	// optionally 0x-prefixed.
	PrivateKeyFile string `env:"SIGNET_PRIVATE_KEY_FILE" env-required:"true"`
	// ListenAddress is the RPC server bind address.
	ListenAddress string `env:"SIGNET_LISTEN_ADDRESS" env-default:":8000"`
	// MetricsAddress is the Prometheus server bind address.
	MetricsAddress string `env:"SIGNET_METRICS_ADDRESS" env-default:":4242"`
	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `env:"SIGNET_LOG_LEVEL" env-default:"info"`
	// LogFormat is one of logfmt, json, console.
	LogFormat string `env:"SIGNET_LOG_FORMAT" env-default:"logfmt"`
	// VerifyWorkers sets the batch verification pool size.
	// Zero means one worker per CPU.
	VerifyWorkers int `env:"SIGNET_VERIFY_WORKERS" env-default:"0"`
}

// LoadConfig builds configuration from environment variables. An optional
// .env file is loaded first when present.
func LoadConfig(logger log.Logger) (*Config, error) {
	logger = logger.WithName("config")

	dotEnvPath := os.Getenv(configDotEnvPathEnv)
	if dotEnvPath == "" {
		dotEnvPath = ".env"
	}
	if err := godotenv.Load(dotEnvPath); err != nil {
		logger.Debug(".env file not found", "path", dotEnvPath)
	} else {
		logger.Info("loaded .env file", "path", dotEnvPath)
	}

	var config Config
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}

	if config.VerifyWorkers < 0 {
		return nil, errors.Errorf("SIGNET_VERIFY_WORKERS must not be negative, got %d", config.VerifyWorkers)
	}
	if config.VerifyWorkers == 0 {
		config.VerifyWorkers = runtime.NumCPU()
	}
	if _, err := log.ParseLevel(config.LogLevel); err != nil {
		return nil, errors.Wrap(err, "invalid SIGNET_LOG_LEVEL")
	}

	logger.Info("configuration loaded",
		"listenAddress", config.ListenAddress,
		"metricsAddress", config.MetricsAddress,
		"verifyWorkers", config.VerifyWorkers)

	return &config, nil
}
