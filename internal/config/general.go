package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment
// variables. Populated once at startup by LoadConfig.
var (
	// RPCEndpoint is the on-chain RPC node used for block number reads and
	// pool-factory validation.
	RPCEndpoint string

	// SubgraphURL is the Uniswap-V3-style subgraph GraphQL endpoint.
	SubgraphURL string
	// SubgraphAPIKey is optional; empty means no auth header is sent.
	SubgraphAPIKey string

	// PriceOracleURL is optional; empty disables USD enrichment.
	PriceOracleURL string

	// DBPath is the path to the single embedded SQLite database file.
	DBPath string

	// WebPort is the HTTP listen port.
	WebPort string

	// SubnetID is the numeric subnet id the holder snapshot scans for.
	SubnetID uint64

	// BlockWindow bounds how stale/future a submitted block number may be.
	BlockWindow uint64

	// LogCSV toggles a snapshot CSV under logs/ on each holder refresh.
	LogCSV bool

	// LogFilePath is optional; when set, log output is written to both
	// stdout and this file.
	LogFilePath string
)

// LoadConfig loads configuration from environment variables and sets the
// global config vars. Required variables return an error if unset;
// optional variables fall back to documented defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	RPCEndpoint, err = getEnv("RPC_ENDPOINT")
	if err != nil {
		return err
	}

	SubgraphURL, err = getEnv("SUBGRAPH_URL")
	if err != nil {
		return err
	}

	SubgraphAPIKey = os.Getenv("SUBGRAPH_API_KEY")
	PriceOracleURL = os.Getenv("PRICE_ORACLE_URL")

	DBPath = os.Getenv("DB_PATH")
	if DBPath == "" {
		DBPath = "incentive.db"
	}

	WebPort = os.Getenv("WEB_PORT")
	if WebPort == "" {
		WebPort = "3000"
	}

	SubnetID, err = getEnvAsUint64Default("SUBNET_ID", 0)
	if err != nil {
		return err
	}

	BlockWindow, err = getEnvAsUint64Default("BLOCK_WINDOW", 10)
	if err != nil {
		return err
	}

	LogCSV = os.Getenv("LOG_CSV") == "true"
	LogFilePath = os.Getenv("LOG_FILE_PATH")

	log.Debug().
		Str("rpcEndpoint", RPCEndpoint).
		Str("subgraphURL", SubgraphURL).
		Str("dbPath", DBPath).
		Str("webPort", WebPort).
		Uint64("subnetID", SubnetID).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64Default retrieves an environment variable as a uint64,
// falling back to def when unset.
func getEnvAsUint64Default(key string, def uint64) (uint64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
