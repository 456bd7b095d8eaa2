package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkKafka = "kafka"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	EthRPCURL              string
	ChainID                uint64
	OracleFeedAddress      string
	OracleResponseDecimals uint8
	CollateralDecimals     uint8
	LendingTokenAddress    string // empty means LendingTokenDecimals is used as is
	LendingTokenDecimals   uint8
	PriceStalenessSecs     int

	ConsensusAddress            string
	ConsensusSigners            []string
	ConsensusRequired           int
	ConsensusToleranceBps       uint64
	ConsensusResponseExpirySecs int

	EventsSink    string
	EventsChannel string
	KafkaBrokers  []string
	KafkaTopic    string

	LogLevel  string
	LogPretty bool
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvUint(k string, d uint64, bits int) uint64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseUint(v, 10, bits); err == nil {
			return n
		}
	}
	return d
}

func getenvList(k string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(k), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Load reads the environment, seeding it from a .env file when one exists.
// Variables already set in the environment win over the file.
func Load() *Config {
	_ = godotenv.Load()
	return load()
}

func load() *Config {
	pretty, _ := strconv.ParseBool(os.Getenv("LOG_PRETTY"))
	return &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "loans"),
		MySQLUser: getenv("MYSQL_USER", "loans"),
		MySQLPass: getenv("MYSQL_PASS", "loans"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		EthRPCURL:              os.Getenv("ETH_RPC_URL"),
		ChainID:                getenvUint("CHAIN_ID", 1, 64),
		OracleFeedAddress:      os.Getenv("ORACLE_FEED_ADDRESS"),
		OracleResponseDecimals: uint8(getenvUint("ORACLE_RESPONSE_DECIMALS", 8, 8)),
		CollateralDecimals:     uint8(getenvUint("COLLATERAL_DECIMALS", 18, 8)),
		LendingTokenAddress:    os.Getenv("LENDING_TOKEN_ADDRESS"),
		LendingTokenDecimals:   uint8(getenvUint("LENDING_TOKEN_DECIMALS", 18, 8)),
		PriceStalenessSecs:     getenvInt("PRICE_STALENESS_SECONDS", 3600),

		ConsensusAddress:            os.Getenv("CONSENSUS_ADDRESS"),
		ConsensusSigners:            getenvList("CONSENSUS_SIGNERS"),
		ConsensusRequired:           getenvInt("CONSENSUS_REQUIRED_SUBMISSIONS", 1),
		ConsensusToleranceBps:       getenvUint("CONSENSUS_TOLERANCE_BPS", 500, 64),
		ConsensusResponseExpirySecs: getenvInt("CONSENSUS_RESPONSE_EXPIRY_SECONDS", 900),

		EventsSink:    strings.ToLower(getenv("EVENTS_SINK", SinkLog)),
		EventsChannel: getenv("EVENTS_CHANNEL", "loan-events"),
		KafkaBrokers:  getenvList("KAFKA_BROKERS"),
		KafkaTopic:    getenv("KAFKA_TOPIC", "loan-events"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogPretty: pretty,
	}
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	// ensure port is valid
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.EthRPCURL == "" {
		return errors.New("missing ETH_RPC_URL")
	}
	if !common.IsHexAddress(c.OracleFeedAddress) {
		return fmt.Errorf("invalid ORACLE_FEED_ADDRESS %q", c.OracleFeedAddress)
	}
	if c.LendingTokenAddress != "" && !common.IsHexAddress(c.LendingTokenAddress) {
		return fmt.Errorf("invalid LENDING_TOKEN_ADDRESS %q", c.LendingTokenAddress)
	}
	if c.PriceStalenessSecs <= 0 {
		return errors.New("PRICE_STALENESS_SECONDS must be positive")
	}
	if !common.IsHexAddress(c.ConsensusAddress) {
		return fmt.Errorf("invalid CONSENSUS_ADDRESS %q", c.ConsensusAddress)
	}
	if len(c.ConsensusSigners) == 0 {
		return errors.New("missing CONSENSUS_SIGNERS")
	}
	for _, s := range c.ConsensusSigners {
		if !common.IsHexAddress(s) {
			return fmt.Errorf("invalid signer %q in CONSENSUS_SIGNERS", s)
		}
	}
	if c.ConsensusRequired < 1 || c.ConsensusRequired > len(c.ConsensusSigners) {
		return fmt.Errorf("CONSENSUS_REQUIRED_SUBMISSIONS must be between 1 and %d", len(c.ConsensusSigners))
	}
	if c.ConsensusResponseExpirySecs <= 0 {
		return errors.New("CONSENSUS_RESPONSE_EXPIRY_SECONDS must be positive")
	}
	switch c.EventsSink {
	case SinkLog, SinkRedis:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return errors.New("EVENTS_SINK=kafka needs KAFKA_BROKERS and KAFKA_TOPIC")
		}
	default:
		return fmt.Errorf("unknown EVENTS_SINK %q", c.EventsSink)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempTTLSecs) * time.Second
}

func (c *Config) PriceStaleness() time.Duration {
	return time.Duration(c.PriceStalenessSecs) * time.Second
}

func (c *Config) ResponseExpiry() time.Duration {
	return time.Duration(c.ConsensusResponseExpirySecs) * time.Second
}

func (c *Config) Signers() []common.Address {
	out := make([]common.Address, 0, len(c.ConsensusSigners))
	for _, s := range c.ConsensusSigners {
		out = append(out, common.HexToAddress(s))
	}
	return out
}
