package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	ServiceName string
	HTTPAddr    string

	SessionSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StoreDriver string
	MongoURI    string
	MongoDB     string
	MySQLDSN    string
	RedisAddr   string

	KafkaBrokers    []string
	KafkaLogTopic   string
	KafkaOrderTopic string
	AMQPURL         string
	AMQPExchange    string
	ElasticURL      string
	ElasticIndex    string
	KafkaLogGroup   string
	OTLPEndpoint    string

	RequireSeating  bool
	LoginRatePerSec float64
	LoginBurst      int
	SeedFile        string
	LogLevel        string

	Watch WatchConfig
}

// WatchConfig drives the order watcher binary.
type WatchConfig struct {
	APIURL    string
	Username  string
	Password  string
	Interval  time.Duration
	Highlight time.Duration
}

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverMySQL  = "mysql"
)

// LoadEnvFile loads .env style files into the environment. Missing files are not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func Load() Config {
	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		ServiceName: getEnv("SERVICE_NAME", "order-service"),
		HTTPAddr:    getEnv("HTTP_ADDR", "127.0.0.1:8000"),

		SessionSecret:   os.Getenv("SESSION_SECRET"),
		AccessTokenTTL:  getDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getDuration("REFRESH_TOKEN_TTL", 24*time.Hour),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "apiDB"),
		MySQLDSN:    getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/orders?parseTime=true"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		KafkaBrokers:    getList("KAFKA_BROKERS"),
		KafkaLogTopic:   getEnv("KAFKA_LOG_TOPIC", "logs"),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "orders.new"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "orders"),
		ElasticURL:      getEnv("ELASTIC_URL", "http://localhost:9200"),
		ElasticIndex:    getEnv("ELASTIC_INDEX", "request-logs"),
		KafkaLogGroup:   getEnv("KAFKA_LOG_GROUP", "logpusher"),
		OTLPEndpoint:    os.Getenv("OTLP_ENDPOINT"),

		RequireSeating:  getBool("ORDER_REQUIRE_SEATING", false),
		LoginRatePerSec: getFloat("LOGIN_RATE_PER_SEC", 5),
		LoginBurst:      getInt("LOGIN_BURST", 10),
		SeedFile:        os.Getenv("SEED_FILE"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),

		Watch: WatchConfig{
			APIURL:    getEnv("WATCH_API_URL", "http://127.0.0.1:8000"),
			Username:  os.Getenv("WATCH_USERNAME"),
			Password:  os.Getenv("WATCH_PASSWORD"),
			Interval:  getDuration("WATCH_INTERVAL", time.Minute),
			Highlight: getDuration("WATCH_HIGHLIGHT", 3*time.Second),
		},
	}
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	switch c.StoreDriver {
	case DriverMemory, DriverMongo, DriverMySQL:
	default:
		return errors.New("STORE_DRIVER must be one of memory, mongo, mysql")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
