package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig drives cmd/cartd.
type ServerConfig struct {
	HTTPPort           string        `yaml:"http_port"`
	LogLevel           string        `yaml:"log_level"`
	MongoURI           string        `yaml:"mongo_uri"`
	MongoDBName        string        `yaml:"mongo_db_name"`
	RedisAddr          string        `yaml:"redis_addr"`
	RedisPassword      string        `yaml:"redis_password"`
	CatalogDriver      string        `yaml:"catalog_driver"`
	CatalogDSN         string        `yaml:"catalog_dsn"`
	KafkaBrokers       []string      `yaml:"kafka_brokers"`
	CheckoutTopic      string        `yaml:"checkout_topic"`
	ConsumerGroup      string        `yaml:"consumer_group"`
	JWTSecret          string        `yaml:"jwt_secret"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
}

// ClientConfig drives cmd/cartctl and the cart store it builds.
type ClientConfig struct {
	BaseURL          string        `yaml:"base_url"`
	LogLevel         string        `yaml:"log_level"`
	StorageKey       string        `yaml:"storage_key"`
	StoreDir         string        `yaml:"store_dir"`
	RedisAddr        string        `yaml:"redis_addr"`
	RedisNamespace   string        `yaml:"redis_namespace"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MergeConcurrency int           `yaml:"merge_concurrency"`
}

type fileConfig struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
}

func defaultServer() ServerConfig {
	return ServerConfig{
		HTTPPort:           "8080",
		LogLevel:           "info",
		MongoURI:           "mongodb://localhost:27017",
		MongoDBName:        "cartdb",
		RedisAddr:          "localhost:6379",
		CatalogDriver:      "sqlite",
		CatalogDSN:         "file:catalog.db?cache=shared",
		KafkaBrokers:       []string{"localhost:9092"},
		CheckoutTopic:      "checkout-completed",
		ConsumerGroup:      "cart-service-consumer",
		JWTSecret:          "dev-secret",
		RequestTimeout:     30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB
	}
}

func defaultClient() ClientConfig {
	return ClientConfig{
		BaseURL:          "http://localhost:8080",
		LogLevel:         "warn",
		StorageKey:       "fish-web-cart-v2",
		StoreDir:         ".cartctl",
		RedisNamespace:   "cartctl",
		RequestTimeout:   30 * time.Second,
		MergeConcurrency: 4,
	}
}

// LoadServer reads .env, the optional YAML file named by CART_CONFIG, then env overrides.
func LoadServer() (*ServerConfig, error) {
	fc, err := loadFile()
	if err != nil {
		return nil, err
	}
	cfg := fc.Server

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDBName = getEnv("MONGO_DB_NAME", cfg.MongoDBName)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.CatalogDriver = getEnv("CATALOG_DRIVER", cfg.CatalogDriver)
	cfg.CatalogDSN = getEnv("CATALOG_DSN", cfg.CatalogDSN)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.CheckoutTopic = getEnv("CHECKOUT_TOPIC", cfg.CheckoutTopic)
	cfg.ConsumerGroup = getEnv("CONSUMER_GROUP", cfg.ConsumerGroup)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadClient() (*ClientConfig, error) {
	fc, err := loadFile()
	if err != nil {
		return nil, err
	}
	cfg := fc.Client

	cfg.BaseURL = getEnv("CARTCTL_BASE_URL", cfg.BaseURL)
	cfg.LogLevel = getEnv("CARTCTL_LOG_LEVEL", cfg.LogLevel)
	cfg.StorageKey = getEnv("CARTCTL_STORAGE_KEY", cfg.StorageKey)
	cfg.StoreDir = getEnv("CARTCTL_STORE_DIR", cfg.StoreDir)
	cfg.RedisAddr = getEnv("CARTCTL_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisNamespace = getEnv("CARTCTL_REDIS_NAMESPACE", cfg.RedisNamespace)
	if cfg.RequestTimeout, err = getDuration("CARTCTL_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if v := getEnv("CARTCTL_MERGE_CONCURRENCY", ""); v != "" {
		n, errAtoi := strconv.Atoi(v)
		if errAtoi != nil || n < 1 {
			return nil, fmt.Errorf("config: invalid CARTCTL_MERGE_CONCURRENCY %q", v)
		}
		cfg.MergeConcurrency = n
	}
	return &cfg, nil
}

func loadFile() (*fileConfig, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	fc := &fileConfig{Server: defaultServer(), Client: defaultClient()}
	path := os.Getenv("CART_CONFIG")
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %s not found", path)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}
