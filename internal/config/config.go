package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTPServer struct {
	Addr string `yaml:"address" env:"HTTP_ADDR" env-default:":8084"`
}

type Database struct {
	Host            string        `yaml:"host" env:"PG_HOST" env-default:"localhost"`
	Port            string        `yaml:"port" env:"PG_PORT" env-default:"5432"`
	User            string        `yaml:"user" env:"PG_USER" env-required:"true"`
	Password        string        `yaml:"password" env:"PG_PASSWORD" env-required:"true"`
	Name            string        `yaml:"name" env:"PG_DBNAME" env-required:"true"`
	SSLMode         string        `yaml:"sslmode" env:"PG_SSLMODE" env-default:"require"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"PG_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"PG_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"PG_CONN_MAX_LIFETIME" env-default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env:"PG_CONN_MAX_IDLE_TIME" env-default:"5m"`
}

type RedisConnect struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost:6379"`
	Username string `yaml:"username" env:"REDIS_USER" env-default:""`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" env:"CACHE_ENABLED" env-default:"true"`
	DefaultTTL time.Duration `yaml:"default_ttl" env:"CACHE_DEFAULT_TTL" env-default:"15m"`
}

// CartLimits are the hard ceilings enforced on every mutation.
type CartLimits struct {
	MaxItemsPerCart    int     `yaml:"max_items_per_cart" env:"CART_MAX_ITEMS" env-default:"100"`
	MaxQuantityPerItem int     `yaml:"max_quantity_per_item" env:"CART_MAX_QUANTITY" env-default:"50"`
	MaxCartValue       float64 `yaml:"max_cart_value" env:"CART_MAX_VALUE" env-default:"2000.00"`
}

// CartValidation selects how live catalog data is reconciled into carts.
// StockFailureMode "soft" records a stock issue on the item; "hard" rejects
// the add outright.
type CartValidation struct {
	CheckStockOnAdd  bool   `yaml:"check_stock_on_add" env:"CART_CHECK_STOCK_ON_ADD" env-default:"true"`
	StockFailureMode string `yaml:"stock_failure_mode" env:"CART_STOCK_FAILURE_MODE" env-default:"soft"`
	CheckPriceOnView bool   `yaml:"check_price_on_view" env:"CART_CHECK_PRICE_ON_VIEW" env-default:"true"`
}

type CartExpiration struct {
	UserCartWindow   time.Duration `yaml:"user_cart_window" env:"CART_USER_WINDOW" env-default:"720h"`
	GuestCartWindow  time.Duration `yaml:"guest_cart_window" env:"CART_GUEST_WINDOW" env-default:"24h"`
	AbandonmentAfter time.Duration `yaml:"abandonment_after" env:"CART_ABANDONMENT_AFTER" env-default:"24h"`
	CleanupAfter     time.Duration `yaml:"cleanup_after" env:"CART_CLEANUP_AFTER" env-default:"168h"`
	EmptyCartAfter   time.Duration `yaml:"empty_cart_after" env:"CART_EMPTY_AFTER" env-default:"1h"`
	RemovedItemsTTL  time.Duration `yaml:"removed_items_ttl" env:"CART_REMOVED_ITEMS_TTL" env-default:"720h"`
	SweepInterval    time.Duration `yaml:"sweep_interval" env:"CART_SWEEP_INTERVAL" env-default:"6h"`
}

type Gateways struct {
	ProductServiceURL string        `yaml:"product_service_url" env:"PRODUCT_SERVICE_URL" env-required:"true"`
	OrderServiceURL   string        `yaml:"order_service_url" env:"ORDER_SERVICE_URL" env-required:"true"`
	Timeout           time.Duration `yaml:"timeout" env:"GATEWAY_TIMEOUT" env-default:"10s"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"cart_events"`
}

type SendGrid struct {
	APIKey    string `yaml:"api_key" env:"SENDGRID_API_KEY" env-default:""`
	FromEmail string `yaml:"from_email" env:"SENDGRID_FROM_EMAIL" env-default:""`
	FromName  string `yaml:"from_name" env:"SENDGRID_FROM_NAME" env-default:""`
}

type Security struct {
	JWTKey string `yaml:"jwt_key" env:"JWT_KEY" env-required:"true"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled" env:"OTEL_ENABLED" env-default:"false"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
	Insecure    bool    `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"false"`
	SampleRatio float64 `yaml:"sample_ratio" env:"OTEL_SAMPLER_RATIO" env-default:"0.1"`
}

type Config struct {
	Env            string `yaml:"env" env:"ENV" env-required:"true"`
	HTTPServer     `yaml:"http_server"`
	Database       Database       `yaml:"database"`
	RedisConnect   RedisConnect   `yaml:"redis"`
	Cache          CacheConfig    `yaml:"cache"`
	CartLimits     CartLimits     `yaml:"cart_limits"`
	CartValidation CartValidation `yaml:"cart_validation"`
	CartExpiration CartExpiration `yaml:"cart_expiration"`
	Gateways       Gateways       `yaml:"gateways"`
	Kafka          Kafka          `yaml:"kafka"`
	SendGrid       SendGrid       `yaml:"sendgrid"`
	Security       Security       `yaml:"security"`
	Tracing        Tracing        `yaml:"tracing"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "gets the config flag value")

		flag.Parse()

		configPath = *flags

		if configPath == "" {
			log.Fatal("Config path is not set")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can not read config file: %s", err.Error())
	}

	return &cfg
}

func (d *Database) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (r *RedisConnect) GetDSN() string {
	return fmt.Sprintf("redis://%s:%s@%s/%d", r.Username, r.Password, r.Host, r.DB)
}
