package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/internal/infrastructure/pathao"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	StorageDriver string
	DBUrl         string
	JWTSecret     string
	JWTIssuer     string
	AllowedOrigin string
	// DB Config
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnIdleTime time.Duration
	// R2 consignment receipt archive (disabled when the bucket is empty)
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2ReceiptBucket   string
	R2UploadTimeout   time.Duration
	// Cache
	CacheCoverageTTL time.Duration
	CacheEnumsTTL    time.Duration
	// Courier (Pathao)
	CourierMode              string
	CourierSandbox           CourierCredentials
	CourierLive              CourierCredentials
	CourierTimeout           time.Duration
	CourierMaxRetries        int
	CourierRetryBackoff      time.Duration
	CourierRequestsPerSecond float64
	CourierDedupeTTL         time.Duration
	// Shipping
	FreeShippingThreshold float64
	DefaultShippingCharge float64
	CourierMarkupPercent  float64
	CourierMarkupFlat     float64
	DefaultItemWeightKg   float64
	// Feature toggles
	EnableRiderDelivery   bool
	EnableCourierDelivery bool
	EnabledPaymentMethods []string
	// Kafka order events (log notifier when no brokers are set)
	KafkaBrokers          []string
	KafkaOrderEventsTopic string
	// Payment gateway callback shared secret
	PaymentCallbackToken string
	// Rate limits: per client IP overall, per operator on courier-facing routes
	RateLimitPerSecond     float64
	RateLimitBurst         int
	DispatchLimitPerMinute float64
	DispatchLimitBurst     int
	// Business Rules
	MaxOrderQuantity int
}

type CourierCredentials struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	StoreID      int64
}

func LoadConfig() *Config {
	// 1. Check if a specific config file is requested via env var
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		// 2. Default fallback: .env for local dev, system env vars elsewhere
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	if cfg.JWTSecret == "default_secret_CHANGE_ME" {
		log.Println("WARNING: Using default JWT secret. Setting up for failure in production.")
	}
	return cfg
}

// FromEnv reads the configuration from the process environment without validating it.
func FromEnv() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StoragePostgres)),
		DBUrl:         getEnv("DB_DSN", ""),
		JWTSecret:     getEnv("JWT_SECRET", "default_secret_CHANGE_ME"),
		JWTIssuer:     getEnv("JWT_ISSUER", "orderdesk"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),

		DBMaxConns:        getInt32Env("DB_MAX_CONNS", 50),
		DBMinConns:        getInt32Env("DB_MIN_CONNS", 10),
		DBMaxConnIdleTime: getDurationEnv("DB_MAX_CONN_IDLE_TIME", time.Minute*15),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
		R2ReceiptBucket:   getEnv("R2_RECEIPT_BUCKET", ""),
		R2UploadTimeout:   getDurationEnv("R2_UPLOAD_TIMEOUT", 30*time.Second),

		// Coverage changes rarely: 6h. Enums: 10m.
		CacheCoverageTTL: getDurationEnv("CACHE_COVERAGE_TTL", 6*time.Hour),
		CacheEnumsTTL:    getDurationEnv("CACHE_ENUMS_TTL", 10*time.Minute),

		CourierMode:              strings.ToLower(getEnv("COURIER_MODE", string(pathao.ModeSandbox))),
		CourierSandbox:           courierCredentials("PATHAO_SANDBOX"),
		CourierLive:              courierCredentials("PATHAO_LIVE"),
		CourierTimeout:           getDurationEnv("COURIER_TIMEOUT", 15*time.Second),
		CourierMaxRetries:        getIntEnv("COURIER_MAX_RETRIES", 2),
		CourierRetryBackoff:      getDurationEnv("COURIER_RETRY_BACKOFF", 500*time.Millisecond),
		CourierRequestsPerSecond: getFloatEnv("COURIER_REQUESTS_PER_SECOND", 5),
		CourierDedupeTTL:         getDurationEnv("COURIER_DEDUPE_TTL", 24*time.Hour),

		FreeShippingThreshold: getFloatEnv("FREE_SHIPPING_THRESHOLD", 0),
		DefaultShippingCharge: getFloatEnv("DEFAULT_SHIPPING_CHARGE", 150),
		CourierMarkupPercent:  getFloatEnv("COURIER_MARKUP_PERCENT", 0),
		CourierMarkupFlat:     getFloatEnv("COURIER_MARKUP_FLAT", 0),
		DefaultItemWeightKg:   getFloatEnv("DEFAULT_ITEM_WEIGHT_KG", 0.5),

		EnableRiderDelivery:   getBoolEnv("ENABLE_RIDER_DELIVERY", true),
		EnableCourierDelivery: getBoolEnv("ENABLE_COURIER_DELIVERY", true),
		EnabledPaymentMethods: getListEnv("ENABLED_PAYMENT_METHODS", []string{"cod"}),

		KafkaBrokers:          getListEnv("KAFKA_BROKERS", nil),
		KafkaOrderEventsTopic: getEnv("KAFKA_ORDER_EVENTS_TOPIC", "order-status-events"),

		PaymentCallbackToken: getEnv("PAYMENT_CALLBACK_TOKEN", ""),

		RateLimitPerSecond:     getFloatEnv("RATE_LIMIT_PER_SECOND", 50),
		RateLimitBurst:         getIntEnv("RATE_LIMIT_BURST", 100),
		DispatchLimitPerMinute: getFloatEnv("DISPATCH_LIMIT_PER_MINUTE", 30),
		DispatchLimitBurst:     getIntEnv("DISPATCH_LIMIT_BURST", 5),

		MaxOrderQuantity: getIntEnv("MAX_ORDER_QUANTITY", 1000),
	}
}

func courierCredentials(prefix string) CourierCredentials {
	return CourierCredentials{
		BaseURL:      getEnv(prefix+"_BASE_URL", ""),
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		Username:     getEnv(prefix+"_USERNAME", ""),
		Password:     getEnv(prefix+"_PASSWORD", ""),
		StoreID:      getInt64Env(prefix+"_STORE_ID", 0),
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DBUrl == "" {
			errs = append(errs, errors.New("DB_DSN environment variable is required"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.CourierMode != string(pathao.ModeSandbox) && c.CourierMode != string(pathao.ModeLive) {
		errs = append(errs, fmt.Errorf("COURIER_MODE must be sandbox or live, got %q", c.CourierMode))
	}
	for _, m := range c.EnabledPaymentMethods {
		if _, err := domain.ParsePaymentMethod(m); err != nil {
			errs = append(errs, fmt.Errorf("ENABLED_PAYMENT_METHODS: %w", err))
		}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaOrderEventsTopic == "" {
		errs = append(errs, errors.New("KAFKA_ORDER_EVENTS_TOPIC is required when KAFKA_BROKERS is set"))
	}
	if c.MaxOrderQuantity <= 0 {
		errs = append(errs, errors.New("MAX_ORDER_QUANTITY must be positive"))
	}
	if _, err := c.DispatchSettings(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DispatchSettings is the startup snapshot handed to the usecases.
func (c *Config) DispatchSettings() (domain.DispatchSettings, error) {
	methods := make([]domain.PaymentMethod, 0, len(c.EnabledPaymentMethods))
	for _, m := range c.EnabledPaymentMethods {
		if pm, err := domain.ParsePaymentMethod(m); err == nil {
			methods = append(methods, pm)
		}
	}
	s := domain.DispatchSettings{
		RiderDeliveryEnabled:   c.EnableRiderDelivery,
		CourierDeliveryEnabled: c.EnableCourierDelivery,
		EnabledPaymentMethods:  methods,
		FreeShippingThreshold:  c.FreeShippingThreshold,
		DefaultShippingCharge:  c.DefaultShippingCharge,
		CourierMarkupPercent:   c.CourierMarkupPercent,
		CourierMarkupFlat:      c.CourierMarkupFlat,
		DefaultItemWeight:      c.DefaultItemWeightKg,
	}
	for name, v := range map[string]float64{
		"FREE_SHIPPING_THRESHOLD": s.FreeShippingThreshold,
		"DEFAULT_SHIPPING_CHARGE": s.DefaultShippingCharge,
		"COURIER_MARKUP_PERCENT":  s.CourierMarkupPercent,
		"COURIER_MARKUP_FLAT":     s.CourierMarkupFlat,
		"DEFAULT_ITEM_WEIGHT_KG":  s.DefaultItemWeight,
	} {
		if v < 0 {
			return s, fmt.Errorf("%s must not be negative", name)
		}
	}
	return s, nil
}

// PathaoConfig selects the courier environment. Credentials are checked by pathao.NewClient.
func (c *Config) PathaoConfig() pathao.Config {
	return pathao.Config{
		Mode:              pathao.Mode(c.CourierMode),
		Sandbox:           pathao.Credentials(c.CourierSandbox),
		Live:              pathao.Credentials(c.CourierLive),
		Timeout:           c.CourierTimeout,
		MaxRetries:        c.CourierMaxRetries,
		RetryBackoff:      c.CourierRetryBackoff,
		RequestsPerSecond: c.CourierRequestsPerSecond,
		DedupeTTL:         c.CourierDedupeTTL,
	}
}

// ArchiveEnabled is true when consignment receipts should be written to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2ReceiptBucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}

func getInt64Env(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
		log.Printf("Invalid int64 for %s, using fallback", key)
	}
	return fallback
}
