package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the service configuration. It is loaded once in main and
// passed into each component constructor; nothing reads the environment after
// startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	ZATCA    ZATCAConfig
	Seller   SellerConfig
	Signing  SigningConfig
	Storage  StorageConfig
	Email    EmailConfig
	Logging  LoggingConfig
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port    string
	Host    string
	Env     string
	BaseURL string
}

// DatabaseConfig represents the database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig represents the Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ZATCAConfig represents the ZATCA API configuration. TestMode selects the
// developer-portal base URL; BaseURL overrides both when set.
type ZATCAConfig struct {
	TestMode bool
	BaseURL  string
	APIKey   string
	Secret   string
	Timeout  time.Duration
}

// SellerConfig represents the seller identity stamped on every invoice
type SellerConfig struct {
	CompanyName string
	VATNumber   string
	CRNumber    string
	Street      string
	City        string
	PostalZone  string
	Country     string
}

// SigningConfig represents the signing key material configuration
type SigningConfig struct {
	CertificatePath string
	PrivateKeyPath  string
	StubSecret      string
}

// StorageConfig represents the S3-compatible archive storage configuration
type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// EmailConfig represents the email configuration
type EmailConfig struct {
	ResendAPIKey    string
	FromAddress     string
	OperatorAddress string
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load the .env file when present
	if err := godotenv.Load(); err != nil {
		// Not critical, the environment may be set directly
	}

	config := &Config{
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8082"),
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Env:     getEnv("SERVER_ENV", "development"),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8082"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PGHOST", "localhost"),
			Port:     getEnv("PGPORT", "5432"),
			User:     getEnv("PGUSER", "postgres"),
			Password: getEnv("PGPASSWORD", "postgres"),
			Name:     getEnv("PGDATABASE", "zatca"),
			SSLMode:  getEnv("DB_SSLMODE", "require"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		ZATCA: ZATCAConfig{
			TestMode: getEnvAsBool("ZATCA_TEST_MODE", true),
			BaseURL:  getEnv("ZATCA_BASE_URL", ""),
			APIKey:   getEnv("ZATCA_API_KEY", ""),
			Secret:   getEnv("ZATCA_SECRET", ""),
			Timeout:  getEnvAsDuration("ZATCA_TIMEOUT", 30*time.Second),
		},
		Seller: SellerConfig{
			CompanyName: getEnv("SELLER_COMPANY_NAME", ""),
			VATNumber:   getEnv("SELLER_VAT_NUMBER", ""),
			CRNumber:    getEnv("SELLER_CR_NUMBER", ""),
			Street:      getEnv("SELLER_STREET", ""),
			City:        getEnv("SELLER_CITY", "Riyadh"),
			PostalZone:  getEnv("SELLER_POSTAL_ZONE", ""),
			Country:     getEnv("SELLER_COUNTRY", "SA"),
		},
		Signing: SigningConfig{
			CertificatePath: getEnv("SIGNING_CERT_PATH", ""),
			PrivateKeyPath:  getEnv("SIGNING_KEY_PATH", ""),
			StubSecret:      getEnv("SIGNING_STUB_SECRET", ""),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "me-south-1"),
			Bucket:          getEnv("S3_BUCKET", "zatca-documents"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
		Email: EmailConfig{
			ResendAPIKey:    getEnv("RESEND_API_KEY", ""),
			FromAddress:     getEnv("EMAIL_FROM_ADDRESS", "invoices@localhost"),
			OperatorAddress: getEnv("EMAIL_OPERATOR_ADDRESS", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as a boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets an environment variable as a duration
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// IsDevelopment returns true when running in development
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true when running in production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" sslmode=" + c.Database.SSLMode
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}
