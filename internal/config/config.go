package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"signet/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	S3     S3Config
	Log    LogConfig
	CORS   CORSConfig
	Issuer IssuerConfig
	QR     QRConfig
	Email  EmailConfig
	Jobs   JobsConfig
	Auth   AuthConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds JWT signing and expiry settings.
type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_expiry"`
	Issuer             string        `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings for the signing key bundle.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	BundleKey string `mapstructure:"bundle_key"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IssuerConfig holds IRN generation and sequence settings.
type IssuerConfig struct {
	Secret              string  `mapstructure:"secret"`
	ServiceID           string  `mapstructure:"service_id"`
	SequenceCeiling     int64   `mapstructure:"sequence_ceiling"`
	MaxBatchSize        int     `mapstructure:"max_batch_size"`
	RegistryCapacity    int     `mapstructure:"registry_capacity"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
}

// QRConfig holds QR payload and signing key settings.
type QRConfig struct {
	PublicKeyPEM  string `mapstructure:"public_key_pem"`
	BundlePath    string `mapstructure:"bundle_path"`
	UseS3Bundle   bool   `mapstructure:"use_s3_bundle"`
	VerifyBaseURL string `mapstructure:"verify_base_url"`
	DefaultFormat string `mapstructure:"default_format"`
}

// EmailConfig holds alert delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	AlertTo     string `mapstructure:"alert_to"`
}

// JobsConfig holds bulk job lifecycle settings.
type JobsConfig struct {
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// AuthConfig holds API client credentials.
//
// Credentials is a comma-separated list of entries shaped
// id|organization|bcrypt_hash|role so a small static client set can be
// configured without a user store.
type AuthConfig struct {
	Credentials string `mapstructure:"credentials"`
}

// Clients parses the configured credentials. Malformed entries are
// skipped rather than failing startup.
func (a *AuthConfig) Clients() map[string]*domain.APIClient {
	clients := make(map[string]*domain.APIClient)
	for _, entry := range strings.Split(a.Credentials, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			continue
		}
		role := domain.ClientRole(parts[3])
		if role != domain.RoleIssuer && role != domain.RoleAdmin {
			role = domain.RoleIssuer
		}
		clients[parts[0]] = &domain.APIClient{
			ID:           parts[0],
			Organization: parts[1],
			SecretHash:   parts[2],
			Role:         role,
			IsActive:     true,
		}
	}
	return clients
}

// Load reads configuration from environment variables with the SIGNET_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIGNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "signet")
	v.SetDefault("db.password", "signet_secret")
	v.SetDefault("db.name", "signet_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "15m")
	v.SetDefault("jwt.refresh_expiry", "168h")
	v.SetDefault("jwt.issuer", "signet")

	// S3 defaults
	v.SetDefault("s3.region", "ap-south-1")
	v.SetDefault("s3.bucket", "signet-keys")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.bundle_key", "qr/public_key_bundle.pem")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Issuer defaults
	v.SetDefault("issuer.secret", "change-me-in-production")
	v.SetDefault("issuer.service_id", "SIGNET01")
	v.SetDefault("issuer.sequence_ceiling", 999999999)
	v.SetDefault("issuer.max_batch_size", 1000)
	v.SetDefault("issuer.registry_capacity", 100000)
	v.SetDefault("issuer.similarity_threshold", 0.8)

	// QR defaults
	v.SetDefault("qr.public_key_pem", "")
	v.SetDefault("qr.bundle_path", "")
	v.SetDefault("qr.use_s3_bundle", false)
	v.SetDefault("qr.verify_base_url", "http://localhost:8080/api/v1/verify")
	v.SetDefault("qr.default_format", "structured")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-south-1")
	v.SetDefault("email.from_address", "noreply@signet.local")
	v.SetDefault("email.from_name", "Signet")
	v.SetDefault("email.alert_to", "")

	// Jobs defaults
	v.SetDefault("jobs.retention", "24h")
	v.SetDefault("jobs.cleanup_interval", "1h")

	// Auth defaults
	v.SetDefault("auth.credentials", "")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                 "SIGNET_SERVER_PORT",
		"server.read_timeout":         "SIGNET_SERVER_READ_TIMEOUT",
		"server.write_timeout":        "SIGNET_SERVER_WRITE_TIMEOUT",
		"server.environment":          "SIGNET_SERVER_ENVIRONMENT",
		"db.host":                     "SIGNET_DB_HOST",
		"db.port":                     "SIGNET_DB_PORT",
		"db.user":                     "SIGNET_DB_USER",
		"db.password":                 "SIGNET_DB_PASSWORD",
		"db.name":                     "SIGNET_DB_NAME",
		"db.sslmode":                  "SIGNET_DB_SSLMODE",
		"db.max_open":                 "SIGNET_DB_MAX_OPEN",
		"db.max_idle":                 "SIGNET_DB_MAX_IDLE",
		"jwt.secret":                  "SIGNET_JWT_SECRET",
		"jwt.access_expiry":           "SIGNET_JWT_ACCESS_EXPIRY",
		"jwt.refresh_expiry":          "SIGNET_JWT_REFRESH_EXPIRY",
		"jwt.issuer":                  "SIGNET_JWT_ISSUER",
		"s3.region":                   "SIGNET_S3_REGION",
		"s3.bucket":                   "SIGNET_S3_BUCKET",
		"s3.endpoint":                 "SIGNET_S3_ENDPOINT",
		"s3.access_key":               "SIGNET_S3_ACCESS_KEY",
		"s3.secret_key":               "SIGNET_S3_SECRET_KEY",
		"s3.bundle_key":               "SIGNET_S3_BUNDLE_KEY",
		"log.level":                   "SIGNET_LOG_LEVEL",
		"log.format":                  "SIGNET_LOG_FORMAT",
		"cors.allowed_origins":        "SIGNET_CORS_ALLOWED_ORIGINS",
		"issuer.secret":               "SIGNET_ISSUER_SECRET",
		"issuer.service_id":           "SIGNET_ISSUER_SERVICE_ID",
		"issuer.sequence_ceiling":     "SIGNET_ISSUER_SEQUENCE_CEILING",
		"issuer.max_batch_size":       "SIGNET_ISSUER_MAX_BATCH_SIZE",
		"issuer.registry_capacity":    "SIGNET_ISSUER_REGISTRY_CAPACITY",
		"issuer.similarity_threshold": "SIGNET_ISSUER_SIMILARITY_THRESHOLD",
		"qr.public_key_pem":           "SIGNET_QR_PUBLIC_KEY_PEM",
		"qr.bundle_path":              "SIGNET_QR_BUNDLE_PATH",
		"qr.use_s3_bundle":            "SIGNET_QR_USE_S3_BUNDLE",
		"qr.verify_base_url":          "SIGNET_QR_VERIFY_BASE_URL",
		"qr.default_format":           "SIGNET_QR_DEFAULT_FORMAT",
		"email.provider":              "SIGNET_EMAIL_PROVIDER",
		"email.region":                "SIGNET_EMAIL_REGION",
		"email.from_address":          "SIGNET_EMAIL_FROM_ADDRESS",
		"email.from_name":             "SIGNET_EMAIL_FROM_NAME",
		"email.alert_to":              "SIGNET_EMAIL_ALERT_TO",
		"jobs.retention":              "SIGNET_JOBS_RETENTION",
		"jobs.cleanup_interval":       "SIGNET_JOBS_CLEANUP_INTERVAL",
		"auth.credentials":            "SIGNET_AUTH_CREDENTIALS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if SIGNET_SERVER_PORT
	// is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("SIGNET_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:             v.GetString("jwt.secret"),
		AccessTokenExpiry:  v.GetDuration("jwt.access_expiry"),
		RefreshTokenExpiry: v.GetDuration("jwt.refresh_expiry"),
		Issuer:             v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
		BundleKey: v.GetString("s3.bundle_key"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Issuer = IssuerConfig{
		Secret:              v.GetString("issuer.secret"),
		ServiceID:           v.GetString("issuer.service_id"),
		SequenceCeiling:     v.GetInt64("issuer.sequence_ceiling"),
		MaxBatchSize:        v.GetInt("issuer.max_batch_size"),
		RegistryCapacity:    v.GetInt("issuer.registry_capacity"),
		SimilarityThreshold: v.GetFloat64("issuer.similarity_threshold"),
	}
	cfg.QR = QRConfig{
		PublicKeyPEM:  v.GetString("qr.public_key_pem"),
		BundlePath:    v.GetString("qr.bundle_path"),
		UseS3Bundle:   v.GetBool("qr.use_s3_bundle"),
		VerifyBaseURL: v.GetString("qr.verify_base_url"),
		DefaultFormat: v.GetString("qr.default_format"),
	}
	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		AlertTo:     v.GetString("email.alert_to"),
	}
	cfg.Jobs = JobsConfig{
		Retention:       v.GetDuration("jobs.retention"),
		CleanupInterval: v.GetDuration("jobs.cleanup_interval"),
	}
	cfg.Auth = AuthConfig{
		Credentials: v.GetString("auth.credentials"),
	}

	return cfg, nil
}
