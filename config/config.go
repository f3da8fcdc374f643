package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	AppConfig Config
	envLoaded bool
)

const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
)

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// Address returns the host:port pair the redis client dials.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MailConfig holds the SMTP connection settings used by utils.Mail.
type MailConfig struct {
	Username        string `json:"username"`
	Password        string `json:"-"`
	From            string `json:"from" validate:"required,email"`
	FromName        string `json:"from_name"`
	Server          string `json:"server" validate:"required"`
	Port            int    `json:"port" validate:"required,gt=0"`
	UseSSL          bool   `json:"use_ssl"`
	UseCredentials  bool   `json:"use_credentials"`
	ValidateCerts   bool   `json:"validate_certs"`
	SuppressSend    bool   `json:"suppress_send"`
	CheckRecipients bool   `json:"check_recipients"`
	TemplateFolder  string `json:"template_folder"`
	LocalName       string `json:"local_name"`
}

// CheckerConfig selects the cache backend and external validator of the
// disposable-email checker.
type CheckerConfig struct {
	DBProvider      string        `json:"db_provider"`
	Redis           RedisConfig   `json:"redis"`
	APIKey          string        `json:"-"`
	APIEndpoint     string        `json:"api_endpoint"`
	APITimeout      time.Duration `json:"api_timeout"`
	CacheTTL        time.Duration `json:"cache_ttl"`
	MinDomainAge    time.Duration `json:"min_domain_age"`
	SeedDomains     []string      `json:"seed_domains"`
	SeedAddresses   []string      `json:"seed_addresses"`
	SourceURL       string        `json:"source_url"`
	RefreshInterval time.Duration `json:"refresh_interval"`
}

type Config struct {
	Environment   string        `json:"environment"`
	ServerPort    string        `json:"server_port"`
	AdminSecret   string        `json:"-"`
	SentryDSN     string        `json:"-"`
	RateLimitSend int           `json:"rate_limit_send"`
	CORSOrigins   []string      `json:"cors_origins"`
	Mail          MailConfig    `json:"mail"`
	Checker       CheckerConfig `json:"checker"`
}

// seedFile is the YAML layout of CHECKER_SEED_FILE.
type seedFile struct {
	Domains   []string `yaml:"domains"`
	Addresses []string `yaml:"addresses"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

// DefaultCheckerConfig returns an in-memory checker configuration.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		DBProvider:  ProviderMemory,
		Redis:       RedisConfig{Host: "localhost", Port: 6379},
		APIEndpoint: "https://emailverification.whoisxmlapi.com/api/v1",
		APITimeout:  5 * time.Second,
		CacheTTL:    24 * time.Hour,
	}
}

func LoadConfig() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	AppConfig = cfg
	logConfig()
	return nil
}

// Load reads the configuration from the environment without touching AppConfig.
func Load() (Config, error) {
	defaults := DefaultCheckerConfig()

	cfg := Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		ServerPort:    getEnv("SERVER_PORT", "5000"),
		AdminSecret:   getEnv("ADMIN_SECRET", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
		RateLimitSend: getEnvAsInt("RATE_LIMIT_SEND", 30),
		CORSOrigins:   getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		Mail: MailConfig{
			Username:        getEnv("MAIL_USERNAME", ""),
			Password:        getEnv("MAIL_PASSWORD", ""),
			From:            getEnv("MAIL_FROM", ""),
			FromName:        getEnv("MAIL_FROM_NAME", ""),
			Server:          getEnv("MAIL_SERVER", ""),
			Port:            getEnvAsInt("MAIL_PORT", 587),
			UseSSL:          getEnvAsBool("MAIL_USE_SSL", false),
			UseCredentials:  getEnvAsBool("USE_CREDENTIALS", true),
			ValidateCerts:   getEnvAsBool("VALIDATE_CERTS", true),
			SuppressSend:    getEnvAsBool("SUPPRESS_SEND", false),
			CheckRecipients: getEnvAsBool("MAIL_CHECK_RECIPIENTS", false),
			TemplateFolder:  getEnv("MAIL_TEMPLATE_FOLDER", ""),
			LocalName:       getEnv("MAIL_LOCAL_NAME", ""),
		},
		Checker: CheckerConfig{
			DBProvider: strings.ToLower(getEnv("CHECKER_DB_PROVIDER", defaults.DBProvider)),
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", defaults.Redis.Host),
				Port:     getEnvAsInt("REDIS_PORT", defaults.Redis.Port),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
			APIKey:          getEnv("CHECKER_API_KEY", ""),
			APIEndpoint:     getEnv("CHECKER_API_ENDPOINT", defaults.APIEndpoint),
			APITimeout:      getEnvAsDuration("CHECKER_API_TIMEOUT", defaults.APITimeout),
			CacheTTL:        getEnvAsDuration("CHECKER_CACHE_TTL", defaults.CacheTTL),
			MinDomainAge:    getEnvAsDuration("CHECKER_MIN_DOMAIN_AGE", 0),
			SeedDomains:     getEnvAsList("CHECKER_BLOCKED_DOMAINS", nil),
			SeedAddresses:   getEnvAsList("CHECKER_BLOCKED_ADDRESSES", nil),
			SourceURL:       getEnv("CHECKER_SOURCE_URL", ""),
			RefreshInterval: getEnvAsDuration("CHECKER_REFRESH_INTERVAL", 24*time.Hour),
		},
	}

	if path := getEnv("CHECKER_SEED_FILE", ""); path != "" {
		if err := cfg.Checker.LoadSeedFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.Checker.Validate(); err != nil {
		return cfg, err
	}
	if cfg.Environment == "production" && cfg.AdminSecret == "" {
		return cfg, fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return cfg, nil
}

// Validate checks the fields NewCheckerFromConfig depends on.
func (c CheckerConfig) Validate() error {
	switch c.DBProvider {
	case ProviderMemory:
	case ProviderRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required when CHECKER_DB_PROVIDER is redis")
		}
		if c.Redis.Port <= 0 {
			return fmt.Errorf("invalid REDIS_PORT: %d", c.Redis.Port)
		}
	default:
		return fmt.Errorf("unsupported CHECKER_DB_PROVIDER %q (want memory or redis)", c.DBProvider)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CHECKER_CACHE_TTL must not be negative")
	}
	return nil
}

// LoadSeedFile appends the domains and addresses listed in a YAML file to the
// seed lists.
func (c *CheckerConfig) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	c.SeedDomains = append(c.SeedDomains, seeds.Domains...)
	c.SeedAddresses = append(c.SeedAddresses, seeds.Addresses...)
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsDuration accepts Go durations ("36h") or a plain number of seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Mail: %s@%s:%d (suppress=%t)",
		AppConfig.Mail.Username,
		AppConfig.Mail.Server,
		AppConfig.Mail.Port,
		AppConfig.Mail.SuppressSend)
	log.Printf("Checker: provider=%s ttl=%s api_key=%t seeds=%d",
		AppConfig.Checker.DBProvider,
		AppConfig.Checker.CacheTTL,
		AppConfig.Checker.APIKey != "",
		len(AppConfig.Checker.SeedDomains)+len(AppConfig.Checker.SeedAddresses))
	if AppConfig.Checker.DBProvider == ProviderRedis {
		log.Printf("Redis: %s/%d", AppConfig.Checker.Redis.Address(), AppConfig.Checker.Redis.DB)
	}
}
