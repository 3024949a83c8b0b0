package infra

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backends selected by the DATABASE_URL scheme.
const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBDriver    string
	// DBPath is the SQLite file path when DBDriver is sqlite.
	DBPath string

	MonoToken           string
	MonoBaseURL         string
	JarTitle            string
	JarID               string
	PollInterval        time.Duration
	ClientInfoTTL       time.Duration
	BankTimeout         time.Duration
	// StatementInterval is the minimum spacing between statement requests.
	StatementInterval   time.Duration
	StatementWindow     time.Duration
	SteadyStateWindow   time.Duration
	BootstrapLimit      int
	RehydrateLimit      int
	AnonymousName       string
	UnknownSenderName   string
	DefaultLocale       string
	DisplayTimeZone     string
	AllowedOrigins      []string
	// TrustedProxies lists the peers whose forwarded headers are honoured.
	TrustedProxies      []string
	StaticDir           string
	GeoIPDBPath         string
	ConfigFile          string
	HTTPReadTimeout     time.Duration
	HTTPIdleTimeout     time.Duration
	ShutdownTimeout     time.Duration
	RateLimitGeneral    int
	RateLimitTest       int
	RateLimitBank       int
	RateLimitGeneralPer time.Duration
	RateLimitTestPer    time.Duration
	RateLimitBankPer    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "3000"),
		DatabaseURL:         getEnv("DATABASE_URL", "sqlite://data/donations.db"),
		MonoToken:           strings.TrimSpace(os.Getenv("MONO_TOKEN")),
		MonoBaseURL:         getEnv("MONO_BASE_URL", "https://api.monobank.ua"),
		JarTitle:            getEnv("JAR_TITLE", "На фотоапарат"),
		JarID:               strings.TrimSpace(os.Getenv("JAR_ID")),
		PollInterval:        time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 30)),
		ClientInfoTTL:       time.Second * time.Duration(getEnvInt("CLIENT_INFO_TTL_SECONDS", 60)),
		BankTimeout:         time.Second * time.Duration(getEnvInt("BANK_TIMEOUT_SECONDS", 10)),
		StatementInterval:   time.Second * time.Duration(getEnvInt("STATEMENT_MIN_INTERVAL_SECONDS", 60)),
		StatementWindow:     24 * time.Hour * time.Duration(getEnvInt("STATEMENT_WINDOW_DAYS", 30)),
		SteadyStateWindow:   time.Hour * time.Duration(getEnvInt("STEADY_WINDOW_HOURS", 24)),
		BootstrapLimit:      getEnvInt("BOOTSTRAP_LIMIT", 3),
		RehydrateLimit:      getEnvInt("REHYDRATE_LIMIT", 1000),
		AnonymousName:       getEnv("ANONYMOUS_NAME", "Anonymous"),
		UnknownSenderName:   getEnv("UNKNOWN_SENDER_NAME", "Unknown sender"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "uk"),
		DisplayTimeZone:     getEnv("DISPLAY_TZ", "Europe/Kyiv"),
		AllowedOrigins:      splitList(os.Getenv("ALLOWED_ORIGINS")),
		TrustedProxies:      splitList(getEnv("TRUSTED_PROXIES", "127.0.0.0/8,::1/128")),
		StaticDir:           getEnv("STATIC_DIR", "public"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		ConfigFile:          os.Getenv("CONFIG_FILE"),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		ShutdownTimeout:     time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 15)),
		RateLimitGeneral:    getEnvInt("RATE_LIMIT_GENERAL", 100),
		RateLimitTest:       getEnvInt("RATE_LIMIT_TEST_DONATION", 10),
		RateLimitBank:       getEnvInt("RATE_LIMIT_BANK", 5),
		RateLimitGeneralPer: 15 * time.Minute,
		RateLimitTestPer:    5 * time.Minute,
		RateLimitBankPer:    time.Minute,
	}

	driver, path, err := parseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	cfg.DBDriver = driver
	cfg.DBPath = path

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.ClientInfoTTL <= 0 {
		return nil, fmt.Errorf("CLIENT_INFO_TTL_SECONDS must be positive")
	}
	if cfg.StatementInterval <= 0 {
		return nil, fmt.Errorf("STATEMENT_MIN_INTERVAL_SECONDS must be positive")
	}
	if cfg.BootstrapLimit <= 0 {
		return nil, fmt.Errorf("BOOTSTRAP_LIMIT must be positive")
	}
	for _, p := range cfg.TrustedProxies {
		if _, err := ParseProxy(p); err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
	}

	return cfg, nil
}

// BankEnabled reports whether a bank token was configured.
func (c *Config) BankEnabled() bool {
	return c != nil && c.MonoToken != ""
}

// Location resolves the display time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.DisplayTimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.DisplayTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDatabaseURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DBDriverPostgres, "", nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("DATABASE_URL: sqlite path is empty")
		}
		return DBDriverSQLite, path, nil
	case strings.HasPrefix(raw, "sqlite:"):
		path := strings.TrimPrefix(raw, "sqlite:")
		if path == "" {
			return "", "", fmt.Errorf("DATABASE_URL: sqlite path is empty")
		}
		return DBDriverSQLite, path, nil
	default:
		return "", "", fmt.Errorf("DATABASE_URL: unsupported scheme in %q", raw)
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseProxy accepts a CIDR or a bare address, which matches only itself.
func ParseProxy(v string) (netip.Prefix, error) {
	if strings.Contains(v, "/") {
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(v)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
