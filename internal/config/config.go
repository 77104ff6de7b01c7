// Package config collects the settings of the contacts service from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gitlab.com/dirk.krummacker/contact-cards/internal/qrcode"
	"gitlab.com/dirk.krummacker/contact-cards/internal/randomuser"
	"gitlab.com/dirk.krummacker/contact-cards/internal/scanner"
	"gitlab.com/dirk.krummacker/contact-cards/internal/state"
	"gitlab.com/dirk.krummacker/contact-cards/internal/store"
)

// Bounds of the QR code edge length in pixels.
const (
	MinQRSize = 64
	MaxQRSize = 2048
)

// Config is the complete configuration of the service.
type Config struct {
	DBDriver string
	DBDSN    string
	DBUser   string
	DBPwd    string
	DBHost   string
	DBName   string

	Port       int
	GinLogging bool
	LogLevel   slog.Level

	RemoteBaseURL string
	RemoteTimeout time.Duration
	QRSize        int
	ListingGrace  time.Duration
	ScanIdle      time.Duration
}

// FromEnv reads the configuration from the environment. Unset variables take their defaults;
// malformed values are reported as errors.
//
// Usage example on the command line:
// > DB_DRIVER=mysql DBHOST=localhost DBUSER=dirk DBPWD=bullo92 PORT=8080 GIN_LOGGING=OFF go run main.go
func FromEnv() (Config, error) {
	cfg := Config{
		DBDriver:      store.DriverSQLite,
		DBDSN:         os.Getenv("DB_DSN"),
		DBUser:        os.Getenv("DBUSER"),
		DBPwd:         os.Getenv("DBPWD"),
		DBHost:        os.Getenv("DBHOST"),
		DBName:        "test",
		Port:          8080,
		GinLogging:    !strings.EqualFold(os.Getenv("GIN_LOGGING"), "off"),
		LogLevel:      slog.LevelInfo,
		RemoteBaseURL: randomuser.DefaultBaseURL,
		RemoteTimeout: 10 * time.Second,
		QRSize:        qrcode.DefaultSize,
		ListingGrace:  state.DefaultGrace,
		ScanIdle:      scanner.DefaultIdleTimeout,
	}

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		switch strings.ToLower(driver) {
		case store.DriverSQLite, store.DriverMySQL, store.DriverPostgres:
			cfg.DBDriver = strings.ToLower(driver)
		default:
			return Config{}, fmt.Errorf("invalid DB_DRIVER %q", driver)
		}
	}
	if cfg.DBDriver == store.DriverSQLite && cfg.DBDSN == "" {
		cfg.DBDSN = "contacts.db"
	}
	if name := os.Getenv("DBNAME"); name != "" {
		cfg.DBName = name
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return Config{}, fmt.Errorf("could not parse PORT env variable %q", port)
		}
		cfg.Port = p
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
	}
	if url := os.Getenv("REMOTE_BASE_URL"); url != "" {
		cfg.RemoteBaseURL = url
	}
	var err error
	if cfg.RemoteTimeout, err = durationFromEnv("REMOTE_TIMEOUT", cfg.RemoteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ListingGrace, err = durationFromEnv("LISTING_GRACE", cfg.ListingGrace); err != nil {
		return Config{}, err
	}
	if cfg.ScanIdle, err = durationFromEnv("SCAN_IDLE_TIMEOUT", cfg.ScanIdle); err != nil {
		return Config{}, err
	}
	if size := os.Getenv("QR_SIZE"); size != "" {
		s, err := strconv.Atoi(size)
		if err != nil || s < MinQRSize || s > MaxQRSize {
			return Config{}, fmt.Errorf("invalid QR_SIZE %q, must be between %d and %d", size, MinQRSize, MaxQRSize)
		}
		cfg.QRSize = s
	}
	return cfg, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, value)
	}
	return d, nil
}

// Addr is the listen address of the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// DSN returns the data source name for the configured driver. For MySQL it is assembled from
// DBUSER, DBPWD, DBHOST and DBNAME unless DB_DSN is set.
func (c Config) DSN() string {
	if c.DBDriver == store.DriverMySQL && c.DBDSN == "" {
		return fmt.Sprintf("%s:%s@tcp(%s)/%s", c.DBUser, c.DBPwd, c.DBHost, c.DBName)
	}
	return c.DBDSN
}
