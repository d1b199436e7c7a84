package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	AppPort string `yaml:"app_port"`

	DBDriver      string `yaml:"db_driver"`
	SQLitePath    string `yaml:"sqlite_path"`
	DBAutoMigrate bool   `yaml:"db_auto_migrate"`

	MySQLHost string `yaml:"mysql_host"`
	MySQLPort string `yaml:"mysql_port"`
	MySQLDB   string `yaml:"mysql_db"`
	MySQLUser string `yaml:"mysql_user"`
	MySQLPass string `yaml:"mysql_pass"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	IdempTTLSecs int `yaml:"idempotency_ttl_seconds"`

	JWTSecret string `yaml:"jwt_secret"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	LoanLockTTLSecs int `yaml:"loan_lock_ttl_seconds"`
	ConflictRetries int `yaml:"conflict_retries"`

	// BackfillCron empty (or "off") disables the schedule backfill job.
	BackfillCron  string `yaml:"backfill_cron"`
	BackfillBatch int    `yaml:"backfill_batch"`
}

func defaults() *Config {
	return &Config{
		AppPort:       "8080",
		DBDriver:      DriverMySQL,
		SQLitePath:    "loanflow.db",
		DBAutoMigrate: true,
		MySQLHost:     "mysql",
		MySQLPort:     "3306",
		MySQLDB:       "loanflow",
		MySQLUser:     "loanflow",
		MySQLPass:     "loanflow",

		RedisAddr:    "redis:6379",
		IdempTTLSecs: 300,

		LogLevel:  "info",
		LogFormat: "json",

		LoanLockTTLSecs: 10,
		ConflictRetries: 2,
		BackfillCron:    "@every 5m",
		BackfillBatch:   100,
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getbool(k string, d bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then environment variables. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.loadEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.AppPort = getenv("APP_PORT", c.AppPort)
	c.DBDriver = getenv("DB_DRIVER", c.DBDriver)
	c.SQLitePath = getenv("SQLITE_PATH", c.SQLitePath)
	c.MySQLHost = getenv("MYSQL_HOST", c.MySQLHost)
	c.MySQLPort = getenv("MYSQL_PORT", c.MySQLPort)
	c.MySQLDB = getenv("MYSQL_DB", c.MySQLDB)
	c.MySQLUser = getenv("MYSQL_USER", c.MySQLUser)
	c.MySQLPass = getenv("MYSQL_PASS", c.MySQLPass)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.JWTSecret = getenv("JWT_SECRET", c.JWTSecret)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenv("LOG_FORMAT", c.LogFormat)
	c.BackfillCron = getenv("BACKFILL_CRON", c.BackfillCron)
	if c.BackfillCron == "off" {
		c.BackfillCron = ""
	}

	var errs []error
	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &c.RedisDB},
		{"IDEMPOTENCY_TTL_SECONDS", &c.IdempTTLSecs},
		{"LOAN_LOCK_TTL_SECONDS", &c.LoanLockTTLSecs},
		{"CONFLICT_RETRIES", &c.ConflictRetries},
		{"BACKFILL_BATCH", &c.BackfillBatch},
	}
	for _, it := range ints {
		n, err := getint(it.key, *it.dst)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*it.dst = n
	}
	auto, err := getbool("DB_AUTO_MIGRATE", c.DBAutoMigrate)
	if err != nil {
		errs = append(errs, err)
	}
	c.DBAutoMigrate = auto
	return errors.Join(errs...)
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL:
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want mysql or sqlite)", c.DBDriver)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.RedisAddr == "" {
		return errors.New("missing REDIS_ADDR")
	}
	if c.JWTSecret == "" {
		return errors.New("missing JWT_SECRET")
	}
	if c.IdempTTLSecs <= 0 || c.LoanLockTTLSecs <= 0 {
		return errors.New("IDEMPOTENCY_TTL_SECONDS and LOAN_LOCK_TTL_SECONDS must be positive")
	}
	if c.ConflictRetries < 0 {
		return errors.New("CONFLICT_RETRIES must not be negative")
	}
	if c.BackfillCron != "" {
		if _, err := cron.ParseStandard(c.BackfillCron); err != nil {
			return fmt.Errorf("invalid BACKFILL_CRON %q: %w", c.BackfillCron, err)
		}
		if c.BackfillBatch <= 0 {
			return errors.New("BACKFILL_BATCH must be positive")
		}
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN returns the connection string for the selected driver.
func (c *Config) DSN() string {
	if c.DBDriver == DriverSQLite {
		return c.SQLitePath
	}
	return c.MySQLDSN()
}

func (c *Config) IdempotencyTTL() time.Duration { return time.Duration(c.IdempTTLSecs) * time.Second }
func (c *Config) LoanLockTTL() time.Duration    { return time.Duration(c.LoanLockTTLSecs) * time.Second }
