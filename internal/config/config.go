package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName        string
	Environment    string
	StorageDriver  string
	HTTP           HTTPConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Journal        JournalConfig
	Context        ContextConfig
	Logger         LoggerConfig
	Migrations     MigrationsConfig
	Simulation     SimulationConfig
	Counterparties CounterpartiesConfig
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxConn      int
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	// LeaseEnabled guards the daily pipeline across instances.
	LeaseEnabled bool
	LeaseKey     string
	LeaseTTL     time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type JournalConfig struct {
	Path      string
	Bucket    string
	Retention time.Duration
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// SimulationConfig holds the clock and the planning constants.
type SimulationConfig struct {
	DayLength          time.Duration
	PollInterval       time.Duration
	CallTimeout        time.Duration
	MonitorInterval    time.Duration
	PaymentTimeoutDays int

	MinBuffer   int
	BufferRatio float64
	StockFloor  int

	Utilization  float64
	MinStockDays int
	ReorderDays  int
	BatchSize    int
	MinOrder     int

	SeedMachines    int
	SeedPartBatch   int
	InitialLoan     decimal.Decimal
	LoanInstallment decimal.Decimal
}

// CounterpartiesConfig holds base URLs of the external services.
type CounterpartiesConfig struct {
	CompanyID         string
	BankURL           string
	BulkLogisticsURL  string
	ConsumerLogistics string
	ScreenSupplierURL string
	CaseSupplierURL   string
	ElectronicsURL    string
	MachineSupplier   string
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:       getString("APP_NAME", "sumsang-phones"),
		Environment:   getString("APP_ENV", "development"),
		StorageDriver: strings.ToLower(getString("STORAGE_DRIVER", StoragePostgres)),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:      getInt("SERVER_MAX_CONN", 0),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "sumsang"),
			User:            getString("DB_USER", "sumsang"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           getInt("REDIS_DB", 0),
			LeaseEnabled: getBool("PIPELINE_LEASE_ENABLED", false),
			LeaseKey:     getString("PIPELINE_LEASE_KEY", "sumsang:pipeline"),
			LeaseTTL:     getDuration("PIPELINE_LEASE_TTL", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "sumsang-phones"),
		},
		Journal: JournalConfig{
			Path:      getString("BOLTDB_PATH", "./data/journal.db"),
			Bucket:    getString("JOURNAL_BUCKET", "calls"),
			Retention: getDuration("JOURNAL_RETENTION", 72*time.Hour),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
		Simulation: SimulationConfig{
			DayLength:          getDuration("DAY_LENGTH", 2*time.Minute),
			PollInterval:       getDuration("POLL_INTERVAL", 5*time.Second),
			CallTimeout:        getDuration("CALL_TIMEOUT", 10*time.Second),
			MonitorInterval:    getDuration("MONITOR_INTERVAL", 10*time.Second),
			PaymentTimeoutDays: getInt("PAYMENT_TIMEOUT_DAYS", 2),
			MinBuffer:          getInt("MIN_BUFFER", 10),
			BufferRatio:        getFloat("BUFFER_RATIO", 0.5),
			StockFloor:         getInt("STOCK_FLOOR", 20),
			Utilization:        getFloat("UTILIZATION", 0.7),
			MinStockDays:       getInt("MIN_STOCK_DAYS", 7),
			ReorderDays:        getInt("REORDER_DAYS", 30),
			BatchSize:          getInt("BATCH_SIZE", 1000),
			MinOrder:           getInt("MIN_ORDER", 100),
			SeedMachines:       getInt("SEED_MACHINES", 1),
			SeedPartBatch:      getInt("SEED_PART_BATCH", 1000),
			InitialLoan:        getDecimal("INITIAL_LOAN", decimal.NewFromInt(5_000_000)),
			LoanInstallment:    getDecimal("LOAN_INSTALLMENT", decimal.NewFromInt(50_000)),
		},
		Counterparties: CounterpartiesConfig{
			CompanyID:         getString("COMPANY_ID", "sumsang-company"),
			BankURL:           os.Getenv("BANK_URL"),
			BulkLogisticsURL:  os.Getenv("BULK_LOGISTICS_URL"),
			ConsumerLogistics: os.Getenv("CONSUMER_LOGISTICS_URL"),
			ScreenSupplierURL: os.Getenv("SCREEN_SUPPLIER_URL"),
			CaseSupplierURL:   os.Getenv("CASE_SUPPLIER_URL"),
			ElectronicsURL:    os.Getenv("ELECTRONICS_SUPPLIER_URL"),
			MachineSupplier:   os.Getenv("MACHINE_SUPPLIER_URL"),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.Simulation.DayLength <= 0 {
		return fmt.Errorf("config: DAY_LENGTH must be positive")
	}
	if c.Simulation.PollInterval <= 0 {
		return fmt.Errorf("config: POLL_INTERVAL must be positive")
	}
	if c.Simulation.BatchSize <= 0 || c.Simulation.MinOrder <= 0 {
		return fmt.Errorf("config: BATCH_SIZE and MIN_ORDER must be positive")
	}
	return nil
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if parsed, err := decimal.NewFromString(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
