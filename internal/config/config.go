package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Table drivers.
const (
	DriverLark     = "lark"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
	DriverNone     = "none"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Table       TableConfig
	Lark        LarkConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Bolt        BoltConfig
	JWT         JWTConfig
	Monitor     MonitorConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
	Board       BoardFile
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TableConfig selects the host table driver and how hard to retry it.
type TableConfig struct {
	Driver    string
	BoardFile string
	MinRetry  time.Duration
	MaxRetry  time.Duration
}

// LarkConfig points at one table of a Lark Base app.
type LarkConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
	Timeout   time.Duration
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

// RedisConfig is optional; an empty URL keeps tokens in process memory.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type BoltConfig struct {
	Path string
}

// JWTConfig is optional; an empty secret leaves the API open.
type JWTConfig struct {
	Secret string
	Issuer string
}

type MonitorConfig struct {
	Interval time.Duration
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

// BoardFile is the optional YAML file that overrides field display names,
// the user list and the detached group list.
type BoardFile struct {
	Title  string            `yaml:"title"`
	Fields map[string]string `yaml:"fields"`
	Users  []BoardUser       `yaml:"users"`
	Groups []string          `yaml:"groups"`
}

type BoardUser struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	AvatarURL string `yaml:"avatar_url"`
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the board can boot detached with no setup.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskboard"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Table: TableConfig{
			Driver:    strings.ToLower(getString("TABLE_DRIVER", DriverNone)),
			BoardFile: os.Getenv("BOARD_FILE"),
			MinRetry:  getDuration("TABLE_RETRY_MIN", time.Second),
			MaxRetry:  getDuration("TABLE_RETRY_MAX", time.Minute),
		},
		Lark: LarkConfig{
			BaseURL:   strings.TrimRight(getString("LARK_BASE_URL", "https://open.larksuite.com"), "/"),
			AppID:     os.Getenv("LARK_APP_ID"),
			AppSecret: os.Getenv("LARK_APP_SECRET"),
			AppToken:  os.Getenv("LARK_APP_TOKEN"),
			TableID:   os.Getenv("LARK_TABLE_ID"),
			Timeout:   getDuration("LARK_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "taskboard"),
			User:            getString("DB_USER", "taskboard"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Bolt: BoltConfig{
			Path: getString("BOLTDB_PATH", "./data/board.db"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: os.Getenv("JWT_ISSUER"),
		},
		Monitor: MonitorConfig{
			Interval: getDuration("MONITOR_INTERVAL", 30*time.Second),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 15*time.Second),
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
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg.Database)
	}

	if cfg.Table.BoardFile != "" {
		board, err := LoadBoardFile(cfg.Table.BoardFile)
		if err != nil {
			return nil, err
		}
		cfg.Board = *board
	}
	if cfg.Board.Title == "" {
		cfg.Board.Title = getString("BOARD_TITLE", "Task board")
	}

	if err := cfg.Validate(); err != nil {
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

// Validate checks that the selected driver has what it needs.
func (c *Config) Validate() error {
	switch c.Table.Driver {
	case DriverNone, DriverBolt, DriverPostgres:
		return nil
	case DriverLark:
		var missing []string
		for name, val := range map[string]string{
			"LARK_APP_ID":     c.Lark.AppID,
			"LARK_APP_SECRET": c.Lark.AppSecret,
			"LARK_APP_TOKEN":  c.Lark.AppToken,
			"LARK_TABLE_ID":   c.Lark.TableID,
		} {
			if val == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("config: lark driver requires %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("config: unknown TABLE_DRIVER %q", c.Table.Driver)
	}
}

// LoadBoardFile parses the YAML board file at path.
func LoadBoardFile(path string) (*BoardFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read board file: %w", err)
	}
	var board BoardFile
	if err := yaml.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("config: parse board file %s: %w", path, err)
	}
	for i, u := range board.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("config: board file user #%d has no id", i+1)
		}
	}
	return &board, nil
}

func buildPostgresURL(db DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.SSLMode,
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
