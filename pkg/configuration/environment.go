package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/stratix-hq/stratix-sdk/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"stratix"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	PoolSize int    `env:"DB_POOL_SIZE" envDefault:"10"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable pool_max_conns=%d",
		d.Host, d.Port, d.User, d.Name, d.Password, d.PoolSize,
	)
}

type ImportOptions struct {
	// BatchSize is the number of source rows grouped into one transactional batch.
	BatchSize int `env:"IMPORT_BATCH_SIZE" envDefault:"100"`
	// SyncRowThreshold is the max row count processed as a single transaction.
	SyncRowThreshold int `env:"IMPORT_SYNC_ROW_THRESHOLD" envDefault:"25"`
	// StreamingByteThreshold is the buffer size above which CSV files are streamed.
	StreamingByteThreshold int64 `env:"IMPORT_STREAMING_BYTE_THRESHOLD" envDefault:"10485760"`

	TxTimeout   time.Duration `env:"IMPORT_TX_TIMEOUT" envDefault:"30s"`
	TxAttempts  int           `env:"IMPORT_TX_ATTEMPTS" envDefault:"3"`
	TxBackoff   time.Duration `env:"IMPORT_TX_BACKOFF" envDefault:"200ms"`
	TxIsolation string        `env:"IMPORT_TX_ISOLATION" envDefault:"read committed"`

	// DuplicateWindow is how long an identical (tenant, checksum) submission is
	// short-circuited instead of reprocessed.
	DuplicateWindow time.Duration `env:"IMPORT_DUPLICATE_WINDOW" envDefault:"24h"`
}

func (o *ImportOptions) Validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("import BatchSize must be positive, got %d", o.BatchSize)
	}
	if o.SyncRowThreshold < 0 {
		return fmt.Errorf("import SyncRowThreshold must be non-negative, got %d", o.SyncRowThreshold)
	}
	if o.StreamingByteThreshold <= 0 {
		return fmt.Errorf("import StreamingByteThreshold must be positive, got %d", o.StreamingByteThreshold)
	}
	if o.TxAttempts <= 0 {
		return fmt.Errorf("import TxAttempts must be positive, got %d", o.TxAttempts)
	}
	switch strings.ToLower(strings.TrimSpace(o.TxIsolation)) {
	case "read committed", "repeatable read", "serializable":
	default:
		return fmt.Errorf("invalid IMPORT_TX_ISOLATION=%q", o.TxIsolation)
	}
	return nil
}

type Configuration struct {
	Database DatabaseOptions
	Import   ImportOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	UploadsPath      string `env:"UPLOADS_PATH" envDefault:"static"`
	// MetricsAddr, when set, exposes Prometheus metrics during a run
	// (e.g. "localhost:9090").
	MetricsAddr string `env:"METRICS_ADDR"`

	// RLS enforcement mode (disabled/enforce).
	RLSEnforce string `env:"RLS_ENFORCE" envDefault:"disabled"`

	logger *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if err := c.validateRLS(); err != nil {
		return err
	}

	logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

func (c *Configuration) validateRLS() error {
	mode := strings.ToLower(strings.TrimSpace(c.RLSEnforce))
	if mode == "" {
		mode = "disabled"
	}
	switch mode {
	case "disabled", "enforce":
	default:
		return fmt.Errorf("invalid RLS_ENFORCE=%q (expected disabled|enforce)", c.RLSEnforce)
	}
	return nil
}
