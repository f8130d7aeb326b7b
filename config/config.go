package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Precedence, highest first: environment variables,
// .env.local / .env (dotenv), the YAML file named by CLOVER_CONFIG_FILE, env-default tags.
type Config struct {
	AppName                       string `yaml:"app_name" env:"APP_NAME" env-default:"clover-api"`
	Version                       string `yaml:"version" env:"APP_VERSION" env-default:"dev"`
	Port                          int    `yaml:"port" env:"PORT" env-default:"3000"`
	LogLevel                      string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `yaml:"pretty_logs" env:"PRETTY_LOGS" env-default:"false"`
	HttpServerReadTimeoutSeconds  int    `yaml:"http_server_read_timeout_seconds" env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerWriteTimeoutSeconds int    `yaml:"http_server_write_timeout_seconds" env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"90"`
	HttpServerIdleTimeoutSeconds  int    `yaml:"http_server_idle_timeout_seconds" env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	StartupMaxAttempts            int    `yaml:"startup_max_attempts" env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver                string        `yaml:"db_driver" env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `yaml:"db_host" env:"DB_HOST" env-default:""`
	DatabasePort                  string        `yaml:"db_port" env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `yaml:"db_user_name" env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `yaml:"db_password" env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `yaml:"db_name" env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `yaml:"db_ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `yaml:"db_max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `yaml:"db_max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `yaml:"db_conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	DatabaseMigrationFolderPath   string        `yaml:"db_migration_folder_path" env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `yaml:"db_migration_version" env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `yaml:"db_migration_force" env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `yaml:"db_migration_auto_rollback" env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Auth
	AuthEnabled   bool   `yaml:"auth_enabled" env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `yaml:"auth_issuer_url" env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `yaml:"auth_client_id" env:"AUTH_CLIENT_ID" env-default:""`

	// Kafka producer
	KafkaEnabled        bool     `yaml:"kafka_enabled" env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers        []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	KafkaOutputTopic    string   `yaml:"kafka_output_topic" env:"KAFKA_OUTPUT_TOPIC" env-default:"account-events"`
	KafkaBatchSize      int      `yaml:"kafka_batch_size" env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeoutMS int      `yaml:"kafka_batch_timeout_ms" env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks   int      `yaml:"kafka_required_acks" env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression    string   `yaml:"kafka_compression" env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	OtelEnabled  bool   `yaml:"otel_enabled" env:"OTEL_ENABLED" env-default:"false"`
	OtelEndpoint string `yaml:"otel_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:""`
	OtelProtocol string `yaml:"otel_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	OtelInsecure bool   `yaml:"otel_insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"false"`

	// Account merge
	MergeTransactionTimeout time.Duration `yaml:"merge_transaction_timeout" env:"MERGE_TRANSACTION_TIMEOUT" env-default:"60s"`
}

// Load builds the configuration from the optional YAML file, dotenv files, the environment
// and the env-default tags. Defaults only fill fields the YAML file left empty.
func Load() (*Config, error) {
	var cfg Config

	// dotenv never overrides variables that are already set
	for _, path := range []string{".env.local", ".env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	if path := os.Getenv("CLOVER_CONFIG_FILE"); path != "" {
		if err := loadYAMLConfig(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	return &cfg, nil
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration that would prevent the service from starting
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseHost == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Port <= 0 {
		errs = append(errs, errors.New("PORT must be positive"))
	}
	if c.MergeTransactionTimeout <= 0 {
		errs = append(errs, errors.New("MERGE_TRANSACTION_TIMEOUT must be positive"))
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		errs = append(errs, errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set"))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set"))
	}
	return errors.Join(errs...)
}
