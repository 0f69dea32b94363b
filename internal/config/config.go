package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Audit    AuditConfig    `json:"audit"`
	Storage  StorageConfig  `json:"storage"`
	Signing  SigningConfig  `json:"signing"`
	Sweep    SweepConfig    `json:"sweep"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents Postgres configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// AuditConfig selects the audit record store backend
type AuditConfig struct {
	Backend        string `json:"backend"` // postgres, dynamodb, memory
	DynamoTable    string `json:"dynamo_table"`
	DynamoRegion   string `json:"dynamo_region"`
	DynamoEndpoint string `json:"dynamo_endpoint"`
}

// StorageConfig selects the document blob store backend
type StorageConfig struct {
	Backend         string `json:"backend"` // local, s3
	LocalRoot       string `json:"local_root"`
	S3Bucket        string `json:"s3_bucket"`
	S3Region        string `json:"s3_region"`
	S3Endpoint      string `json:"s3_endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// SigningConfig bounds the signing pipeline
type SigningConfig struct {
	MaxUploadBytes int64 `json:"max_upload_bytes"`
}

// SweepConfig configures the scheduled integrity sweep
type SweepConfig struct {
	Enabled  bool          `json:"enabled"`
	Schedule string        `json:"schedule"`
	Interval time.Duration `json:"interval"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Environment string `json:"environment"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "signing_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    time.Hour,
		},
		Audit: AuditConfig{
			Backend:     "memory",
			DynamoTable: "audit_records",
		},
		Storage: StorageConfig{
			Backend:   "local",
			LocalRoot: "data/blobs",
		},
		Signing: SigningConfig{
			MaxUploadBytes: 25 << 20,
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Schedule: "@hourly",
			Interval: time.Hour,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "development",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if backend := os.Getenv("AUDIT_BACKEND"); backend != "" {
		config.Audit.Backend = backend
	}
	if table := os.Getenv("DYNAMO_TABLE"); table != "" {
		config.Audit.DynamoTable = table
	}
	if region := os.Getenv("DYNAMO_REGION"); region != "" {
		config.Audit.DynamoRegion = region
	}
	if endpoint := os.Getenv("DYNAMO_ENDPOINT"); endpoint != "" {
		config.Audit.DynamoEndpoint = endpoint
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if root := os.Getenv("STORAGE_LOCAL_ROOT"); root != "" {
		config.Storage.LocalRoot = root
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.Storage.S3Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		config.Storage.S3Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		config.Storage.S3Endpoint = endpoint
	}
	if key := os.Getenv("AWS_ACCESS_KEY_ID"); key != "" {
		config.Storage.AccessKeyID = key
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		config.Storage.SecretAccessKey = secret
	}
	if maxBytes := os.Getenv("MAX_UPLOAD_BYTES"); maxBytes != "" {
		if n, err := strconv.ParseInt(maxBytes, 10, 64); err == nil {
			config.Signing.MaxUploadBytes = n
		}
	}
	if enabled := os.Getenv("SWEEP_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Sweep.Enabled = b
		}
	}
	if schedule := os.Getenv("SWEEP_SCHEDULE"); schedule != "" {
		config.Sweep.Schedule = schedule
	}
	if interval := os.Getenv("SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Sweep.Interval = d
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.Logging.Environment = env
	}
}

// DSN returns the Postgres connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
