// Package config loads server settings from an optional YAML file, an optional .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"chatsync_server/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverMemory    = "memory"
	DriverDynamoDB  = "dynamodb"
	DriverFirestore = "firestore"
)

type Config struct {
	Server ServerConfig  `yaml:"server"`
	Store  StoreConfig   `yaml:"store"`
	AWS    AWSConfig     `yaml:"aws"`
	Redis  RedisConfig   `yaml:"redis"`
	Auth   AuthConfig    `yaml:"auth"`
	Chat   ChatConfig    `yaml:"chat"`
	Calls  CallsConfig   `yaml:"calls"`
	Log    logger.Config `yaml:"log"`
}

type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// DynamoDB single table; CreateTable provisions it at startup (DynamoDB Local).
	DynamoTable      string `yaml:"dynamo_table"`
	DynamoEndpoint   string `yaml:"dynamo_endpoint"`
	CreateTable      bool   `yaml:"create_table"`
	FirestoreProject string `yaml:"firestore_project"`
}

type AWSConfig struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
	// PublicBaseURL prefixes object keys to form download URLs; defaults to the bucket's virtual-hosted URL.
	PublicBaseURL string `yaml:"public_base_url"`
}

// RedisConfig enables the cross-process change feed when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	MinEntropyBits   float64       `yaml:"min_entropy_bits"`
	DefaultAvatarURL string        `yaml:"default_avatar_url"`
}

type ChatConfig struct {
	DefaultGroupAvatarURL string `yaml:"default_group_avatar_url"`
	// NodeID is the snowflake node of this process, 0-1023.
	NodeID int64 `yaml:"node_id"`
}

type CallsConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Driver:      DriverMemory,
			DynamoTable: "chatsync",
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Redis: RedisConfig{
			Prefix: "chatsync:",
		},
		Auth: AuthConfig{
			SessionTTL:       30 * 24 * time.Hour,
			MinEntropyBits:   50,
			DefaultAvatarURL: "https://ui-avatars.com/api/?name=User",
		},
		Chat: ChatConfig{
			DefaultGroupAvatarURL: "https://ui-avatars.com/api/?name=Group",
			NodeID:                1,
		},
		Log: logger.DefaultConfig(),
	}
}

// Load builds the configuration. path may be empty; a missing .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("PORT", &c.Server.Port)
	setString("AWS_REGION", &c.AWS.Region)
	setString("S3_BUCKET_NAME", &c.AWS.Bucket)
	setString("S3_PUBLIC_BASE_URL", &c.AWS.PublicBaseURL)
	setString("STORE_DRIVER", &c.Store.Driver)
	setString("DYNAMODB_TABLE", &c.Store.DynamoTable)
	setString("DYNAMODB_ENDPOINT", &c.Store.DynamoEndpoint)
	setString("FIRESTORE_PROJECT_ID", &c.Store.FirestoreProject)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("CALL_WEBHOOK_SECRET", &c.Calls.WebhookSecret)
	setString("LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("SNOWFLAKE_NODE_ID"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid SNOWFLAKE_NODE_ID %q: %w", v, err)
		}
		c.Chat.NodeID = n
	}
	return nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverDynamoDB:
		if c.Store.DynamoTable == "" {
			return errors.New("dynamodb driver requires a table name")
		}
		if c.AWS.Region == "" {
			return errors.New("dynamodb driver requires an AWS region")
		}
	case DriverFirestore:
		if c.Store.FirestoreProject == "" {
			return errors.New("firestore driver requires a project id")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT secret must be at least 16 characters")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if c.Chat.NodeID < 0 || c.Chat.NodeID > 1023 {
		return fmt.Errorf("snowflake node id %d out of range 0-1023", c.Chat.NodeID)
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
