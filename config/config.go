/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT              = "5001"
	DEFAULT_COMMISSION_RATE   = "0.05"
	DEFAULT_PAYOUT_THRESHOLD  = "300"
	DEFAULT_POINTS_DIVISOR    = "1000"
	DEFAULT_SALES_PAID_STATUS = "1"
	DEFAULT_SALES_API_TIMEOUT = 30
	DEFAULT_SALES_CACHE_TTL   = 300
	DEFAULT_AUDIT_BUFFER      = 256
	DEFAULT_ACTION_LOG_LIMIT  = 200
	DEFAULT_BACKUP_DIR        = "backups"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"RTLEDGER_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"RTLEDGER_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"RTLEDGER_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"RTLEDGER_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"RTLEDGER_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"RTLEDGER_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"RTLEDGER_DATA_SOURCE_DNS"`
}

// RedisConfig is optional. When set, audit entries go through the asynq queue and the
// sales feed is cached.
type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"RTLEDGER_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"RTLEDGER_REDIS_SKIP_TLS_VERIFY"`
}

type SalesAPIConfig struct {
	Url             string `json:"url" envconfig:"RTLEDGER_SALES_API_URL"`
	ApiKey          string `json:"api_key" envconfig:"RTLEDGER_SALES_API_KEY"`
	TimeoutSeconds  int    `json:"timeout_seconds" envconfig:"RTLEDGER_SALES_API_TIMEOUT"`
	CacheTTLSeconds int    `json:"cache_ttl_seconds" envconfig:"RTLEDGER_SALES_API_CACHE_TTL"`
	PaidStatus      string `json:"paid_status" envconfig:"RTLEDGER_SALES_API_PAID_STATUS"`
}

type CommissionConfig struct {
	DefaultRate     decimal.Decimal `json:"default_rate" envconfig:"RTLEDGER_COMMISSION_DEFAULT_RATE"`
	PayoutThreshold decimal.Decimal `json:"payout_threshold" envconfig:"RTLEDGER_COMMISSION_PAYOUT_THRESHOLD"`
	PointsDivisor   decimal.Decimal `json:"points_divisor" envconfig:"RTLEDGER_COMMISSION_POINTS_DIVISOR"`
}

type AuditConfig struct {
	BufferSize int    `json:"buffer_size" envconfig:"RTLEDGER_AUDIT_BUFFER_SIZE"`
	ListLimit  int    `json:"list_limit" envconfig:"RTLEDGER_AUDIT_LIST_LIMIT"`
	Queue      string `json:"queue" envconfig:"RTLEDGER_AUDIT_QUEUE"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"RTLEDGER_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"RTLEDGER_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"RTLEDGER_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

// BackupConfig controls `rtledger backup`. The S3 fields are optional; without a bucket
// dumps stay on disk.
type BackupConfig struct {
	Dir                string `json:"dir" envconfig:"RTLEDGER_BACKUP_DIR"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"RTLEDGER_BACKUP_S3_ENDPOINT"`
	S3BucketName       string `json:"s3_bucket_name" envconfig:"RTLEDGER_BACKUP_S3_BUCKET"`
	S3Region           string `json:"s3_region" envconfig:"RTLEDGER_BACKUP_S3_REGION"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"RTLEDGER_BACKUP_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"RTLEDGER_BACKUP_AWS_SECRET_ACCESS_KEY"`
}

// TokenizationConfig seals partner payout keys at rest when SecretKey is set. The key
// must be 16, 24 or 32 bytes.
type TokenizationConfig struct {
	SecretKey string `json:"secret_key" envconfig:"RTLEDGER_TOKENIZATION_SECRET"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"RTLEDGER_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string             `json:"project_name" envconfig:"RTLEDGER_PROJECT_NAME"`
	Server          ServerConfig       `json:"server"`
	DataSource      DataSourceConfig   `json:"data_source"`
	Redis           RedisConfig        `json:"redis"`
	SalesAPI        SalesAPIConfig     `json:"sales_api"`
	Commission      CommissionConfig   `json:"commission"`
	Audit           AuditConfig        `json:"audit"`
	Notification    Notification       `json:"notification"`
	RateLimit       RateLimitConfig    `json:"rate_limit"`
	Backup          BackupConfig       `json:"backup"`
	Tokenization    TokenizationConfig `json:"tokenization"`
	EnableTelemetry bool               `json:"enable_telemetry" envconfig:"RTLEDGER_ENABLE_TELEMETRY"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// a .env next to the binary feeds the environment before envconfig reads it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("could not load .env: %v", err)
	}

	// override config from environment variables
	err = envconfig.Process("rtledger", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called rtledger.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "RT Ledger"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.SalesAPI.Url = strings.TrimSpace(cnf.SalesAPI.Url)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Commission.addDefaults()
	cnf.SalesAPI.addDefaults()

	if cnf.Audit.BufferSize <= 0 {
		cnf.Audit.BufferSize = DEFAULT_AUDIT_BUFFER
	}
	if cnf.Audit.ListLimit <= 0 {
		cnf.Audit.ListLimit = DEFAULT_ACTION_LOG_LIMIT
	}
	if cnf.Audit.Queue == "" {
		cnf.Audit.Queue = "audit"
	}
	if cnf.Backup.Dir == "" {
		cnf.Backup.Dir = DEFAULT_BACKUP_DIR
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (c *CommissionConfig) addDefaults() {
	if !c.DefaultRate.IsPositive() {
		c.DefaultRate = decimal.RequireFromString(DEFAULT_COMMISSION_RATE)
	}
	if !c.PayoutThreshold.IsPositive() {
		c.PayoutThreshold = decimal.RequireFromString(DEFAULT_PAYOUT_THRESHOLD)
	}
	if !c.PointsDivisor.IsPositive() {
		c.PointsDivisor = decimal.RequireFromString(DEFAULT_POINTS_DIVISOR)
	}
}

func (s *SalesAPIConfig) addDefaults() {
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = DEFAULT_SALES_API_TIMEOUT
	}
	if s.CacheTTLSeconds <= 0 {
		s.CacheTTLSeconds = DEFAULT_SALES_CACHE_TTL
	}
	if s.PaidStatus == "" {
		s.PaidStatus = DEFAULT_SALES_PAID_STATUS
	}
}

// MockConfig sets a mock configuration for testing purposes. Commission and sales API
// defaults are filled in so tests only need to set what they exercise.
func MockConfig(mockConfig *Configuration) {
	mockConfig.Commission.addDefaults()
	mockConfig.SalesAPI.addDefaults()
	if mockConfig.Audit.BufferSize <= 0 {
		mockConfig.Audit.BufferSize = DEFAULT_AUDIT_BUFFER
	}
	if mockConfig.Audit.ListLimit <= 0 {
		mockConfig.Audit.ListLimit = DEFAULT_ACTION_LOG_LIMIT
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
