package config

import (
	"log"
	"time"

	"github.com/spf13/viper"

	"golang-workspace-automation/pkg/postgres"
	"golang-workspace-automation/pkg/redis"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   postgres.Config  `mapstructure:"database"`
	Redis      redis.Config     `mapstructure:"redis"`
	Vault      VaultConfig      `mapstructure:"vault"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Automation AutomationConfig `mapstructure:"automation"`
	Log        LogConfig        `mapstructure:"log"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Port string
	Env  string
}

type VaultConfig struct {
	CredentialKey string
}

type BillingConfig struct {
	Timeout              time.Duration
	GlobalMaxRPS         int
	PerIntegrationMaxRPS int
}

type DispatchConfig struct {
	WorkerCount       int
	PollInterval      time.Duration
	RecurringInterval time.Duration
}

type SyncConfig struct {
	DirectoryCacheTTL time.Duration
	WorkspacePoolTTL  time.Duration
	StaleRunCutoff    time.Duration
}

type AutomationConfig struct {
	BatchSize          int
	ChurnThresholdDays int
	ExpiredInterval    string
	ChurnedInterval    string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file .env config try read from environment variables")
	}

	viper.SetDefault("DIRECTORY_CACHE_TTL", "30m")
	viper.SetDefault("WORKSPACE_POOL_TTL", "10m")
	viper.SetDefault("STALE_RUN_CUTOFF", "24h")
	viper.SetDefault("AUTOMATION_BATCH_SIZE", 500)
	viper.SetDefault("AUTOMATION_CHURN_THRESHOLD_DAYS", 30)
	viper.SetDefault("AUTOMATION_EXPIRED_INTERVAL", "*/5 * * * *")
	viper.SetDefault("AUTOMATION_CHURNED_INTERVAL", "0 * * * *")
	viper.SetDefault("DISPATCH_WORKER_COUNT", 5)
	viper.SetDefault("DISPATCH_POLL_INTERVAL", "2s")
	viper.SetDefault("DISPATCH_RECURRING_INTERVAL", "30s")
	viper.SetDefault("BILLING_TIMEOUT", "30s")
	viper.SetDefault("BILLING_GLOBAL_MAX_RPS", 50)
	viper.SetDefault("BILLING_PER_INTEGRATION_MAX_RPS", 10)

	config := &Config{
		Server: ServerConfig{
			Port: viper.GetString("PORT"),
			Env:  viper.GetString("ENV"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Vault: VaultConfig{
			CredentialKey: viper.GetString("VAULT_CREDENTIAL_KEY"),
		},
		Billing: BillingConfig{
			Timeout:              viper.GetDuration("BILLING_TIMEOUT"),
			GlobalMaxRPS:         viper.GetInt("BILLING_GLOBAL_MAX_RPS"),
			PerIntegrationMaxRPS: viper.GetInt("BILLING_PER_INTEGRATION_MAX_RPS"),
		},
		Dispatch: DispatchConfig{
			WorkerCount:       viper.GetInt("DISPATCH_WORKER_COUNT"),
			PollInterval:      viper.GetDuration("DISPATCH_POLL_INTERVAL"),
			RecurringInterval: viper.GetDuration("DISPATCH_RECURRING_INTERVAL"),
		},
		Sync: SyncConfig{
			DirectoryCacheTTL: viper.GetDuration("DIRECTORY_CACHE_TTL"),
			WorkspacePoolTTL:  viper.GetDuration("WORKSPACE_POOL_TTL"),
			StaleRunCutoff:    viper.GetDuration("STALE_RUN_CUTOFF"),
		},
		Automation: AutomationConfig{
			BatchSize:          viper.GetInt("AUTOMATION_BATCH_SIZE"),
			ChurnThresholdDays: viper.GetInt("AUTOMATION_CHURN_THRESHOLD_DAYS"),
			ExpiredInterval:    viper.GetString("AUTOMATION_EXPIRED_INTERVAL"),
			ChurnedInterval:    viper.GetString("AUTOMATION_CHURNED_INTERVAL"),
		},
		Database: postgres.Config{
			Host:            viper.GetString("DATABASE_HOST"),
			Port:            viper.GetInt("DATABASE_PORT"),
			User:            viper.GetString("DATABASE_USER"),
			Password:        viper.GetString("DATABASE_PASSWORD"),
			DBName:          viper.GetString("DATABASE_NAME"),
			NameTemplate:    viper.GetString("DATABASE_NAME_TEMPLATE"),
			SSLMode:         viper.GetString("DATABASE_SSL_MODE"),
			TimeZone:        viper.GetString("DATABASE_TIME_ZONE"),
			MaxIdleConns:    viper.GetInt("DATABASE_MAX_IDLE_CONNS"),
			MaxOpenConns:    viper.GetInt("DATABASE_MAX_OPEN_CONNS"),
			ConnMaxLifetime: viper.GetString("DATABASE_CONN_MAX_LIFETIME"),
			LogLevel:        viper.GetString("DATABASE_LOG_LEVEL"),
		},
		Redis: redis.Config{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
		},
	}

	return config, nil
}
