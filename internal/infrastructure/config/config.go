package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config アプリケーション全体の設定
type Config struct {
	Server        ServerConfig
	Storage       StorageConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AdminAPI      AdminAPIConfig
	OpenTelemetry OpenTelemetryConfig
	Log           LogConfig
	Ledger        LedgerConfig
	Gacha         GachaConfig
	Streak        StreakConfig
	Payment       PaymentConfig
	Kafka         KafkaConfig
	Outbox        OutboxConfig
	Environment   string
}

// ServerConfig サーバー設定
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// 保存先
const (
	StorageBackendMySQL  = "mysql"
	StorageBackendMemory = "memory"
)

// StorageConfig 保存先設定（memoryは開発・デモ用で再起動すると消える）
type StorageConfig struct {
	Backend string
}

// DatabaseConfig データベース設定
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig Redis設定（ガチャの多重実行防止ロックに使用）
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
	LockTTL  time.Duration
}

// JWTConfig JWT設定
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AdminAPIConfig 管理API設定
type AdminAPIConfig struct {
	Enabled    bool
	APIKey     string
	AllowedIPs []string
}

// OpenTelemetryConfig OpenTelemetry設定
type OpenTelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	OTLPEndpoint    string
	OTLPInsecure    bool
	TraceExporter   string // "otlp", "stdout", "none"
	MetricsExporter string // "otlp", "prometheus", "stdout"
	SampleRatio     float64
	Environment     string
}

// LogConfig ログ設定
type LogConfig struct {
	Level      string // "debug", "info", "warn", "error"
	File       string // 空なら標準出力のみ
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// LedgerConfig 台帳設定
type LedgerConfig struct {
	MaxRetries int
}

// GachaConfig ガチャ設定
type GachaConfig struct {
	RulesFile string
	Rules     GachaRules
}

// StreakConfig 連続日数ボーナス設定
type StreakConfig struct {
	Timezone        string
	Location        *time.Location
	Day7Multiplier  int64
	Day7Bonus       int64
	LoginBaseReward int64
	LoginCurrency   string
	ResetCron       string
}

// PaymentConfig 決済付与設定
type PaymentConfig struct {
	DiamondsPerUnit string
	// BonusTiers "最低金額:上乗せ%"のカンマ区切り（例: "50:10,100:20"）
	BonusTiers []BonusTierConfig
}

// BonusTierConfig 決済ボーナス段階
type BonusTierConfig struct {
	MinGross string
	Percent  int64
}

// KafkaConfig Kafka設定（アウトボックスの送信先）
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// OutboxConfig アウトボックスリレー設定
type OutboxConfig struct {
	RelayCron  string
	BatchSize  int
	MaxRetries int
}

// Load 設定を読み込む
func Load() (*Config, error) {
	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	bonusTiers, err := parseBonusTiers(getEnv("PAYMENT_BONUS_TIERS", ""))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", StorageBackendMySQL),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 3306),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "fan_ledger"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			LockTTL:  getEnvAsDuration("REDIS_LOCK_TTL", 10*time.Second),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getEnvAsDuration("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "fan-ledger"),
		},
		AdminAPI: AdminAPIConfig{
			Enabled:    getEnvAsBool("ADMIN_API_ENABLED", true),
			APIKey:     getEnv("ADMIN_API_KEY", ""),
			AllowedIPs: getEnvAsSlice("ADMIN_API_ALLOWED_IPS"),
		},
		OpenTelemetry: OpenTelemetryConfig{
			Enabled:         getEnvAsBool("OTEL_ENABLED", true),
			ServiceName:     getEnv("OTEL_SERVICE_NAME", "fan-ledger"),
			ServiceVersion:  getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
			OTLPInsecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			TraceExporter:   getEnv("OTEL_TRACES_EXPORTER", "otlp"),
			MetricsExporter: getEnv("OTEL_METRICS_EXPORTER", "otlp"),
			SampleRatio:     getEnvAsFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment:     env,
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 30),
		},
		Ledger: LedgerConfig{
			MaxRetries: getEnvAsInt("LEDGER_MAX_RETRIES", 3),
		},
		Gacha: GachaConfig{
			RulesFile: getEnv("GACHA_RULES_FILE", ""),
		},
		Streak: StreakConfig{
			Timezone:        getEnv("STREAK_TIMEZONE", "Asia/Tokyo"),
			Day7Multiplier:  int64(getEnvAsInt("STREAK_DAY7_MULTIPLIER", 2)),
			Day7Bonus:       int64(getEnvAsInt("STREAK_DAY7_BONUS", 100)),
			LoginBaseReward: int64(getEnvAsInt("STREAK_LOGIN_BASE_REWARD", 10)),
			LoginCurrency:   getEnv("STREAK_LOGIN_CURRENCY", "points"),
			ResetCron:       getEnv("STREAK_RESET_CRON", "5 0 * * *"),
		},
		Payment: PaymentConfig{
			DiamondsPerUnit: getEnv("PAYMENT_DIAMONDS_PER_UNIT", "10"),
			BonusTiers:      bonusTiers,
		},
		Kafka: KafkaConfig{
			Enabled:      getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:      getEnvAsSlice("KAFKA_BROKERS"),
			Topic:        getEnv("KAFKA_TOPIC", "fan-ledger.events"),
			WriteTimeout: getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
		},
		Outbox: OutboxConfig{
			RelayCron:  getEnv("OUTBOX_RELAY_CRON", "@every 5s"),
			BatchSize:  getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			MaxRetries: getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
		},
	}

	// ガチャルールの読み込み（ファイル未指定ならデフォルト）
	rules, err := LoadGachaRules(cfg.Gacha.RulesFile)
	if err != nil {
		return nil, err
	}
	cfg.Gacha.Rules = *rules

	// 必須設定の検証
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate 設定の検証
func (c *Config) validate() error {
	switch c.Storage.Backend {
	case StorageBackendMySQL:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case StorageBackendMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND: %s", c.Storage.Backend)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AdminAPI.Enabled && c.AdminAPI.APIKey == "" {
		return fmt.Errorf("ADMIN_API_KEY is required when admin API is enabled")
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be positive")
	}
	loc, err := time.LoadLocation(c.Streak.Timezone)
	if err != nil {
		return fmt.Errorf("invalid STREAK_TIMEZONE: %w", err)
	}
	c.Streak.Location = loc
	if c.OpenTelemetry.SampleRatio < 0 || c.OpenTelemetry.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0, 1]")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when kafka is enabled")
	}
	return nil
}

// DSN データベース接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address Redis接続アドレスを返す
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// parseBonusTiers "50:10,100:20"形式を解析
func parseBonusTiers(s string) ([]BonusTierConfig, error) {
	if s == "" {
		return nil, nil
	}
	var tiers []BonusTierConfig
	for _, part := range strings.Split(s, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid PAYMENT_BONUS_TIERS entry: %q", part)
		}
		percent, err := strconv.ParseInt(kv[1], 10, 64)
		if err != nil || percent < 0 {
			return nil, fmt.Errorf("invalid PAYMENT_BONUS_TIERS percent: %q", part)
		}
		tiers = append(tiers, BonusTierConfig{MinGross: kv[0], Percent: percent})
	}
	return tiers, nil
}

// getEnv 環境変数を取得（デフォルト値付き）
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt 環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat 環境変数を浮動小数として取得
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool 環境変数を真偽値として取得
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration 環境変数を時間として取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice カンマ区切りの環境変数をスライスとして取得
func getEnvAsSlice(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
