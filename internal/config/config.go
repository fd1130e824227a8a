package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DB DatabaseConfig

	JWTSecret string // JWT署名シークレット

	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	StripeSecretKey     string // 決済ゲートウェイのシークレット
	StripeWebhookSecret string // 空ならwebhookは受け付けない
	DefaultCurrency     string // 省略時の通貨（ron）

	SMTPHost     string // 空ならメールはログ出力だけ
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	AdminEmail   string // 新規注文の通知先

	NotifyTimeout time.Duration // 通知1件あたりの上限
	NotifyWorkers int

	RedisAddr       string   // 空ならwebhookの重複排除はDBだけ
	KafkaBrokers    []string // 空ならイベントは出さない
	KafkaOrderTopic string

	OrderCodeLocation *time.Location // 注文コードの日付のタイムゾーン
	OrderPriceSource  string         // submitted/catalog
}

// DB接続の設定。DATABASE_URLがあれば最優先
type DatabaseConfig struct {
	URL string

	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Loadは環境変数
func Load() (Config, error) {
	dbCfg, err := LoadDatabase()
	if err != nil {
		return Config{}, err
	}

	smtpPort, err := atoiOr("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	workers, err := atoiOr("NOTIFY_WORKERS", 2)
	if err != nil {
		return Config{}, err
	}
	timeout, err := durationOr("NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	loc := time.Local
	if name := os.Getenv("ORDER_CODE_TZ"); name != "" {
		loc, err = time.LoadLocation(name)
		if err != nil {
			return Config{}, fmt.Errorf("ORDER_CODE_TZ is invalid: %w", err)
		}
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),
		DB:   dbCfg,

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    os.Getenv("GO_ENV"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		DefaultCurrency:     strings.ToLower(getenv("PAYMENT_DEFAULT_CURRENCY", "ron")),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     smtpPort,
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),
		AdminEmail:   os.Getenv("ADMIN_EMAIL"),

		NotifyTimeout: timeout,
		NotifyWorkers: workers,

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic: getenv("KAFKA_ORDER_TOPIC", "order.events"),

		OrderCodeLocation: loc,
		OrderPriceSource:  getenv("ORDER_PRICE_SOURCE", "submitted"),
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if len(cfg.DefaultCurrency) != 3 {
		return Config{}, fmt.Errorf("PAYMENT_DEFAULT_CURRENCY must be a 3-letter code")
	}
	if cfg.OrderPriceSource != "submitted" && cfg.OrderPriceSource != "catalog" {
		return Config{}, fmt.Errorf("ORDER_PRICE_SOURCE must be submitted or catalog")
	}
	if cfg.NotifyWorkers < 1 {
		return Config{}, fmt.Errorf("NOTIFY_WORKERS must be positive")
	}
	if cfg.SMTPHost != "" && cfg.MailFrom == "" {
		return Config{}, fmt.Errorf("MAIL_FROM is required when SMTP_HOST is set")
	}

	return cfg, nil
}

// migrateなどDBだけ使うコマンド用
func LoadDatabase() (DatabaseConfig, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return DatabaseConfig{URL: url}, nil
	}

	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return DatabaseConfig{}, err
	}

	d := DatabaseConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Name:     os.Getenv("POSTGRES_DB"),
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     pgPort,
		SSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
	}

	if d.User == "" {
		return DatabaseConfig{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if d.Password == "" {
		return DatabaseConfig{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if d.Name == "" {
		return DatabaseConfig{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if d.Host == "" {
		return DatabaseConfig{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	return d, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoiOr(key string, def int) (int, error) {
	if os.Getenv(key) == "" {
		return def, nil
	}
	return mustAtoi(key)
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
