package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
	QRCode   QRCodeConfig   `mapstructure:"qrcode"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ScanSubject   string `mapstructure:"scan_subject"`
	ResultSubject string `mapstructure:"result_subject"`
	EventSubject  string `mapstructure:"event_subject"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// QRCodeConfig настройки удалённого сервиса генерации и проверки QR-кодов
type QRCodeConfig struct {
	APIURL        string        `mapstructure:"api_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ReverseMethod string        `mapstructure:"reverse_method"`
	StrictIDs     bool          `mapstructure:"strict_ids"`
}

const (
	ReverseMethodPost = "post"
	ReverseMethodGet  = "get"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "fitnesspark")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.scan_subject", "qrcode.scanned")
	v.SetDefault("nats.result_subject", "qrcode.resolved")
	v.SetDefault("nats.event_subject", "member.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("qrcode.api_url", "https://fitnesspark-api.vercel.app")
	v.SetDefault("qrcode.timeout", 10*time.Second)
	v.SetDefault("qrcode.reverse_method", ReverseMethodPost)
	v.SetDefault("qrcode.strict_ids", false)
}

// Load читает конфигурацию из окружения и необязательного файла .env
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.QRCode.APIURL == "" {
		return fmt.Errorf("qrcode api url cannot be empty")
	}
	if c.QRCode.Timeout <= 0 {
		return fmt.Errorf("qrcode timeout must be positive, got %s", c.QRCode.Timeout)
	}

	c.QRCode.APIURL = strings.TrimRight(c.QRCode.APIURL, "/")
	c.QRCode.ReverseMethod = strings.ToLower(c.QRCode.ReverseMethod)
	if c.QRCode.ReverseMethod != ReverseMethodPost && c.QRCode.ReverseMethod != ReverseMethodGet {
		return fmt.Errorf("unsupported reverse method: %s", c.QRCode.ReverseMethod)
	}
	return nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}
