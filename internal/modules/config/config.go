package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"

	defaultConfigFile = "values_local.yaml"
	configDir         = "configs"

	DemoBaseURL = "https://demo-api-capital.backend-capital.com"
)

// Config ...
type Config struct {
	Service struct {
		Host      string `mapstructure:"host" yaml:"host"`
		AdminPort int    `mapstructure:"admin_port" yaml:"admin_port"`
	} `mapstructure:"service" yaml:"service"`

	Telegram struct {
		Token  string `mapstructure:"token" yaml:"token"`
		ChatID int64  `mapstructure:"chat_id" yaml:"chat_id"`
	} `mapstructure:"telegram" yaml:"telegram"`

	// пусто = выбор инструмента живёт только в памяти
	DB string `mapstructure:"db_dsn" yaml:"db_dsn"`

	Broker    Broker    `mapstructure:"broker" yaml:"broker"`
	Strategy  Strategy  `mapstructure:"strategy" yaml:"strategy"`
	Scheduler Scheduler `mapstructure:"scheduler" yaml:"scheduler"`
	Tracing   Tracing   `mapstructure:"tracing" yaml:"tracing"`
	Log       Log       `mapstructure:"log" yaml:"log"`
}

// Broker - доступ к Capital.com.
type Broker struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	Identifier string        `mapstructure:"identifier" yaml:"identifier"`
	Password   string        `mapstructure:"password" yaml:"password"`
	DealSize   float64       `mapstructure:"deal_size" yaml:"deal_size"` // фиксированный объём, без сайзинга
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

type Strategy struct {
	Instrument   string        `mapstructure:"instrument" yaml:"instrument"` // стартовый выбор
	Resolution   string        `mapstructure:"resolution" yaml:"resolution"`
	MaxBars      int           `mapstructure:"max_bars" yaml:"max_bars"`
	RSIPeriod    int           `mapstructure:"rsi_period" yaml:"rsi_period"`
	Smoothing    string        `mapstructure:"smoothing" yaml:"smoothing"` // simple | wilder
	Overbought   float64       `mapstructure:"overbought" yaml:"overbought"`
	Oversold     float64       `mapstructure:"oversold" yaml:"oversold"`
	OrderTimeout time.Duration `mapstructure:"order_timeout" yaml:"order_timeout"`
}

type Scheduler struct {
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
}

type Tracing struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

func NewConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = defaultConfigFile
	}
	return Load(filepath.Join(configDir, configFileName))
}

// Load читает yaml по пути, поверх - переменные окружения (STRATEGY_INTERVAL и т.п.).
// Отсутствующий файл не ошибка: работаем на дефолтах и env.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.admin_port", 8080)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("db_dsn", "")

	v.SetDefault("broker.base_url", DemoBaseURL)
	v.SetDefault("broker.api_key", "")
	v.SetDefault("broker.identifier", "")
	v.SetDefault("broker.password", "")
	v.SetDefault("broker.deal_size", 1.0)
	v.SetDefault("broker.timeout", "15s")
	v.SetDefault("broker.rate_per_sec", 5.0)

	v.SetDefault("strategy.instrument", "")
	v.SetDefault("strategy.resolution", "MINUTE_5")
	v.SetDefault("strategy.max_bars", 100)
	v.SetDefault("strategy.rsi_period", 14)
	v.SetDefault("strategy.smoothing", "simple")
	v.SetDefault("strategy.overbought", 70.0)
	v.SetDefault("strategy.oversold", 30.0)
	v.SetDefault("strategy.order_timeout", "30s")

	v.SetDefault("scheduler.interval", "30m")
	v.SetDefault("scheduler.initial_delay", "60s")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be > 0"))
	}
	if c.Scheduler.InitialDelay < 0 {
		errs = append(errs, errors.New("scheduler.initial_delay must be >= 0"))
	}
	if c.Strategy.RSIPeriod <= 0 {
		errs = append(errs, errors.New("strategy.rsi_period must be > 0"))
	}
	if c.Strategy.MaxBars < c.Strategy.RSIPeriod+1 {
		errs = append(errs, fmt.Errorf("strategy.max_bars must be >= rsi_period+1 (%d)", c.Strategy.RSIPeriod+1))
	}
	if c.Strategy.Oversold >= c.Strategy.Overbought {
		errs = append(errs, errors.New("strategy.oversold must be < strategy.overbought"))
	}
	if c.Strategy.Overbought > 100 || c.Strategy.Oversold < 0 {
		errs = append(errs, errors.New("strategy thresholds must be within [0,100]"))
	}
	switch strings.ToLower(c.Strategy.Smoothing) {
	case "simple", "wilder":
	default:
		errs = append(errs, fmt.Errorf("strategy.smoothing %q: want simple or wilder", c.Strategy.Smoothing))
	}
	if c.Strategy.OrderTimeout <= 0 {
		errs = append(errs, errors.New("strategy.order_timeout must be > 0"))
	}
	if c.Broker.BaseURL == "" {
		errs = append(errs, errors.New("broker.base_url is required"))
	}
	if c.Broker.DealSize <= 0 {
		errs = append(errs, errors.New("broker.deal_size must be > 0"))
	}
	if c.Broker.Timeout <= 0 {
		errs = append(errs, errors.New("broker.timeout must be > 0"))
	}
	if c.Service.AdminPort <= 0 || c.Service.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("service.admin_port %d out of range", c.Service.AdminPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// AdminAddr - адрес для health/metrics.
func (c *Config) AdminAddr() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.AdminPort)
}

// Redacted - yaml для стартового лога, без секретов.
func (c *Config) Redacted() string {
	cp := *c
	cp.Telegram.Token = mask(cp.Telegram.Token)
	cp.Broker.APIKey = mask(cp.Broker.APIKey)
	cp.Broker.Password = mask(cp.Broker.Password)
	cp.DB = mask(cp.DB)

	out, err := yaml.Marshal(cp)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(out)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
