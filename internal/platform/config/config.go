package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 结构体定义了应用程序的所有配置项
// 它与 config.yaml 文件的结构完全对应
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Source   SourceConfig   `mapstructure:"source"`
	Campaign CampaignConfig `mapstructure:"campaign"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 定义了服务器相关的配置
type ServerConfig struct {
	Mode    string     `mapstructure:"mode"`
	Address string     `mapstructure:"address"`
	Cors    CorsConfig `mapstructure:"cors"`
	// RefreshRateLimit 是手动刷新接口每秒允许的请求数
	RefreshRateLimit float64 `mapstructure:"refreshRateLimit"`
	RefreshBurst     int     `mapstructure:"refreshBurst"`
}

// CorsConfig 定义了CORS相关的配置
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// SourceConfig 定义了上游快照源
type SourceConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RefreshInterval time.Duration `mapstructure:"refreshInterval"`
	BreakerFailures uint32        `mapstructure:"breakerFailures"`
	BreakerCooldown time.Duration `mapstructure:"breakerCooldown"`
}

// CampaignConfig 定义了展示规则
type CampaignConfig struct {
	DefaultTheme           string        `mapstructure:"defaultTheme"`
	GrandTotalRevealAt     string        `mapstructure:"grandTotalRevealAt"`
	ThermometerScaleMax    string        `mapstructure:"thermometerScaleMax"`
	ThermometerMinFraction string        `mapstructure:"thermometerMinFraction"`
	CountdownTick          time.Duration `mapstructure:"countdownTick"`
	MultiOpenPastWeeks     bool          `mapstructure:"multiOpenPastWeeks"`
}

// DatabaseConfig 定义了快照存档相关的配置
type DatabaseConfig struct {
	Redis   RedisConfig   `mapstructure:"redis"`
	Sqlite  SqliteConfig  `mapstructure:"sqlite"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// RedisConfig 定义了Redis的配置，Address 为空表示不使用Redis
type RedisConfig struct {
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshotTTL"`
}

// SqliteConfig 定义了SQLite的配置
type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// ArchiveConfig 控制是否存档最近一次成功的快照
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig 定义了日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"*"})
	v.SetDefault("server.refreshRateLimit", 0.2)
	v.SetDefault("server.refreshBurst", 1)

	v.SetDefault("source.url", "http://localhost:5000/api/data")
	v.SetDefault("source.timeout", "10s")
	v.SetDefault("source.refreshInterval", "5m")
	v.SetDefault("source.breakerFailures", 3)
	v.SetDefault("source.breakerCooldown", "1m")

	v.SetDefault("campaign.defaultTheme", "lenten-purple")
	v.SetDefault("campaign.grandTotalRevealAt", "2026-04-05T00:00:00Z")
	v.SetDefault("campaign.thermometerScaleMax", "5000")
	v.SetDefault("campaign.thermometerMinFraction", "0.02")
	v.SetDefault("campaign.countdownTick", "1s")
	v.SetDefault("campaign.multiOpenPastWeeks", false)

	v.SetDefault("database.sqlite.path", "./data/portal.db")
	v.SetDefault("database.redis.address", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.redis.snapshotTTL", "72h")
	v.SetDefault("database.archive.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// LoadConfig 函数负责查找、加载和解析配置文件
// path 为空时在 ./config 和 . 中查找 config.yaml；找不到配置文件时使用默认值。
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 允许通过环境变量覆盖配置，例如 SOURCE_URL=...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return errors.New("source.url 不能为空")
	}
	if c.Source.RefreshInterval <= 0 {
		return fmt.Errorf("source.refreshInterval 必须为正数，实际为 %s", c.Source.RefreshInterval)
	}
	if c.Campaign.CountdownTick <= 0 {
		return fmt.Errorf("campaign.countdownTick 必须为正数，实际为 %s", c.Campaign.CountdownTick)
	}
	if _, err := c.Campaign.RevealAt(); err != nil {
		return err
	}
	scale, err := c.Campaign.ScaleMax()
	if err != nil {
		return err
	}
	if !scale.IsPositive() {
		return fmt.Errorf("campaign.thermometerScaleMax 必须为正数，实际为 %s", scale)
	}
	minFill, err := c.Campaign.MinFill()
	if err != nil {
		return err
	}
	if minFill.IsNegative() || minFill.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("campaign.thermometerMinFraction 必须在0到1之间，实际为 %s", minFill)
	}
	return nil
}

// RevealAt 解析总额揭晓时间
func (c CampaignConfig) RevealAt() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.GrandTotalRevealAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("campaign.grandTotalRevealAt 无效: %w", err)
	}
	return t, nil
}

// ScaleMax 解析温度计刻度上限
func (c CampaignConfig) ScaleMax() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.ThermometerScaleMax)
	if err != nil {
		return decimal.Zero, fmt.Errorf("campaign.thermometerScaleMax 无效: %w", err)
	}
	return d, nil
}

// MinFill 解析温度计最小填充比例
func (c CampaignConfig) MinFill() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.ThermometerMinFraction)
	if err != nil {
		return decimal.Zero, fmt.Errorf("campaign.thermometerMinFraction 无效: %w", err)
	}
	return d, nil
}
