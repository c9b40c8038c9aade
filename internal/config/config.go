package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env         string  `json:"env"`           // 运行环境: local / prod
	LogLevel    string  `json:"log_level"`     // 日志级别: debug / info / warn / error
	HTTPAddr    string  `json:"http_addr"`     // API 服务监听地址
	FrontendURL string  `json:"frontend_url"`  // 前端地址（用于拼接验证 / 重置链接）
	AuthRate    float64 `json:"auth_rate"`     // 认证接口限流速率（token/s，按 IP）
	AuthBurst   float64 `json:"auth_burst"`    // 认证接口限流桶容量
	DefaultPage int     `json:"default_page"`  // 列表默认页大小
	MaxPageSize int     `json:"max_page_size"` // 列表最大页大小
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"` // 发件人显示名称
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret                string `json:"jwt_secret"`                  // JWT 签名密钥（必填，无默认值）
	AccessTokenExpireMinutes int    `json:"access_token_expire_minutes"` // Access Token 有效期（分钟）
	EmailTokenExpireHours    int    `json:"email_token_expire_hours"`    // 邮箱验证令牌有效期（小时）
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值，
// 环境变量始终优先覆盖。JWT 密钥没有默认值，缺失时返回错误。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	cfg := &Config{}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg = getDefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, validate(cfg)
	}

	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// 解析 JSON
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, validate(cfg)
}

// validate 检查没有安全默认值的必填项。
func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Security.JWTSecret) == "" {
		return fmt.Errorf("config: SECRET_KEY is required")
	}
	return nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:         "local",
			LogLevel:    "info",
			HTTPAddr:    ":8000",
			FrontendURL: "http://localhost:3000",
			AuthRate:    3,
			AuthBurst:   10,
			DefaultPage: 10,
			MaxPageSize: 100,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/sow?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
			FromName: "SOW",
		},
		Security: SecurityConfig{
			AccessTokenExpireMinutes: 30,
			EmailTokenExpireHours:    24,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.FrontendURL == "" {
		cfg.App.FrontendURL = defaults.App.FrontendURL
	}
	if cfg.App.AuthRate == 0 {
		cfg.App.AuthRate = defaults.App.AuthRate
	}
	if cfg.App.AuthBurst == 0 {
		cfg.App.AuthBurst = defaults.App.AuthBurst
	}
	if cfg.App.DefaultPage == 0 {
		cfg.App.DefaultPage = defaults.App.DefaultPage
	}
	if cfg.App.MaxPageSize == 0 {
		cfg.App.MaxPageSize = defaults.App.MaxPageSize
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Email.SMTPHost == "" {
		cfg.Email.SMTPHost = defaults.Email.SMTPHost
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = defaults.Email.FromName
	}
	if cfg.Security.AccessTokenExpireMinutes == 0 {
		cfg.Security.AccessTokenExpireMinutes = defaults.Security.AccessTokenExpireMinutes
	}
	if cfg.Security.EmailTokenExpireHours == 0 {
		cfg.Security.EmailTokenExpireHours = defaults.Security.EmailTokenExpireHours
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("secret_key", "SECRET_KEY")
	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_password", "SMTP_PASSWORD")
	_ = viper.BindEnv("frontend_url", "FRONTEND_URL")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := viper.GetString("frontend_url"); v != "" {
		cfg.App.FrontendURL = v
	}
	if v := os.Getenv("APP_AUTH_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.AuthRate = f
		}
	}
	if v := os.Getenv("APP_AUTH_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.AuthBurst = f
		}
	}

	if v := viper.GetString("secret_key"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Security.AccessTokenExpireMinutes = i
		}
	}
	if v := os.Getenv("EMAIL_TOKEN_EXPIRE_HOURS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Security.EmailTokenExpireHours = i
		}
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := viper.GetString("db_host"); v != "" {
			host := v
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = host + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
		if cfg.Email.FromEmail == "" {
			cfg.Email.FromEmail = v
		}
	}
	if v := viper.GetString("smtp_password"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("SMTP_FROM_NAME"); v != "" {
		cfg.Email.FromName = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Passwd: "",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "sow",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}
