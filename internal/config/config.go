package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/blues/ideafund/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Funding  FundingConfig  `mapstructure:"funding"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// 投资接口限流（每秒请求数 / 突发量）
	InvestRate  float64 `mapstructure:"invest_rate"`
	InvestBurst int     `mapstructure:"invest_burst"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, memory
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// 连接池
	MaxOpenConns    int `mapstructure:"max_open_conns"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"` // 秒
	// SQL 日志: silent, error, warn, info
	LogLevel      string `mapstructure:"log_level"`
	SlowThreshold int    `mapstructure:"slow_threshold"` // 毫秒
}

// DSN postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainType     string `mapstructure:"chain_type"`    // 链类型 (ethereum, polygon, etc.)
	ChainId       int64  `mapstructure:"chain_id"`      // 链ID
	RpcUrl        string `mapstructure:"rpc_url"`       // RPC节点URL
	Decimals      int32  `mapstructure:"decimals"`      // 展示单位到最小单位的精度
	Confirmations uint64 `mapstructure:"confirmations"` // 确认区块数
	MaxRounds     uint64 `mapstructure:"max_rounds"`    // 等待确认的最大区块数
	PollInterval  int    `mapstructure:"poll_interval"` // 毫秒
}

// PollEvery 轮询间隔
func (c ChainConfig) PollEvery() time.Duration {
	return time.Duration(c.PollInterval) * time.Millisecond
}

// WalletConfig 服务端托管的签名账户，Tokens[i] 是 Keys[i] 对应账户的访问令牌
type WalletConfig struct {
	Keys   []string `mapstructure:"keys"`
	Tokens []string `mapstructure:"tokens"`
}

type FundingConfig struct {
	CommitMode  string `mapstructure:"commit_mode"`  // optimistic, reserve
	AmountLimit string `mapstructure:"amount_limit"` // goal, remaining
}

type FeedConfig struct {
	RefreshInterval int `mapstructure:"refresh_interval"` // 秒
	SweepInterval   int `mapstructure:"sweep_interval"`   // 秒，open 想法状态巡检
}

type NotifyConfig struct {
	Driver    string `mapstructure:"driver"` // local, redis
	PoolSize  int    `mapstructure:"pool_size"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisPass string `mapstructure:"redis_password"`
	RedisDB   int    `mapstructure:"redis_db"`
	Channel   string `mapstructure:"channel"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.Settings 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.Settings 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.Settings 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.invest_rate", 5)
	v.SetDefault("server.invest_burst", 10)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ideafund")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 1800)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_threshold", 200)
	v.SetDefault("chain.chain_type", "ethereum")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.decimals", 18)
	v.SetDefault("chain.confirmations", 1)
	v.SetDefault("chain.max_rounds", 10)
	v.SetDefault("chain.poll_interval", 2000)
	v.SetDefault("wallet.keys", []string{})
	v.SetDefault("wallet.tokens", []string{})
	v.SetDefault("funding.commit_mode", "optimistic")
	v.SetDefault("funding.amount_limit", "goal")
	v.SetDefault("feed.refresh_interval", 60)
	v.SetDefault("feed.sweep_interval", 300)
	v.SetDefault("notify.driver", "local")
	v.SetDefault("notify.pool_size", 16)
	v.SetDefault("notify.redis_addr", "localhost:6379")
	v.SetDefault("notify.redis_password", "")
	v.SetDefault("notify.redis_db", 0)
	v.SetDefault("notify.channel", "ideafund")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ideafund")

	setDefaults(v)

	// 自动读取环境变量，例如 IDEAFUND_CHAIN_RPC_URL
	v.SetEnvPrefix("ideafund")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &cfg
}
