package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	Engine      EngineConfig     `mapstructure:"engine"`
	DataSource  DataSourceConfig `mapstructure:"datasource"`
	Cache       CacheConfig      `mapstructure:"cache"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// EngineConfig 推薦引擎配置
type EngineConfig struct {
	LatentFactors       int     `mapstructure:"latent_factors"`        // 協同過濾隱因子數
	SVDSeed             int64   `mapstructure:"svd_seed"`              // 固定種子確保重建可重現
	MaxTFIDFTerms       int     `mapstructure:"max_tfidf_terms"`       // 內容文字向量詞彙上限
	TextWeight          float64 `mapstructure:"text_weight"`           // TF-IDF 特徵權重
	NumericWeight       float64 `mapstructure:"numeric_weight"`        // 數值特徵權重
	CollaborativeWeight float64 `mapstructure:"collaborative_weight"`  // 混合分數中的協同權重
	ContentWeight       float64 `mapstructure:"content_weight"`        // 混合分數中的內容權重
	UrgencyBoostCap     float64 `mapstructure:"urgency_boost_cap"`     // 混合分數的緊迫加成上限
	DeadStockBonus      float64 `mapstructure:"dead_stock_bonus"`      // 死貨風險商品的固定加分
	ClearanceRatio      float64 `mapstructure:"clearance_ratio"`       // 到期前需售出的庫存比例
	ClearanceFloorUnits float64 `mapstructure:"clearance_floor_units"` // 絕對銷量下限（0 表示停用）
	ColdStartWindowDays int     `mapstructure:"cold_start_window_days"`
	PricingWindowDays   int     `mapstructure:"pricing_window_days"` // 定價建議只看此天數內到期的商品
	AutoMarkdown        bool    `mapstructure:"auto_markdown"`       // 重建時自動調升風險商品折扣
	MaxCatalogSize      int     `mapstructure:"max_catalog_size"`    // O(n²) 相似度矩陣的目錄上限
}

// DataSourceConfig 快照資料來源配置
type DataSourceConfig struct {
	Mode             string        `mapstructure:"mode"` // csv 或 supabase
	UsersPath        string        `mapstructure:"users_path"`
	ProductsPath     string        `mapstructure:"products_path"`
	TransactionsPath string        `mapstructure:"transactions_path"`
	SupabaseURL      string        `mapstructure:"supabase_url"`
	SupabaseKey      string        `mapstructure:"supabase_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	PageSize         int           `mapstructure:"page_size"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory 或 redis
	RedisAddr       string        `mapstructure:"redis_addr"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("datasource.supabase_url", "SUPABASE_URL")
	viper.BindEnv("datasource.supabase_key", "SUPABASE_KEY")
	viper.BindEnv("datasource.mode", "DATA_SOURCE_MODE")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.backend", "CACHE_BACKEND")
	viper.BindEnv("cache.redis_addr", "REDIS_ADDR")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("dedup_window", "DEDUP_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "waste-reduction-api")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// 引擎設定
	viper.SetDefault("engine.latent_factors", 50)
	viper.SetDefault("engine.svd_seed", 42)
	viper.SetDefault("engine.max_tfidf_terms", 100)
	viper.SetDefault("engine.text_weight", 0.6)
	viper.SetDefault("engine.numeric_weight", 0.4)
	viper.SetDefault("engine.collaborative_weight", 0.6)
	viper.SetDefault("engine.content_weight", 0.4)
	viper.SetDefault("engine.urgency_boost_cap", 0.5)
	viper.SetDefault("engine.dead_stock_bonus", 0.15)
	viper.SetDefault("engine.clearance_ratio", 0.5)
	viper.SetDefault("engine.clearance_floor_units", 80)
	viper.SetDefault("engine.cold_start_window_days", 30)
	viper.SetDefault("engine.pricing_window_days", 60)
	viper.SetDefault("engine.auto_markdown", true)
	viper.SetDefault("engine.max_catalog_size", 5000)

	// 資料來源設定
	viper.SetDefault("datasource.mode", "csv")
	viper.SetDefault("datasource.users_path", "data/users.csv")
	viper.SetDefault("datasource.products_path", "data/products.csv")
	viper.SetDefault("datasource.transactions_path", "data/transactions.csv")
	viper.SetDefault("datasource.timeout", "30s")
	viper.SetDefault("datasource.page_size", 1000)

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.ttl", "10m")
	viper.SetDefault("cache.cleanup_interval", "10m")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")

	// 新增 dedup window 預設
	viper.SetDefault("dedup_window", "1s")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證引擎設定
	if config.Engine.LatentFactors <= 0 {
		return fmt.Errorf("invalid latent factors")
	}
	if config.Engine.MaxTFIDFTerms <= 0 {
		return fmt.Errorf("invalid tfidf term limit")
	}
	if config.Engine.ClearanceRatio < 0 || config.Engine.ClearanceRatio > 1 {
		return fmt.Errorf("clearance ratio must be in [0,1]")
	}
	if config.Engine.MaxCatalogSize <= 0 {
		return fmt.Errorf("invalid max catalog size")
	}

	// 驗證資料來源設定
	switch config.DataSource.Mode {
	case "csv":
		if config.DataSource.ProductsPath == "" || config.DataSource.TransactionsPath == "" || config.DataSource.UsersPath == "" {
			return fmt.Errorf("csv datasource requires users/products/transactions paths")
		}
	case "supabase":
		if config.DataSource.SupabaseURL == "" || config.DataSource.SupabaseKey == "" {
			return fmt.Errorf("supabase datasource requires url and key")
		}
	default:
		return fmt.Errorf("unknown datasource mode: %s", config.DataSource.Mode)
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
		if config.Cache.Backend != "memory" && config.Cache.Backend != "redis" {
			return fmt.Errorf("unknown cache backend: %s", config.Cache.Backend)
		}
	}

	return nil
}
