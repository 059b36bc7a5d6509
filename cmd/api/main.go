package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waste-reduction-api/internal/api"
	"waste-reduction-api/internal/core/dataset"
	"waste-reduction-api/internal/core/engine"
	"waste-reduction-api/internal/core/recommend"
	"waste-reduction-api/internal/core/recommend/cache"
	"waste-reduction-api/internal/infrastructure/config"
	"waste-reduction-api/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("data_source", cfg.DataSource.Mode),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
		zap.Int("latent_factors", cfg.Engine.LatentFactors),
		zap.Int("max_tfidf_terms", cfg.Engine.MaxTFIDFTerms),
	)

	// 建立資料來源
	loader, err := buildLoader(cfg)
	if err != nil {
		common.LogFatal("Failed to initialize data source", zap.Error(err))
	}

	// 建立結果快取
	store, err := buildCache(cfg)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	// 建立推薦引擎與服務
	system := engine.NewSystem(engineParams(cfg))
	service := recommend.NewService(system, loader, store)

	// 首次載入資料並建模；失敗直接退出，不提供空模型服務
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 5*time.Minute)
	if _, err := service.Refresh(startupCtx); err != nil {
		cancelStartup()
		common.LogFatal("Initial model build failed", zap.Error(err))
	}
	cancelStartup()

	// 設置路由
	router, err := api.SetupRouter(cfg, service)
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	// 設置關閉超時
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	common.LogInfo("Server exited")
}

// buildLoader 依設定選擇 CSV 或 Supabase 資料來源
func buildLoader(cfg *config.Config) (dataset.Loader, error) {
	switch cfg.DataSource.Mode {
	case "csv":
		return dataset.NewCSVLoader(
			cfg.DataSource.UsersPath,
			cfg.DataSource.ProductsPath,
			cfg.DataSource.TransactionsPath,
		), nil
	case "supabase":
		return dataset.NewSupabaseLoader(dataset.SupabaseConfig{
			URL:      cfg.DataSource.SupabaseURL,
			Key:      cfg.DataSource.SupabaseKey,
			Timeout:  cfg.DataSource.Timeout,
			PageSize: cfg.DataSource.PageSize,
		}), nil
	default:
		return nil, fmt.Errorf("unknown data source mode: %s", cfg.DataSource.Mode)
	}
}

// buildCache 依設定選擇快取後端；停用時回傳 nil
func buildCache(cfg *config.Config) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		common.LogInfo("Result cache disabled")
		return nil, nil
	}
	switch cfg.Cache.Backend {
	case "redis":
		service, err := cache.NewService(&cfg.Cache)
		if err != nil {
			return nil, err
		}
		return service, nil
	case "memory":
		return cache.NewManager(&cfg.Cache), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
}

// engineParams 設定值轉為引擎參數
func engineParams(cfg *config.Config) engine.Params {
	return engine.Params{
		LatentFactors:       cfg.Engine.LatentFactors,
		SVDSeed:             cfg.Engine.SVDSeed,
		MaxTFIDFTerms:       cfg.Engine.MaxTFIDFTerms,
		TextWeight:          cfg.Engine.TextWeight,
		NumericWeight:       cfg.Engine.NumericWeight,
		CollaborativeWeight: cfg.Engine.CollaborativeWeight,
		ContentWeight:       cfg.Engine.ContentWeight,
		UrgencyBoostCap:     cfg.Engine.UrgencyBoostCap,
		DeadStockBonus:      cfg.Engine.DeadStockBonus,
		ClearanceRatio:      cfg.Engine.ClearanceRatio,
		ClearanceFloorUnits: cfg.Engine.ClearanceFloorUnits,
		ColdStartWindowDays: cfg.Engine.ColdStartWindowDays,
		PricingWindowDays:   cfg.Engine.PricingWindowDays,
		AutoMarkdown:        cfg.Engine.AutoMarkdown,
		MaxCatalogSize:      cfg.Engine.MaxCatalogSize,
	}
}
