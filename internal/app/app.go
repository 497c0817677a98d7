package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-payroll/internal/payment"
	"go-payroll/internal/shared/config"
	"go-payroll/internal/shared/connection"
)

func BuildApp(router *gin.Engine) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 1. Setup Infrastructure
	gormDB, err := connection.ConnectGORMWithRetry(
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
		5,
	)
	if err != nil {
		return err
	}
	zap.L().Info("✅ Database connection established")

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}

	redisClient, err := connection.ConnectRedisWithRetry(cfg.RedisAddr, 5)
	if err != nil {
		return err
	}
	zap.L().Info("✅ Redis connection established")

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	// Register Modules & Routes
	return registerModules(router, sqlDB, gormDB, redisClient, provider, cfg)
}

func buildProvider(cfg *config.Config) (payment.Provider, error) {
	switch cfg.PayoutProvider {
	case "sandbox", "":
		return payment.NewSandboxProvider(), nil
	case "gateway":
		return payment.NewGatewayProvider(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.PayoutCurrency)
	default:
		return nil, fmt.Errorf("unknown payout provider %q", cfg.PayoutProvider)
	}
}
