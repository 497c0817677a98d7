package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-payroll/internal/disbursement"
	"go-payroll/internal/messaging/kafka"
	"go-payroll/internal/middleware"
	"go-payroll/internal/payment"
	"go-payroll/internal/payrollbatch"
	"go-payroll/internal/shared/config"
	"go-payroll/internal/taxcalc"
	"go-payroll/internal/taxrule"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	provider payment.Provider,
	cfg *config.Config,
) error {
	// --- Repositories ---
	taxRuleRepo := taxrule.NewRepository(gormDB, zap.L().Named("taxrule.repo"))
	batchRepo := payrollbatch.NewRepository(gormDB)
	attemptRepo := disbursement.NewAttemptRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- Services ---
	taxRuleService := taxrule.NewService(taxRuleRepo)
	calculator := taxcalc.NewCalculator(taxRuleRepo, zap.L().Named("taxcalc"))
	batchService := payrollbatch.NewService(db, batchRepo, calculator)
	disburser := disbursement.NewDisburser(
		db,
		batchRepo,
		attemptRepo,
		outboxRepo,
		provider,
		rdb,
		disbursement.Options{
			Concurrency:   cfg.WorkerConcurrency,
			PayoutTimeout: cfg.PayoutTimeout(),
			RatePerSec:    cfg.PayoutRatePerSec,
		},
		zap.L().Named("disbursement"),
	)
	fundsVerifier := disbursement.NewFundsVerifier(batchRepo)

	// --- Handlers ---
	taxRuleHandler := taxrule.NewHandler(taxRuleService)
	taxCalcHandler := taxcalc.NewHandler(calculator)
	batchHandler := payrollbatch.NewHandler(batchService)
	disbursementHandler := disbursement.NewHandlerWithRedis(disburser, fundsVerifier, rdb)

	// --- Routes Registration ---
	router.Use(middleware.RequestID())

	api := router.Group("/api/v1")
	{
		taxrule.RegisterRoutes(api, taxRuleHandler)
		taxcalc.RegisterRoutes(api, taxCalcHandler)
		payrollbatch.RegisterRoutes(api, batchHandler)
		disbursement.RegisterRoutes(api, disbursementHandler, rdb)
	}

	return nil
}
