package main

import (
	"log"

	_ "taxnexus/api/swagger" // swagger docs
	"taxnexus/internal/config"
	"taxnexus/internal/database"
	"taxnexus/internal/handler"
	"taxnexus/internal/middleware"
	"taxnexus/internal/model"
	"taxnexus/internal/nexus"
	"taxnexus/internal/repository"
	"taxnexus/internal/service"
	"taxnexus/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Sales Tax Nexus API
// @version         1.0
// @description     Economic nexus determination, liability estimation and VDA modeling across US states.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	auditRepo := repository.NewAuditRepository(db)

	ruleService := service.NewRuleService(txManager, service.RuleRepositories{
		Thresholds:      repository.NewRuleRepository[model.ThresholdRule](db),
		Marketplace:     repository.NewRuleRepository[model.MarketplaceRule](db),
		TaxRates:        repository.NewRuleRepository[model.TaxRateRule](db),
		InterestPenalty: repository.NewRuleRepository[model.InterestPenaltyRule](db),
	}, auditRepo)

	physicalRepo := repository.NewPhysicalNexusRepository(db)
	engine := nexus.NewEngine(nexus.Options{
		ApproachingRatio: cfg.ApproachingRatio,
		Workers:          cfg.Workers,
	})
	analysisService := service.NewAnalysisService(txManager, service.AnalysisRepositories{
		Analyses:      repository.NewAnalysisRepository(db),
		Transactions:  repository.NewSalesTransactionRepository(db),
		PhysicalFacts: physicalRepo,
		Results:       repository.NewResultRepository(db),
		Audit:         auditRepo,
	}, ruleService, engine, wsHub)
	physicalNexusService := service.NewPhysicalNexusService(txManager, physicalRepo, auditRepo, analysisService, wsHub)
	auditService := service.NewAuditService(auditRepo)
	statisticsService := service.NewStatisticsService(repository.NewStatisticsRepository(db))

	analysisHandler := handler.NewAnalysisHandler(analysisService)
	physicalNexusHandler := handler.NewPhysicalNexusHandler(physicalNexusService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	auditHandler := handler.NewAuditHandler(auditService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	analysisHandler.RegisterRoutes(router.Group(""))
	physicalNexusHandler.RegisterRoutes(router.Group(""))
	ruleHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	statisticsHandler.RegisterRoutes(router.Group(""))

	log.Printf("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
