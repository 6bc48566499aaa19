package router

import (
	"time"

	"tiendapos/internal/auth"
	"tiendapos/internal/config"
	"tiendapos/internal/handler"
	"tiendapos/internal/infra"
	"tiendapos/internal/middleware"
	"tiendapos/internal/repository"
	"tiendapos/internal/service"
	"tiendapos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, verifier *auth.Verifier, mailCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	settingsRepo := repository.NewTaxSettingsRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	catalog := service.NewCatalogCache(rdb, productRepo)
	productSvc := service.NewProductService(productRepo, catalog)
	inventorySvc := service.NewInventoryService(productRepo, movementRepo, catalog)
	settingsSvc := service.NewSettingsService(settingsRepo)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	saleSvc := service.NewSaleService(saleRepo, productRepo, movementRepo, settingsRepo, dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	productsH := handler.NewProductsHandler(productSvc)
	salesH := handler.NewSalesHandler(saleSvc)
	inventoryH := handler.NewInventoryHandler(inventorySvc)
	settingsH := handler.NewSettingsHandler(settingsSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, mailCB))

	// Protected routes — identity comes from the external auth provider's JWT
	authMW := middleware.RequireAuth(verifier)
	v1 := r.Group("/v1", authMW)
	{
		v1.POST("/ventas", salesH.Create)
		v1.GET("/ventas", salesH.List)
		v1.GET("/ventas/:id", salesH.Get)
		v1.PUT("/ventas/:id", salesH.Amend)

		v1.GET("/productos", productsH.List)
		v1.GET("/productos/watch", productsH.Watch)
		v1.GET("/productos/barcode/:barcode", productsH.GetByBarcode)
		v1.GET("/productos/:id", productsH.GetByID)
		v1.POST("/productos", productsH.Create)
		v1.PUT("/productos/:id", productsH.Update)
		v1.DELETE("/productos/:id", productsH.Deactivate)
		v1.PATCH("/productos/:id/reactivar", productsH.Reactivate)
		v1.PATCH("/productos/:id/stock", inventoryH.AdjustStock)

		v1.GET("/inventario/movimientos", inventoryH.ListMovements)

		v1.GET("/configuracion/impuestos", settingsH.GetTaxSettings)
		v1.PUT("/configuracion/impuestos", settingsH.UpdateTaxSettings)
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
