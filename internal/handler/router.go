package handler

import (
	"rechargehub/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter builds the gin engine and mounts all routes.
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	api := r.Group("/api/v1")
	{
		api.POST("/recharge", h.Recharge)
		api.GET("/recharge/receipt", h.GetReceipt)

		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.POST("/add-money", h.AddMoney)
			wallet.POST("/transfer", h.Transfer)
		}

		report := api.Group("/report")
		{
			report.GET("/list", h.ListReports)
		}
	}

	// Upstreams are configured with this URL; it stays outside /api/v1.
	r.GET("/callback/recharge", h.Callback)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
