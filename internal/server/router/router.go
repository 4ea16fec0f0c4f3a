package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(lc *handlers.LifecycleHandler, rej *handlers.RejectionHandler, trace *handlers.TraceHandler, caps *handlers.CapabilityHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	animals := r.Group("/animals")
	{
		animals.POST("", lc.RegisterAnimal)
		animals.GET("/:id", lc.GetAnimal)
		animals.POST("/:id/transfer", lc.TransferAnimal)
		animals.POST("/:id/receive", lc.ReceiveAnimal)
		animals.POST("/:id/slaughter", lc.Slaughter)
		animals.POST("/:id/process", lc.MarkProcessed)
	}

	parts := r.Group("/parts")
	{
		parts.POST("/:id/transfer", lc.TransferPart)
		parts.POST("/:id/receive", lc.ReceivePart)
	}

	products := r.Group("/products")
	{
		products.POST("", lc.CreateProduct)
		products.POST("/:id/transfer", lc.TransferProduct)
		products.POST("/:id/receive", lc.ReceiveProduct)
		products.POST("/:id/sell", lc.SellProduct)
		products.POST("/:id/consume", lc.ConsumeProduct)
		products.POST("/:id/timeline", lc.RecordTimelineEvent)
		products.GET("/:id/trace", trace.Trace)
	}

	rejections := r.Group("/rejections")
	{
		rejections.POST("", rej.Reject)
		rejections.POST("/:id/confirm", rej.ConfirmRejection)
		rejections.POST("/:id/appeals", rej.FileAppeal)
	}
	r.POST("/appeals/:id/resolve", rej.ResolveAppeal)
	r.GET("/units/:kind/:id/rejections", rej.ListRejections)

	r.POST("/capabilities", caps.Grant)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
