package router

import (
	"context"
	"net/http"
	"time"

	"github.com/blues/ideafund/internal/config"
	"github.com/blues/ideafund/internal/feed"
	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/handler"
	"github.com/blues/ideafund/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func Setup(ctx context.Context, engine *funding.Engine, ideaFeed *feed.Feed, auth middleware.Authenticator, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RequestLogger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:   []string{middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		if ideaFeed.LastError() != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  status,
			"service": "ideafund",
		})
	})

	investLimiter := middleware.NewRateLimiter(rate.Limit(cfg.InvestRate), cfg.InvestBurst)
	go investLimiter.Run(ctx)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		ideaHandler := handler.NewIdeaHandler(engine, ideaFeed)
		investmentHandler := handler.NewInvestmentHandler(engine)
		requireSession := middleware.RequireSession(auth)

		ideas := v1.Group("/ideas")
		{
			ideas.POST("", ideaHandler.CreateIdea)
			ideas.GET("", ideaHandler.GetIdeas)
			ideas.GET("/stream", ideaHandler.StreamIdeas)
			ideas.GET("/:id", ideaHandler.GetIdea)
			ideas.GET("/:id/stats", ideaHandler.GetIdeaStats)
			ideas.GET("/:id/investments", investmentHandler.GetInvestments)
			ideas.POST("/:id/investments", investLimiter.Middleware(), requireSession, investmentHandler.Invest)
		}

		v1.POST("/investments/repair", requireSession, investmentHandler.RepairInvestment)
	}

	return r
}
