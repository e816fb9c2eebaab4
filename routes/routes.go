package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"listing-chat/config"
	"listing-chat/controllers"
	"listing-chat/middlewares"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(ctl *controllers.Controller, server config.Server, jwtSecret []byte, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestLogger(log))

	origins := server.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// 配置跨域中间件
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := r.Group("/")
	protected.Use(middlewares.TokenAuthMiddleware(jwtSecret))
	{
		protected.GET("/me", ctl.GetUserInfo)
		protected.GET("/conversations", ctl.GetConversation)
		protected.POST("/conversations", ctl.CreateConversationHandler)
		protected.DELETE("/conversations/:conversation_id", ctl.DeleteConversation)
		protected.POST("/conversations/:conversation_id/messages", ctl.SendMessage)
		protected.GET("/conversations/:conversation_id/messages", ctl.GetMessagesByConversationID)
		protected.POST("/conversations/:conversation_id/read", ctl.MarkRead)
		protected.GET("/conversations/:conversation_id/stream", ctl.WSController)
	}

	return r
}
