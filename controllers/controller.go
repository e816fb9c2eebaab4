package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"listing-chat/middlewares"
	"listing-chat/services"
)

// Controller holds the services behind the HTTP handlers.
type Controller struct {
	Directory *services.ConversationDirectory
	Messages  *services.MessageService
	Hub       *services.Hub
	Log       zerolog.Logger
}

func New(directory *services.ConversationDirectory, messages *services.MessageService, hub *services.Hub, log zerolog.Logger) *Controller {
	return &Controller{
		Directory: directory,
		Messages:  messages,
		Hub:       hub,
		Log:       log.With().Str("component", "http").Logger(),
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(middlewares.UserIDKey)
}
