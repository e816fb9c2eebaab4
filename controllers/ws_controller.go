package controllers

import (
	"github.com/gin-gonic/gin"

	"listing-chat/services"
	"listing-chat/utils"
)

// WSController streams message.created events of one conversation over a
// websocket. Participants only.
func (ctl *Controller) WSController(c *gin.Context) {
	userID := currentUser(c)
	conv, err := ctl.Directory.GetForParticipant(c.Request.Context(), c.Param("conversation_id"), userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	sub := ctl.Hub.Subscribe(conv.ID)
	ctl.Log.Debug().Str("conversation_id", conv.ID).Str("user_id", userID).Msg("stream opened")
	if err := services.ServeSubscription(c.Writer, c.Request, sub, ctl.Log); err != nil {
		ctl.Log.Debug().Err(err).Str("conversation_id", conv.ID).Msg("stream closed")
	}
}
