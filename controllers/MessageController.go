package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"listing-chat/apperrors"
	"listing-chat/utils"
)

type messageResponse struct {
	ID        string     `json:"id"`
	SenderID  string     `json:"senderId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// SendMessage 发送消息
func (ctl *Controller) SendMessage(c *gin.Context) {
	var input struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body"))
		return
	}

	message, err := ctl.Messages.Send(c.Request.Context(), c.Param("conversation_id"), currentUser(c), input.Content)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{
		"messageId": message.ID,
		"createdAt": message.CreatedAt,
	})
}

// GetMessagesByConversationID 获取会话的消息列表（按时间排序，最早的在前）
func (ctl *Controller) GetMessagesByConversationID(c *gin.Context) {
	history, err := ctl.Messages.FetchHistory(c.Request.Context(), c.Param("conversation_id"), currentUser(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	out := make([]messageResponse, 0, len(history))
	for _, m := range history {
		out = append(out, messageResponse{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			ReadAt:    m.ReadAt,
		})
	}
	utils.RespondSuccess(c, out)
}

// MarkRead marks the counterparty's messages as read by the caller.
func (ctl *Controller) MarkRead(c *gin.Context) {
	updated, err := ctl.Messages.MarkRead(c.Request.Context(), c.Param("conversation_id"), currentUser(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"updated": updated})
}
