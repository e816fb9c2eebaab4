package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"listing-chat/apperrors"
	"listing-chat/utils"
)

type conversationResponse struct {
	ConversationID string    `json:"conversationId"`
	ListingID      string    `json:"listingId"`
	BuyerID        string    `json:"buyerId"`
	SellerID       string    `json:"sellerId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// GetConversation 获取当前用户的全部会话
func (ctl *Controller) GetConversation(c *gin.Context) {
	conversations, err := ctl.Directory.ListForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	out := make([]conversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, conversationResponse{
			ConversationID: conv.ID,
			ListingID:      conv.ListingID,
			BuyerID:        conv.BuyerID,
			SellerID:       conv.SellerID,
			CreatedAt:      conv.CreatedAt,
		})
	}
	utils.RespondSuccess(c, out)
}

// CreateConversationHandler 创建会话（已存在则直接返回）
func (ctl *Controller) CreateConversationHandler(c *gin.Context) {
	var requestData struct {
		ListingID      string `json:"listingId"`
		CounterpartyID string `json:"counterpartyId"`
	}
	if err := c.ShouldBindJSON(&requestData); err != nil {
		utils.RespondError(c, apperrors.Validation("invalid request body"))
		return
	}

	conv, err := ctl.Directory.OpenChannel(c.Request.Context(), requestData.ListingID, currentUser(c), requestData.CounterpartyID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"conversationId": conv.ID})
}

// DeleteConversation removes the conversation with its messages and ends its
// live streams.
func (ctl *Controller) DeleteConversation(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if err := ctl.Directory.Delete(c.Request.Context(), conversationID, currentUser(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	ctl.Hub.CloseConversation(conversationID)
	c.Status(http.StatusNoContent)
}
