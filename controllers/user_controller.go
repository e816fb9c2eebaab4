package controllers

import (
	"github.com/gin-gonic/gin"

	"listing-chat/apperrors"
	"listing-chat/utils"
)

type UserInfoResponse struct {
	UserID string `json:"userId"`
}

// GetUserInfo 返回当前登录用户
func (ctl *Controller) GetUserInfo(c *gin.Context) {
	userID := currentUser(c)
	if userID == "" {
		utils.RespondError(c, apperrors.ErrAuthenticationRequired)
		return
	}
	utils.RespondSuccess(c, UserInfoResponse{UserID: userID})
}
