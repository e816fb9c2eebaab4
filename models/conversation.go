package models

import "time"

// Conversation is the private channel between the buyer and the seller of one
// listing. Rows are never updated; the channel key does not rotate.
type Conversation struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ListingID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_triple,priority:1" json:"listing_id"`
	BuyerID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_triple,priority:2;index" json:"buyer_id"`
	SellerID  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_triple,priority:3;index" json:"seller_id"`
	// 导出后的信道密钥 (base64)，不得通过任何接口返回
	ChannelKey string    `gorm:"type:varchar(64);not null" json:"-"`
	CreatedAt  time.Time `gorm:"precision:6;autoCreateTime" json:"created_at"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

// HasParticipant reports whether userID is the buyer or the seller.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.BuyerID || userID == c.SellerID)
}

// Counterparty returns the other participant.
func (c *Conversation) Counterparty(userID string) string {
	if userID == c.BuyerID {
		return c.SellerID
	}
	return c.BuyerID
}
