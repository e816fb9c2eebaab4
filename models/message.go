package models

import "time"

// Message is one encrypted, immutable chat message. Only ReadAt changes after
// insert.
type Message struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string     `gorm:"type:varchar(36);not null;index:idx_message_history,priority:1" json:"conversation_id"`
	SenderID       string     `gorm:"type:varchar(64);not null" json:"sender_id"`
	Ciphertext     []byte     `gorm:"not null" json:"-"`
	Nonce          []byte     `gorm:"not null" json:"-"`
	CreatedAt      time.Time  `gorm:"precision:6;index:idx_message_history,priority:2" json:"created_at"`
	ReadAt         *time.Time `gorm:"precision:6" json:"read_at,omitempty"`
}
