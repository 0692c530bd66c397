package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageType indicates the kind of message content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
)

// Message is one chatroom message. Rows are append-only: nothing mutates a
// message after insert except setting ReadAt. For image and audio messages
// Content holds an opaque object-storage key, resolved to a time-limited
// signed URL on read.
type Message struct {
	gorm.Model // ID, CreatedAt (sent timestamp), UpdatedAt, DeletedAt

	ChatroomID string      `gorm:"type:uuid;not null;index:idx_chat_msg" json:"chatroom_id"`
	SenderID   string      `gorm:"type:text;not null;index:idx_chat_msg" json:"sender_id"`
	Content    string      `gorm:"type:text;not null" json:"content"`
	Type       MessageType `gorm:"type:text;not null" json:"type"`
	ReadAt     *time.Time  `json:"read_at,omitempty"`
}
