package models

import "time"

// ChatMembership records a user's participation in a chatroom. Leaving (or
// being removed) sets LeftAt instead of deleting the row, so the history of
// who took part survives. At most one row per (chatroom, user) may have
// LeftAt unset.
type ChatMembership struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ChatroomID string     `gorm:"not null;index:idx_chat_member" json:"chatroom_id"`
	UserID     string     `gorm:"not null;index:idx_chat_member" json:"user_id"`
	JoinedAt   time.Time  `json:"joined_at"`
	LeftAt     *time.Time `gorm:"index" json:"left_at,omitempty"`
}

// ActiveMember reports whether the membership still counts toward the room.
func (m *ChatMembership) ActiveMember() bool {
	return m.LeftAt == nil
}
