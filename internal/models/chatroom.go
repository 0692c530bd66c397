package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatroomState is the lifecycle state of a chatroom.
type ChatroomState string

const (
	// ChatroomWaiting - just spawned, fewer than two active members.
	ChatroomWaiting ChatroomState = "waiting"
	// ChatroomActive - two or more active members, order not yet placed.
	ChatroomActive ChatroomState = "active"
	// ChatroomOrdered - admin placed the consolidated order.
	ChatroomOrdered ChatroomState = "ordered"
	// ChatroomResolved - delivery confirmed, terminal.
	ChatroomResolved ChatroomState = "resolved"
	// ChatroomCanceled is reserved; nothing in the primary flow sets it.
	ChatroomCanceled ChatroomState = "canceled"
)

// Terminal reports whether no further state-mutating actions are allowed.
func (s ChatroomState) Terminal() bool {
	return s == ChatroomResolved || s == ChatroomCanceled
}

// Chatroom is the coordination space spawned from a funded pool. The unique
// index on PoolID is the hard guarantee of at most one chatroom per pool.
type Chatroom struct {
	ID       string        `gorm:"primaryKey" json:"id"`
	PoolID   string        `gorm:"uniqueIndex;not null" json:"pool_id"`
	ShopID   string        `gorm:"index;not null" json:"shop_id"`
	Location string        `gorm:"index;not null" json:"location"`
	State    ChatroomState `gorm:"index;not null" json:"state"`
	// AdminID is empty only when every member has left and nobody could
	// inherit the role.
	AdminID string `gorm:"index" json:"admin_id"`
	// AmountSnapshot is the pool's funding total at conversion time.
	AmountSnapshot int64     `json:"amount_snapshot"`
	ExpireAt       time.Time `json:"expire_at"`
	// WaitExtensions / OrderExtensions count deadline extensions used before
	// and after the order was placed. Each phase allows one.
	WaitExtensions  int        `json:"wait_extensions"`
	OrderExtensions int        `json:"order_extensions"`
	OrderedAt       *time.Time `json:"ordered_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when no ID is set.
func (c *Chatroom) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}
