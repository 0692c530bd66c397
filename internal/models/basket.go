package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BasketStatus is the lifecycle status of a basket.
type BasketStatus string

const (
	// BasketInPool - the basket counts toward an open pool's funding total.
	BasketInPool BasketStatus = "in_pool"
	// BasketInChat - the pool converted; the basket belongs to a chatroom.
	BasketInChat BasketStatus = "in_chat"
	// BasketOrdered - the consolidated order has been placed.
	BasketOrdered BasketStatus = "ordered"
	// BasketResolved - delivery confirmed, terminal.
	BasketResolved BasketStatus = "resolved"
)

// Active reports whether the basket still blocks its owner from opening
// another basket for the same shop.
func (s BasketStatus) Active() bool {
	return s == BasketInPool || s == BasketInChat || s == BasketOrdered
}

// Basket is one user's intended order from one shop. Amount is in minor
// currency units. Exactly one of PoolID/ChatroomID is meaningful at a time:
// PoolID while in_pool, ChatroomID afterwards.
type Basket struct {
	ID       string `gorm:"primaryKey" json:"id"`
	OwnerID  string `gorm:"index;not null" json:"owner_id"`
	ShopID   string `gorm:"index;not null" json:"shop_id"`
	Location string `gorm:"index;not null" json:"location"`
	Amount   int64  `gorm:"not null" json:"amount"`
	// OrderLink points at the owner's cart or wish list at the shop.
	OrderLink string `json:"order_link"`
	// Note is free-form order instructions. At least one of OrderLink/Note
	// must be present.
	Note       string       `json:"note"`
	IsReady    bool         `json:"is_ready"`
	Status     BasketStatus `gorm:"index;not null" json:"status"`
	PoolID     *string      `gorm:"index" json:"pool_id,omitempty"`
	ChatroomID *string      `gorm:"index" json:"chatroom_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when no ID is set.
func (b *Basket) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return
}
