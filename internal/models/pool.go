package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Pool aggregates baskets for one (shop, location) pair until the shop's
// minimum spend is reached. CurrentAmount must always equal the sum of
// Amount over its in_pool baskets; every adjustment happens in the same
// transaction as the basket mutation that caused it.
type Pool struct {
	ID            string `gorm:"primaryKey" json:"id"`
	ShopID        string `gorm:"index;not null" json:"shop_id"`
	Location      string `gorm:"index;not null" json:"location"`
	MinAmount     int64  `gorm:"not null" json:"min_amount"`
	CurrentAmount int64  `gorm:"not null" json:"current_amount"`
	// Converted flips exactly once, when the pool is turned into a chatroom.
	// A converted pool no longer accepts baskets.
	Converted bool      `gorm:"index" json:"converted"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when no ID is set.
func (p *Pool) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// Funded reports whether the pool has reached its minimum spend.
func (p *Pool) Funded() bool {
	return p.CurrentAmount >= p.MinAmount
}
