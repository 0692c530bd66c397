package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // pq.StringArray
	"gorm.io/gorm"
)

// Shop is a store residents order from. MinAmount is the funding threshold
// (in minor currency units) a pool for this shop has to reach before a
// consolidated order becomes worthwhile.
type Shop struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	MinAmount  int64          `gorm:"not null" json:"min_amount"`
	Categories pq.StringArray `gorm:"type:text[]" json:"categories"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when no ID is set.
func (s *Shop) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}
