package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a dormitory resident. Authentication lives outside this service;
// a user row only has to exist so that baskets and memberships have a referent.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	DisplayName string `json:"display_name"`
	// Room is the dorm room label, e.g. "B-412".
	Room string `json:"room"`
}

// BeforeCreate is a GORM hook that assigns a fresh UUID when no ID is set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
