package models

import "time"

// BaseModel is gorm.Model without soft deletes: rows guarded by unique
// indexes (memberships, assignments) must really disappear when removed.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
