package models

import "time"

// TaskAssignee is the (task, user) assignment join row.
type TaskAssignee struct {
	TaskID     uint      `gorm:"primaryKey;autoIncrement:false"`
	UserID     uint      `gorm:"primaryKey;autoIncrement:false;index"`
	AssignedAt time.Time `gorm:"autoCreateTime"`

	// Relationships
	Task Task `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
