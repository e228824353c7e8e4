package models

import (
	"time"

	"github.com/abricot-app/abricot/internal/types"
)

type Task struct {
	BaseModel

	ProjectID   uint               `gorm:"not null;index"`
	Title       string             `gorm:"not null;size:200"`
	Description string             `gorm:"type:text"`
	Status      types.TaskStatus   `gorm:"not null;size:20;default:TODO;index"`
	Priority    types.TaskPriority `gorm:"not null;size:20;default:MEDIUM"`
	DueDate     *time.Time
	CreatorID   uint `gorm:"not null;index"`

	// Relationships
	Project   Project        `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Creator   User           `gorm:"foreignKey:CreatorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Assignees []TaskAssignee `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Comments  []Comment      `gorm:"foreignKey:TaskID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
