package models

import "github.com/abricot-app/abricot/internal/types"

type ProjectMembership struct {
	BaseModel

	UserID    uint       `gorm:"not null;uniqueIndex:idx_user_project"`
	ProjectID uint       `gorm:"not null;uniqueIndex:idx_user_project;index"`
	Role      types.Role `gorm:"not null;size:20"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
