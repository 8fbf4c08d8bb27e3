package models

import (
	"time"

	"github.com/freshcut/chickenshop/pkg/enums"
)

// UserProfile mirrors the backend's profile row. Address holds either a JSON
// encoded draft or a legacy free-form string.
type UserProfile struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Username    string     `gorm:"type:text;not null;uniqueIndex" json:"username"`
	DisplayName *string    `gorm:"type:text" json:"display_name,omitempty"`
	Phone       *string    `gorm:"type:text" json:"phone,omitempty"`
	Address     *string    `gorm:"type:text" json:"address,omitempty"`
	Role        enums.Role `gorm:"type:text;not null;default:customer" json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }
