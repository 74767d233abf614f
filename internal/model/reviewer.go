package model

import "gorm.io/gorm"

// Reviewer is an administrator allowed to act on applications and contacts.
type Reviewer struct {
	gorm.Model
	Username     string `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	Email        string `gorm:"type:varchar(254)" json:"email,omitempty"`
	Active       bool   `gorm:"default:true;not null" json:"active"`
}
