package model

import (
	"time"
)

type UserRole string

const (
	Player    UserRole = "player"
	Organizer UserRole = "organizer"
	Admin     UserRole = "admin"
)

// User is a competition participant. The ID is the stable external id issued
// by the chat platform (staff accounts get a uuid), not an autoincrement.
// swagger:model User
type User struct {
	ID                 string     `gorm:"primaryKey;size:64" json:"id"`
	Username           string     `gorm:"size:100;not null" json:"username"`
	Password           string     `gorm:"size:100" json:"-"` // organizers only
	Role               UserRole   `gorm:"type:varchar(20);default:'player'" json:"role"`
	Points             int        `gorm:"default:0" json:"points"` // current round
	LifetimePoints     int        `gorm:"default:0" json:"lifetimePoints"`
	AnonymousMode      bool       `gorm:"default:false" json:"anonymousMode"`
	Blacklisted        bool       `gorm:"default:false" json:"blacklisted"`
	FlagSubmitCooldown *time.Time `json:"flagSubmitCooldown,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// DisplayLifetimePoints is the user-facing lifetime total. The stored snapshot
// only moves at round reset, so the current round may exceed it.
func (u *User) DisplayLifetimePoints() int {
	if u.Points > u.LifetimePoints {
		return u.Points
	}
	return u.LifetimePoints
}
