package models

import (
	"strings"
	"time"
)

// User mirrors an identity-provider account.
// The provider owns the record; we keep a copy for lookups and @mention search.
type User struct {
	ID        string    `json:"id" gorm:"type:varchar(255);primaryKey" validate:"required"`
	Email     string    `json:"email" gorm:"type:varchar(320);not null;uniqueIndex" validate:"required,email"`
	FirstName *string   `json:"firstName" gorm:"type:varchar(255)"`
	LastName  *string   `json:"lastName" gorm:"type:varchar(255)"`
	Username  *string   `json:"username" gorm:"type:varchar(255);index"`
	ImageURL  *string   `json:"imageUrl" gorm:"type:text" validate:"omitnil,url"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) Validate() error {
	u.Email = strings.TrimSpace(u.Email)
	return validateStruct(u, "")
}

// DisplayName prefers first name, then username, then the raw id
func (u *User) DisplayName() string {
	if u.FirstName != nil && *u.FirstName != "" {
		return *u.FirstName
	}
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.ID
}

// PlaceholderUser stands in for an id the directory could not resolve
func PlaceholderUser(id string) *User {
	return &User{ID: id, FirstName: &id, Username: &id}
}

// UserProfile is the public view returned by batch lookup and search
type UserProfile struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Username  *string `json:"username"`
	ImageURL  *string `json:"imageUrl"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Username: u.Username, ImageURL: u.ImageURL}
}

// UserInfo is the read-only metadata shown next to a collaborator's cursor
type UserInfo struct {
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
	Color  string  `json:"color"`
}
