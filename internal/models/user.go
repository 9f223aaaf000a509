package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleStudent      Role = "STUDENT"
	RoleTeacher      Role = "TEACHER"
	RoleEventLeader  Role = "EVENT_LEADER"
	RoleEventManager Role = "EVENT_MANAGER"
	RoleAdmin        Role = "ADMIN"
)

type User struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Role          Role      `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	Deleted       bool      `json:"deleted"` // анонимизированный аккаунт
	TelegramID    int64     `json:"telegram_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
