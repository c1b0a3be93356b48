package models

import (
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"_id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PendingTasks []string  `json:"pendingTasks" gorm:"-"`
	DateCreated  time.Time `json:"dateCreated" gorm:"not null"`
}

func (User) TableName() string {
	return "users"
}

// PendingTask is one member of a user's pending set. The composite key gives
// the set its no-duplicates guarantee; Position keeps the order ids were added.
type PendingTask struct {
	UserID   string `gorm:"primaryKey;size:36"`
	TaskID   string `gorm:"primaryKey;size:36;index"`
	Position int    `gorm:"not null"`
}

func (PendingTask) TableName() string {
	return "user_pending_tasks"
}

func NewUser(name, email string, pendingTasks []string) User {
	return User{
		ID:           NewID(),
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PendingTasks: UniqueIDs(pendingTasks),
		DateCreated:  time.Now().UTC(),
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPendingTask reports whether taskID is in the user's pending set.
func (u *User) HasPendingTask(taskID string) bool {
	for _, id := range u.PendingTasks {
		if id == taskID {
			return true
		}
	}
	return false
}
