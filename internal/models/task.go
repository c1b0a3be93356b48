package models

import (
	"strings"
	"time"
)

const UnassignedName = "unassigned"

type Task struct {
	ID               string    `json:"_id" gorm:"primaryKey;size:36"`
	Name             string    `json:"name" gorm:"not null"`
	Description      string    `json:"description" gorm:"not null"`
	Deadline         time.Time `json:"deadline" gorm:"not null"`
	Completed        bool      `json:"completed" gorm:"not null;index:idx_tasks_assignment,priority:2"`
	AssignedUser     string    `json:"assignedUser" gorm:"size:36;not null;index:idx_tasks_assignment,priority:1"`
	AssignedUserName string    `json:"assignedUserName" gorm:"not null"`
	DateCreated      time.Time `json:"dateCreated" gorm:"not null"`
}

func (Task) TableName() string {
	return "tasks"
}

// NewTask builds an unassigned task with a fresh id. Assignment is applied
// separately with Assign so callers resolve the user first.
func NewTask(name, description string, deadline time.Time, completed bool) Task {
	return Task{
		ID:               NewID(),
		Name:             strings.TrimSpace(name),
		Description:      description,
		Deadline:         deadline.UTC(),
		Completed:        completed,
		AssignedUserName: UnassignedName,
		DateCreated:      time.Now().UTC(),
	}
}

// IsPending reports whether the task must appear in its assignee's pending set.
func (t *Task) IsPending() bool {
	return t.AssignedUser != "" && !t.Completed
}

// Assign points the task at userID. An empty override falls back to userName.
func (t *Task) Assign(userID, userName, override string) {
	t.AssignedUser = userID
	if name := strings.TrimSpace(override); name != "" {
		t.AssignedUserName = name
		return
	}
	t.AssignedUserName = strings.TrimSpace(userName)
}

func (t *Task) Unassign() {
	t.AssignedUser = ""
	t.AssignedUserName = UnassignedName
}
