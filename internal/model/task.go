package model

import (
	"fmt"
	"time"
)

// Priority is the urgency of a task
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority validates a priority string
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority %q: must be one of high, medium, low", s)
}

// Task represents a to-do item owned by a user
type Task struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"not null;index"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Done        bool      `json:"done" gorm:"not null;default:false"`
	Priority    Priority  `json:"priority" gorm:"size:10;not null;default:'medium'"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskList wraps a page of tasks
type TaskList struct {
	Tasks []Task `json:"tasks"`
}

// TaskCreate is the payload for a new task
type TaskCreate struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Done        bool     `json:"done"`
	Priority    Priority `json:"priority"`
}

// TaskPatch holds the optional fields of a partial task update
type TaskPatch struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Done        *bool     `json:"done"`
	Priority    *Priority `json:"priority"`
}

// TaskFilter narrows a task listing
type TaskFilter struct {
	Priority *Priority
	Done     *bool
}
