package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypeFallbackSystemFailure = "fallback_system_failure"

	PriorityHigh   = "high"
	PriorityNormal = "normal"

	StatusUnread = "unread"
)

var ErrInvalidNotification = errors.New("invalid_notification")

type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Type      string            `gorm:"column:type" json:"type"`
	Title     string            `gorm:"column:title" json:"title"`
	Message   string            `gorm:"column:message" json:"message"`
	Data      datatypes.JSONMap `gorm:"column:data" json:"data,omitempty"`
	Priority  string            `gorm:"column:priority" json:"priority"`
	Status    string            `gorm:"column:status" json:"status"`
	CreatedAt time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (Notification) TableName() string { return "admin_notifications" }

type NotifyRequest struct {
	Type     string
	Title    string
	Message  string
	Data     map[string]any
	Priority string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
}

// Notifier stores an admin notification and forwards it to the configured
// channels. Only the stored row is required to succeed.
type Notifier interface {
	Notify(ctx context.Context, req NotifyRequest) (*Notification, error)
}
