package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Plan, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Plan, error)
}
