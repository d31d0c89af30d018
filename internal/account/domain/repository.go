package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindSubscriptionByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*Subscription, error)
	FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindProfile(ctx context.Context, db *gorm.DB, userID string) (*Profile, error)
	InsertUser(ctx context.Context, db *gorm.DB, user *User) error
	UpsertProfile(ctx context.Context, db *gorm.DB, profile *Profile) error
	InsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	// FindActiveAffiliate matches either the affiliate id or its referral code.
	FindActiveAffiliate(ctx context.Context, db *gorm.DB, ref string) (*Affiliate, error)
	// InsertCommission reports false when a commission for the payment exists.
	InsertCommission(ctx context.Context, db *gorm.DB, commission *Commission) (bool, error)
}
