package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/rcarraroia/comademig/internal/account/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindSubscriptionByPaymentID(ctx context.Context, db *gorm.DB, paymentID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Where("gateway_payment_id = ?", paymentID).Take(&sub).Error
	return found(&sub, err)
}

func (r *repo) FindUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Take(&user).Error
	return found(&user, err)
}

func (r *repo) FindProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error
	return found(&profile, err)
}

func (r *repo) InsertUser(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) UpsertProfile(ctx context.Context, db *gorm.DB, profile *domain.Profile) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "email", "cpf", "phone", "address", "member_type", "status",
			"gateway_customer_id", "payment_confirmed_at", "registration_flow_version", "updated_at",
		}),
	}).Create(profile).Error
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindActiveAffiliate(ctx context.Context, db *gorm.DB, ref string) (*domain.Affiliate, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).
		Where("(id = ? OR referral_code = ?) AND status = ?", ref, ref, domain.AffiliateStatusActive).
		Take(&affiliate).Error
	return found(&affiliate, err)
}

func (r *repo) InsertCommission(ctx context.Context, db *gorm.DB, commission *domain.Commission) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_id"}}, DoNothing: true}).
		Create(commission)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
