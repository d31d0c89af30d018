// Package dbtest opens isolated in-memory SQLite databases with the
// application schema applied.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rcarraroia/comademig/internal/migration"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", name)

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migration.ApplySQLiteSchema(sqlDB); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return conn
}

// Count returns the number of rows in table matching the optional where clause.
func Count(t testing.TB, conn *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var count int64
	if err := conn.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}

// SeedPlan inserts an active BRL plan.
func SeedPlan(t testing.TB, conn *gorm.DB, id string, valueCents int64, cycle string) {
	t.Helper()
	if err := conn.Exec(
		`INSERT INTO subscription_plans (id, name, member_type, value_cents, currency, cycle, active, capabilities)
		 VALUES (?, ?, ?, ?, 'BRL', ?, ?, '[]')`,
		id, "Plano "+id, "pastor", valueCents, cycle, true,
	).Error; err != nil {
		t.Fatalf("seed plan %s: %v", id, err)
	}
}

// SeedAffiliate inserts an affiliate; a nil percentage leaves the column NULL.
func SeedAffiliate(t testing.TB, conn *gorm.DB, id, code, status string, percentage *int) {
	t.Helper()
	if err := conn.Exec(
		`INSERT INTO affiliates (id, referral_code, commission_percentage, status) VALUES (?, ?, ?, ?)`,
		id, code, percentage, status,
	).Error; err != nil {
		t.Fatalf("seed affiliate %s: %v", id, err)
	}
}
