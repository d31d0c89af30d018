package migration

import (
	"github.com/rcarraroia/comademig/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		switch cfg.Type {
		case db.TypeSQLite:
			err = ApplySQLiteSchema(sqlDB)
		case db.TypeMySQL:
			log.Warn("mysql schema is managed externally; skipping migrations")
			return nil
		default:
			err = RunMigrations(sqlDB)
		}
		if err != nil {
			return err
		}
		log.Info("schema up to date", zap.String("type", cfg.Type))
		return nil
	}),
)
