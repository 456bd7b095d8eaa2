package db

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"collateral-loans/internal/domain/collateral"
	"collateral-loans/internal/domain/consensus"
	"collateral-loans/internal/domain/loan"
	"collateral-loans/internal/domain/pool"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&loan.Loan{},
		&loan.BorrowerLoan{},
		&loan.Ledger{},
		&consensus.Submission{},
		&consensus.RequestNonce{},
		&pool.Movement{},
		&collateral.Transfer{},
	}
}

// Config is the gorm config shared by production and tests. TranslateError
// turns unique-key violations into gorm.ErrDuplicatedKey. OpenGormWithDialector
// pings once itself after tuning the pool, so gorm's own ping is off.
func Config() *gorm.Config {
	return &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		TranslateError:       true,
		DisableAutomaticPing: true,
		NowFunc:              func() time.Time { return time.Now().UTC() },
	}
}

func OpenGorm(dsn string) (*gorm.DB, error) {
	return OpenGormWithDialector(mysql.Open(dsn))
}

func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dial, Config())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "db").Msg("gorm: connected")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
