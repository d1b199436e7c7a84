package db

import (
	"fmt"
	"time"

	"loanflow/internal/domain/approval"
	"loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm dialector for driver ("mysql" or "sqlite").
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("db: unsupported driver %q", driver)
}

// OpenGorm connects, tunes the pool and pings. SQLite gets a single
// connection; it serializes writers anyway and ":memory:" is per-connection.
func OpenGorm(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	dial, err := Dialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := OpenGormWithDialector(dial)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if log != nil {
		log.Info("gorm: connected", zap.String("driver", driver))
	}
	return db, nil
}

func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// duplicate-key errors surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
	db, err := gorm.Open(dial, cfg)
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
	return db, nil
}

// AutoMigrate creates or updates the loan tables and their unique indexes.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&loan.Loan{}, &approval.Log{}, &repayment.Installment{})
}
