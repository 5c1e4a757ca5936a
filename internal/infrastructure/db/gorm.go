package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Pool sizes the underlying *sql.DB.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultPool sizes for read concurrency; writers serialize on the
// protocol_state row lock.
func DefaultPool() Pool {
	return Pool{MaxOpen: 30, MaxIdle: 10, MaxLifetime: 30 * time.Minute, MaxIdleTime: 10 * time.Minute}
}

// zapWriter routes gorm's slow-query and error lines into zap.
type zapWriter struct{ s *zap.SugaredLogger }

func (w zapWriter) Printf(format string, args ...interface{}) { w.s.Warnf(format, args...) }

func gormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Warn)
	}
	return logger.New(zapWriter{s: log.Sugar()}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func OpenGorm(dsn string, pool Pool, log *zap.Logger) (*gorm.DB, error) {
	return OpenGormWithDialector(mysql.Open(dsn), pool, log)
}

// OpenGormWithDialector opens, sizes the pool, then pings once. Tests hand
// in a dialector over sqlmock.
func OpenGormWithDialector(dial gorm.Dialector, pool Pool, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger:               gormLogger(log),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gorm open: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.MaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("gorm ping: %w", err)
	}
	return gdb, nil
}
