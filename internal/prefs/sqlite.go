package prefs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// preference is one stored key.
type preference struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (preference) TableName() string { return "preferences" }

// SQLiteStore keeps preferences in a SQLite database through gorm.
type SQLiteStore struct {
	db  *gorm.DB
	log logger.Logger
}

// NewSQLiteStore opens (or creates) the database at path and migrates the schema.
func NewSQLiteStore(path string, log logger.Logger) (*SQLiteStore, error) {
	log = logger.OrDiscard(log).With(logger.String("backend", BackendSQLite))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, errors.New(err).
				Component("prefs").
				Category(errors.CategoryStorage).
				Context("operation", "create_directory").
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(log, slowQueryThreshold, gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Newf("failed to open SQLite database: %w", err).
			Component("prefs").
			Category(errors.CategoryStorage).
			Context("path", path).
			Build()
	}

	if err := db.AutoMigrate(&preference{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, errors.Newf("failed to migrate preferences table: %w", err).
			Component("prefs").
			Category(errors.CategoryStorage).
			Build()
	}

	log.Debug("Preferences database ready", logger.String("path", path))
	return &SQLiteStore{db: db, log: log}, nil
}

// Get returns false when the key is absent or the lookup fails; failures are logged.
func (s *SQLiteStore) Get(key string) (string, bool) {
	var rec preference
	err := s.db.Where("`key` = ?", key).First(&rec).Error
	switch {
	case err == nil:
		return rec.Value, true
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false
	default:
		s.log.Warn("Failed to read preference", logger.String("key", key), logger.Error(err))
		return "", false
	}
}

// Set upserts the key.
func (s *SQLiteStore) Set(key, value string) error {
	rec := &preference{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return errors.New(err).
			Component("prefs").
			Category(errors.CategoryStorage).
			Context("operation", "upsert_preference").
			Context("key", key).
			Build()
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm's messages into the module logger.
type gormLogger struct {
	log           logger.Logger
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func newGormLogger(log logger.Logger, slowThreshold time.Duration, level gormlogger.LogLevel) *gormLogger {
	return &gormLogger{log: log, slowThreshold: slowThreshold, level: level}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.WithContext(ctx).Error("GORM error", logger.String("msg", fmt.Sprintf(msg, data...)))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := l.log.WithContext(ctx)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		log.Error("Database query failed",
			logger.Error(err),
			logger.String("sql", sql),
			logger.Duration("elapsed", elapsed))
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		log.Warn("Slow query",
			logger.String("sql", sql),
			logger.Int64("rows", rows),
			logger.Duration("elapsed", elapsed))
	case l.level >= gormlogger.Info:
		log.Trace("Query", logger.String("sql", sql), logger.Int64("rows", rows))
	}
}
