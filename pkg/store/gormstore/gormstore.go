// Package gormstore backs marshaller relation lookups and uniqueness checks
// with a relational database reached through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	glogger "gorm.io/gorm/logger"

	"github.com/goliatone/go-modelgen/pkg/marshal"
	"github.com/goliatone/go-modelgen/pkg/schema"
)

// Config describes a MySQL connection.
type Config struct {
	DSN           string        `mapstructure:"dsn"`
	MaxOpen       int           `mapstructure:"max_open"`
	MaxIdle       int           `mapstructure:"max_idle"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// Open connects to MySQL and routes gorm logging through logger.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("gormstore: dsn is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: NewLogger(logger, glogger.Warn, cfg.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("gormstore: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	}
	logger.Info("gormstore connected", zap.Int("max_open", cfg.MaxOpen), zap.Int("max_idle", cfg.MaxIdle))
	return db, nil
}

// Store implements marshal.Store over model tables.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads the row of model keyed by pk.
func (s *Store) Get(ctx context.Context, model *schema.Model, pk any) (marshal.Record, error) {
	field := model.PK()
	if field == nil {
		return nil, fmt.Errorf("gormstore: model %s has no primary key", model.Name)
	}
	row := map[string]any{}
	err := s.db.WithContext(ctx).
		Table(model.TableName()).
		Where(clause.Eq{Column: clause.Column{Name: field.AttName()}, Value: pk}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(row) == 0) {
		return nil, fmt.Errorf("gormstore: %s %v: %w", model.Name, pk, marshal.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gormstore: get %s: %w", model.Name, err)
	}
	return marshal.Record(row), nil
}

// Exists counts rows holding value in column, ignoring the row keyed by
// exclude.
func (s *Store) Exists(ctx context.Context, model *schema.Model, column string, value any, exclude any) (bool, error) {
	query := s.db.WithContext(ctx).
		Table(model.TableName()).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value})
	if field := model.PK(); field != nil && exclude != nil {
		query = query.Where(clause.Neq{Column: clause.Column{Name: field.AttName()}, Value: exclude})
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("gormstore: exists %s.%s: %w", model.Name, column, err)
	}
	return count > 0, nil
}
