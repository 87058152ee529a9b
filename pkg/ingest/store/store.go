// Package store persists accepted runs for the local ingest server.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/allureops/uploadoor/pkg/config"
)

// Store provides persistence for accepted runs.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, project string, id uint) (*Run, error)
	ListRuns(ctx context.Context, project string) ([]Run, error)
	LatestRun(ctx context.Context, project string) (*Run, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver %q", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Run{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Debug("Store started")

	return nil
}

// Stop closes the database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting database handle: %w", err)
	}

	return sqlDB.Close()
}

// CreateRun inserts a run and fills in its assigned ID.
func (s *store) CreateRun(ctx context.Context, run *Run) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	return nil
}

// GetRun fetches one run by project and id.
func (s *store) GetRun(ctx context.Context, project string, id uint) (*Run, error) {
	var run Run

	err := s.db.WithContext(ctx).
		Where("project = ? AND id = ?", project, id).
		First(&run).Error
	if err != nil {
		return nil, fmt.Errorf("fetching run %d: %w", id, err)
	}

	return &run, nil
}

// ListRuns returns all runs for a project, newest first.
func (s *store) ListRuns(ctx context.Context, project string) ([]Run, error) {
	var runs []Run

	err := s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("id DESC").
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	return runs, nil
}

// LatestRun returns the most recent run for a project, or nil when the
// project has none.
func (s *store) LatestRun(ctx context.Context, project string) (*Run, error) {
	var run Run

	err := s.db.WithContext(ctx).
		Where("project = ?", project).
		Order("id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("fetching latest run: %w", err)
	}

	return &run, nil
}
