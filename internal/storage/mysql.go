package storage

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"comfy-studio/server/internal/config"
	"comfy-studio/server/internal/models"
)

// MySQLStore keeps the durable generation history: every run and every
// artifact ever produced, surviving Redis expiry and restarts.
type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&models.RunRecord{}, &models.ArtifactRecord{}); err != nil {
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *MySQLStore) GetDB() *gorm.DB {
	return s.db
}

// WithTx runs fn inside one transaction.
func (s *MySQLStore) WithTx(fn func(*gorm.DB) error) error {
	return s.db.Transaction(fn)
}

// SaveRun upserts a run's history row; the same run is written once per
// state transition, last write wins.
func (s *MySQLStore) SaveRun(record models.RunRecord) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&record).Error
}

// SaveArtifacts appends a completed run's artifacts to the history.
func (s *MySQLStore) SaveArtifacts(records []models.ArtifactRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.Create(&records).Error
}

// RecentRuns returns the latest run rows, newest first.
func (s *MySQLStore) RecentRuns(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.RunRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// ArtifactHistory returns the latest artifact rows, newest first.
func (s *MySQLStore) ArtifactHistory(limit int) ([]models.ArtifactRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []models.ArtifactRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// DeleteArtifact removes one artifact row; removing from the strip also
// removes it from history, matching the panel's delete button.
func (s *MySQLStore) DeleteArtifact(id string) error {
	return s.db.Delete(&models.ArtifactRecord{}, "id = ?", id).Error
}
