// Package storage provides the relational implementation of the verdict
// store port using GORM, with SQLite for local use and Postgres for
// deployments.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foodgenie/foodgenie/internal/domain"
	"github.com/foodgenie/foodgenie/internal/ports"
)

// defaultHistoryLimit caps history reads when the caller passes a
// non-positive limit.
const defaultHistoryLimit = 20

// verdictRecord is the persisted form of a verdict. The full verdict is
// stored as a JSON payload; the indexed columns exist for querying only.
type verdictRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:64;not null;index:idx_verdicts_user_created,priority:1"`
	SafetyLevel string `gorm:"size:16;not null"`
	ProductName string
	Payload     []byte    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"index:idx_verdicts_user_created,priority:2,sort:desc"`
}

func (verdictRecord) TableName() string { return "verdicts" }

// GormStore implements ports.VerdictStore over a relational database.
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ ports.VerdictStore = (*GormStore)(nil)

// Open connects to the database named by driver ("sqlite" or "postgres"),
// runs migrations, and returns the store. The dsn is a file path for SQLite
// and a connection string for Postgres.
func Open(driver, dsn string, log *zap.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&verdictRecord{}); err != nil {
		return nil, fmt.Errorf("migrate verdicts: %w", err)
	}

	return &GormStore{db: db, log: log.Named("storage")}, nil
}

// Save persists a verdict for the user. Verdicts are append-only.
func (s *GormStore) Save(ctx context.Context, userID string, verdict domain.Verdict) error {
	payload, err := json.Marshal(verdict)
	if err != nil {
		return &ports.StoreError{Operation: "save", UserID: userID, Err: err}
	}

	record := verdictRecord{
		ID:          verdict.ID,
		UserID:      userID,
		SafetyLevel: string(verdict.SafetyLevel),
		ProductName: verdict.ProductName,
		Payload:     payload,
		CreatedAt:   verdict.CreatedAt,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return &ports.StoreError{Operation: "save", UserID: userID, Err: err}
	}
	return nil
}

// History returns the user's most recent verdicts, newest first. Records
// whose payload no longer deserializes are skipped rather than failing the
// whole read.
func (s *GormStore) History(ctx context.Context, userID string, limit int) ([]domain.Verdict, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var records []verdictRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, &ports.StoreError{Operation: "history", UserID: userID, Err: err}
	}

	verdicts := make([]domain.Verdict, 0, len(records))
	for _, record := range records {
		var verdict domain.Verdict
		if err := json.Unmarshal(record.Payload, &verdict); err != nil {
			s.log.Warn("skipping unreadable verdict record",
				zap.String("verdict_id", record.ID),
				zap.Error(err))
			continue
		}
		verdicts = append(verdicts, verdict)
	}
	return verdicts, nil
}
