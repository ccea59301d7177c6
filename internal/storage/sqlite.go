//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/LiveProof/pkg/models"
)

const (
	DefaultDBFile   = "liveproof.sqlite3"
	DefaultCapacity = 100
	EnvDBPath       = "LIVEPROOF_DB_PATH"
)

const errDBClientNil = "db client is nil"

// DBClient keeps the most recent verdicts in SQLite. Once the table holds
// capacity rows, each append evicts the oldest.
type DBClient struct {
	DB       *gorm.DB
	db       *sql.DB
	mu       sync.Mutex
	capacity int
}

// Verdict is one row of the audit history. Seq preserves insertion order
// independently of clock resolution.
type Verdict struct {
	Seq           uint   `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"type:varchar(36);uniqueIndex:idx_verdict_id"`
	ChallengeHash string `gorm:"type:varchar(66);index:idx_verdict_challenge"`
	PopAddress    string `gorm:"type:varchar(42)"`
	Verified      bool
	Successes     int
	Required      int
	ProofCID      string
	CreatedAt     time.Time
}

func (v Verdict) entry() models.HistoryEntry {
	return models.HistoryEntry{
		ID:            v.ID,
		ChallengeHash: v.ChallengeHash,
		PopAddress:    v.PopAddress,
		Verified:      v.Verified,
		Successes:     v.Successes,
		Required:      v.Required,
		ProofCID:      v.ProofCID,
		CreatedAt:     v.CreatedAt,
	}
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv(EnvDBPath)
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath, DefaultCapacity)
}

func NewDBClientWithPath(dbPath string, capacity int) (*DBClient, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// One writer at a time; appends are serialized anyway.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Verdict{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB, capacity: capacity}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Append records a verdict and trims the table back to capacity.
func (c *DBClient) Append(ctx context.Context, e models.HistoryEntry) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	row := Verdict{
		ID:            e.ID,
		ChallengeHash: e.ChallengeHash,
		PopAddress:    e.PopAddress,
		Verified:      e.Verified,
		Successes:     e.Successes,
		Required:      e.Required,
		ProofCID:      e.ProofCID,
		CreatedAt:     e.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	return c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("inserting verdict: %w", err)
		}

		var count int64
		if err := tx.Model(&Verdict{}).Count(&count).Error; err != nil {
			return fmt.Errorf("counting verdicts: %w", err)
		}
		excess := int(count) - c.capacity
		if excess <= 0 {
			return nil
		}

		var oldest []uint
		if err := tx.Model(&Verdict{}).Order("seq ASC").Limit(excess).Pluck("seq", &oldest).Error; err != nil {
			return fmt.Errorf("selecting evictions: %w", err)
		}
		if err := tx.Where("seq IN ?", oldest).Delete(&Verdict{}).Error; err != nil {
			return fmt.Errorf("evicting verdicts: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit verdicts, newest first. A non-positive limit
// returns everything kept.
func (c *DBClient) Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if limit <= 0 || limit > c.capacity {
		limit = c.capacity
	}

	var rows []Verdict
	if err := c.DB.WithContext(ctx).Order("seq DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying verdicts: %w", err)
	}

	out := make([]models.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// Get looks up one verdict by its report ID.
func (c *DBClient) Get(ctx context.Context, id string) (models.HistoryEntry, error) {
	if c == nil || c.DB == nil {
		return models.HistoryEntry{}, errors.New(errDBClientNil)
	}
	var row Verdict
	err := c.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.HistoryEntry{}, fmt.Errorf("%w: verdict %s", models.ErrNotFound, id)
	}
	if err != nil {
		return models.HistoryEntry{}, err
	}
	return row.entry(), nil
}

// Count returns the number of verdicts kept.
func (c *DBClient) Count(ctx context.Context) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	err := c.DB.WithContext(ctx).Model(&Verdict{}).Count(&n).Error
	return n, err
}
