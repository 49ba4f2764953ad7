// Package history persists successful fits in a SQLite database so earlier
// runs can be listed and fetched by run id.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/KaramelBytes/assayfit-cli/internal/analysis"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("fit record not found")

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// Record is one stored fit. Parameters that do not apply to the layout, or
// were not finite, are NULL.
type Record struct {
	RunID     string    `gorm:"primaryKey;size:36" json:"run_id"`
	Label     string    `gorm:"index" json:"label"`
	Layout    string    `gorm:"index" json:"layout"`
	Source    string    `json:"source,omitempty"`
	Points    int       `json:"points"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Kcat          *float64 `json:"kcat,omitempty"`
	KcatSD        *float64 `json:"kcat_SD,omitempty"`
	KM            *float64 `gorm:"column:km" json:"KM,omitempty"`
	KMSD          *float64 `gorm:"column:km_sd" json:"KM_SD,omitempty"`
	Vmax          *float64 `json:"vmax,omitempty"`
	VmaxSD        *float64 `json:"vmax_SD,omitempty"`
	KcatOverKM    *float64 `gorm:"column:kcat_over_km" json:"kcat_over_KM,omitempty"`
	KcatOverKMSD  *float64 `gorm:"column:kcat_over_km_sd" json:"kcat_over_KM_SD,omitempty"`
	HighKM        bool     `gorm:"column:high_km" json:"high_KM"`
	RemovedPoints int      `json:"removed_points"`
	Fallback      bool     `json:"reciprocal_fallback"`

	T50   *float64 `gorm:"column:t50" json:"T50,omitempty"`
	T50SD *float64 `gorm:"column:t50_sd" json:"T50_SD,omitempty"`
	K     *float64 `gorm:"column:k" json:"k,omitempty"`
	KSD   *float64 `gorm:"column:k_sd" json:"k_SD,omitempty"`
}

// TableName pins the table name independent of the struct name.
func (Record) TableName() string { return "fits" }

// RecordFromResult flattens an analysis result into a Record.
func RecordFromResult(res *analysis.Result) Record {
	rec := Record{
		RunID:     res.RunID,
		Label:     res.Label,
		Layout:    res.Layout,
		Source:    res.Source,
		Points:    res.Points,
		CreatedAt: res.CreatedAt,
	}
	if k := res.Kinetic; k != nil {
		rec.Kcat, rec.KcatSD = k.Kcat, k.KcatSD
		rec.KM, rec.KMSD = k.KM, k.KMSD
		rec.Vmax, rec.VmaxSD = k.Vmax, k.VmaxSD
		rec.KcatOverKM, rec.KcatOverKMSD = k.KcatOverKM, k.KcatOverKMSD
		rec.HighKM = k.HighKM
		rec.RemovedPoints = k.Reciprocal.RemovedPoints
		rec.Fallback = k.Reciprocal.Fallback
	}
	if th := res.Thermo; th != nil {
		rec.T50, rec.T50SD = th.T50, th.T50SD
		rec.K, rec.KSD = th.K, th.KSD
	}
	return rec
}

// Store is a SQLite-backed fit history.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates the
// schema. ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history directory: %w", err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save stores the result of one successful fit.
func (s *Store) Save(ctx context.Context, res *analysis.Result) error {
	if res == nil || res.RunID == "" {
		return errors.New("history: result without run id")
	}
	rec := RecordFromResult(res)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save fit %s: %w", res.RunID, err)
	}
	return nil
}

// List returns the newest records first. An empty label matches every
// record; limit <= 0 selects DefaultLimit.
func (s *Store) List(ctx context.Context, label string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if label != "" {
		q = q.Where("label = ?", label)
	}
	var out []Record
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list fits: %w", err)
	}
	return out, nil
}

// Get returns the record with the given run id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, runID string) (*Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fit %s: %w", runID, err)
	}
	return &rec, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
