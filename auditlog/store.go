// Package auditlog is the bundled worker.AuditStore: a local, append-only
// SQLite table of per-message dispatch outcomes, built on gorm.io/gorm and
// gorm.io/driver/sqlite the way contrib/database/gorm wraps GORM for the
// rest of the retrieved pack. It exists for local debugging and offline
// test runs alongside (never instead of) control-plane EventLogs
// reporting, and never re-delivers a message — it is not the dead-letter
// persistence spec.md's Non-goals exclude.
package auditlog

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/relaymesh/githook-worker/worker"
)

// Record is the row shape persisted for each dispatch outcome.
type Record struct {
	ID        uint `gorm:"primarykey"`
	Topic     string
	Provider  string
	Type      string
	LogID     string `gorm:"index"`
	Status    string
	Error     string
	Attempts  int
	Timestamp time.Time `gorm:"index"`
}

// TableName pins the table name regardless of GORM's pluralization rules.
func (Record) TableName() string { return "audit_records" }

// Store is a gorm-backed worker.AuditStore.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) a SQLite database at path and migrates
// the audit_records table. Use ":memory:" for an ephemeral store, typically
// useful in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record implements worker.AuditStore by appending rec as a new row. It
// never mutates or deletes existing rows.
func (s *Store) Record(rec worker.AuditRecord) error {
	row := Record{
		Topic:     rec.Topic,
		Provider:  rec.Provider,
		Type:      rec.Type,
		LogID:     rec.LogID,
		Status:    rec.Status,
		Error:     rec.Error,
		Attempts:  rec.Attempts,
		Timestamp: rec.Timestamp,
	}
	return s.db.Create(&row).Error
}

// Recent returns the most recent n audit records, newest first. It's meant
// for local debugging (a CLI or test assertion), not for anything the
// dispatch pipeline itself consults.
func (s *Store) Recent(n int) ([]Record, error) {
	var rows []Record
	if err := s.db.Order("id desc").Limit(n).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ForLogID returns every audit record recorded for a given log id, in
// insertion order.
func (s *Store) ForLogID(logID string) ([]Record, error) {
	var rows []Record
	if err := s.db.Where("log_id = ?", logID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
