package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// txMetadata is the persisted form of a Record.
type txMetadata struct {
	TxID      string          `gorm:"column:tx_id;primaryKey;size:80"`
	Currency  string          `gorm:"column:currency;size:16"`
	RateCode  string          `gorm:"column:rate_code;size:8"`
	RateValue decimal.Decimal `gorm:"column:rate_value;type:text"`
	FeeRate   float64         `gorm:"column:fee_rate"`
	Comment   string          `gorm:"column:comment"`
	CreatedAt time.Time       `gorm:"column:created_at"`
}

// TableName implements gorm's tabler.
func (txMetadata) TableName() string { return "tx_metadata" }

// GormStore is a Store backed by gorm.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens a sqlite database at dsn, e.g. "file::memory:?cache=shared".
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening metadata database: %w", err)
	}
	return db, nil
}

// NewGormStore migrates the schema and returns a store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&txMetadata{}); err != nil {
		return nil, fmt.Errorf("migrating metadata schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Write implements Store. Writing an existing id replaces the record.
func (s *GormStore) Write(ctx context.Context, rec Record) error {
	row := txMetadata{
		TxID:      rec.TxID,
		Currency:  rec.Currency,
		RateCode:  rec.Rate.Code,
		RateValue: rec.Rate.Value,
		FeeRate:   rec.FeeRate,
		Comment:   rec.Comment,
		CreatedAt: rec.CreatedAt,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

// Get returns the record for txID.
func (s *GormStore) Get(ctx context.Context, txID string) (*Record, error) {
	var row txMetadata
	err := s.db.WithContext(ctx).Where("tx_id = ?", txID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payerr.WithDetails(payerr.ErrNotFound, map[string]string{"tx_id": txID})
	}
	if err != nil {
		return nil, err
	}

	return &Record{
		TxID:      row.TxID,
		Currency:  row.Currency,
		Rate:      Rate{Code: row.RateCode, Value: row.RateValue},
		FeeRate:   row.FeeRate,
		Comment:   row.Comment,
		CreatedAt: row.CreatedAt,
	}, nil
}

// Count returns the number of stored records.
func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&txMetadata{}).Count(&n).Error
	return n, err
}

// Close closes the underlying connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
