// Package logdb is the Postgres EntryStore. The tree size is the primary
// key of the entries table, so two writers racing to append the same
// position fall out as a duplicate-key error which the store reports as
// ErrWriteConflict for the caller to retry.
package logdb

import (
	"context"
	"errors"

	"cpoe/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&EntryModel{}, &ReceiptModel{})
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry domain.LogEntry, receipt domain.Receipt) error {
	entryModel := EntryModel{
		TreeSize:         entry.TreeSize,
		EntryID:          entry.EntryID,
		StatementHash:    entry.StatementHash,
		Statement:        entry.Statement,
		TreeHash:         entry.TreeHash,
		ParentHash:       entry.ParentHash,
		RegistrationTime: entry.RegistrationTime.UTC(),
	}
	receiptModel := ReceiptModel{
		EntryID:  receipt.EntryID,
		LogID:    receipt.LogID,
		Proof:    receipt.Proof,
		IssuedAt: receipt.IssuedAt.UTC(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entryModel).Error; err != nil {
			return err
		}
		return tx.Create(&receiptModel).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrWriteConflict
	}
	return err
}

func (s *Store) Tail(ctx context.Context) (*domain.LogEntry, error) {
	var model EntryModel
	err := s.db.WithContext(ctx).Order("tree_size DESC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	entry := toDomainEntry(model)
	return &entry, nil
}

func (s *Store) HashesThrough(ctx context.Context, treeSize int64) ([][]byte, error) {
	if treeSize < 0 {
		return nil, domain.ErrNotFound
	}
	var hashes [][]byte
	err := s.db.WithContext(ctx).
		Model(&EntryModel{}).
		Where("tree_size <= ?", treeSize).
		Order("tree_size ASC").
		Pluck("statement_hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	if int64(len(hashes)) != treeSize {
		return nil, domain.ErrNotFound
	}
	return hashes, nil
}

func (s *Store) ByEntryID(ctx context.Context, entryID string) (*domain.LogEntry, error) {
	var model EntryModel
	err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	entry := toDomainEntry(model)
	return &entry, nil
}

func (s *Store) ReceiptByEntryID(ctx context.Context, entryID string) (*domain.Receipt, error) {
	var model ReceiptModel
	err := s.db.WithContext(ctx).Where("entry_id = ?", entryID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &domain.Receipt{
		EntryID:  model.EntryID,
		LogID:    model.LogID,
		Proof:    model.Proof,
		IssuedAt: model.IssuedAt.UTC(),
	}, nil
}

func (s *Store) List(ctx context.Context) ([]domain.LogEntry, error) {
	var models []EntryModel
	err := s.db.WithContext(ctx).Order("tree_size DESC").Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.LogEntry, 0, len(models))
	for _, model := range models {
		out = append(out, toDomainEntry(model))
	}
	return out, nil
}

func toDomainEntry(model EntryModel) domain.LogEntry {
	return domain.LogEntry{
		EntryID:          model.EntryID,
		StatementHash:    model.StatementHash,
		Statement:        model.Statement,
		TreeSize:         model.TreeSize,
		TreeHash:         model.TreeHash,
		ParentHash:       model.ParentHash,
		RegistrationTime: model.RegistrationTime.UTC(),
	}
}
