package logdb

import "time"

type EntryModel struct {
	TreeSize         int64     `gorm:"primaryKey;autoIncrement:false"`
	EntryID          string    `gorm:"uniqueIndex;not null"`
	StatementHash    []byte    `gorm:"type:bytea;not null"`
	Statement        []byte    `gorm:"type:bytea"`
	TreeHash         []byte    `gorm:"type:bytea;not null"`
	ParentHash       []byte    `gorm:"type:bytea"`
	RegistrationTime time.Time `gorm:"not null"`
}

func (EntryModel) TableName() string {
	return "log_entries"
}

type ReceiptModel struct {
	EntryID  string    `gorm:"primaryKey"`
	LogID    string    `gorm:"index;not null"`
	Proof    []byte    `gorm:"type:bytea;not null"`
	IssuedAt time.Time `gorm:"not null"`
}

func (ReceiptModel) TableName() string {
	return "log_receipts"
}
