package utils

import "gorm.io/gorm"

// DBOption mutates a gorm handle before a repository call, used to thread
// a transaction through service code.
type DBOption func(*gorm.DB) *gorm.DB

func WithTx(tx *gorm.DB) DBOption {
	return func(*gorm.DB) *gorm.DB {
		return tx
	}
}

func ApplyOptions(db *gorm.DB, opts ...DBOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}
