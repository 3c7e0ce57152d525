package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/redclouds/erp-assistant/pkg/db/models"
)

type DB struct {
	DB *gorm.DB

	// BatchSize is used for how many insertions we should do at once.
	BatchSize int
}

func New(dsn string, logLevel logger.LogLevel) (*DB, error) {
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	return &DB{
		DB:        gormDB,
		BatchSize: 1024,
	}, nil
}

// UpdateSchema migrates the conversation tables. Safe to run on every start.
func (d *DB) UpdateSchema() error {
	return d.DB.AutoMigrate(
		&models.Conversation{},
		&models.Turn{},
	)
}
