package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thereayou/teamchat/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open открывает хранилище поверх любого gorm диалекта
func Open(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// Connect подключается к Postgres
func Connect(dsn string) (*Database, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return Open(postgres.Open(dsn))
}

// OpenSQLite используется для локальной разработки и тестов
func OpenSQLite(path string) (*Database, error) {
	d, err := Open(sqlite.Open(path))
	if err != nil {
		return nil, err
	}
	// sqlite не переносит конкурентные писатели
	if sqlDB, err := d.db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return d, nil
}

func (d *Database) Migrate(ctx context.Context) error {
	db := d.db.WithContext(ctx)

	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Channel{},
		&models.ChannelMember{},
		&models.Message{},
		&models.Reaction{},
		&models.DirectMessage{},
		&models.File{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	log.Info().Str("module", "database").Str("dialect", db.Dialector.Name()).Msg("schema migrated")
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
