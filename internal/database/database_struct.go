package database

import (
	"errors"

	"github.com/thereayou/teamchat/internal/services"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

var _ services.Store = (*Database)(nil)

// translate приводит ошибки gorm к ошибкам контракта хранилища
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return services.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return services.ErrConflict
	}
	return err
}
