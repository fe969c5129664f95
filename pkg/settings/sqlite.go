package settings

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ Store = &SQLite{}

// Setting is a row of the settings table.
type Setting struct {
	Key       string `gorm:"primaryKey;type:varchar(128)"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// SQLite is a Store backed by a sqlite database file.
type SQLite struct {
	db   *gorm.DB
	path string
}

// OpenSQLite opens or creates the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to create settings directory %s", dir)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open settings database %s", path)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get db")
	}
	// sqlite serializes writers anyway.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&Setting{})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to migrate settings database %s", path)
	}

	logrus.WithFields(logrus.Fields{
		"path": path,
	}).Debug("settings database opened")

	return &SQLite{db: db, path: path}, nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	var row Setting
	err := s.db.Where(&Setting{Key: key}).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrapf(err, "failed to read setting %s", key)
	}
	return row.Value, true, nil
}

func (s *SQLite) Set(key, value string) error {
	err := s.db.Save(&Setting{Key: key, Value: value}).Error
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to write setting %s", key)
	}
	return nil
}

// All returns every stored setting.
func (s *SQLite) All() (map[string]string, error) {
	var rows []Setting
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list settings")
	}
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Value
	}
	return m, nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
