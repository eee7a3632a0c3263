package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/karaoke-room-system/pkg/models"
)

// collectionsRowID is the single row holding the whole collection set.
const collectionsRowID = "collections"

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// MySQLDB persists song collections for hosts that share a database instead
// of a local data directory.
type MySQLDB struct {
	*gorm.DB
	logger *zap.Logger
}

func NewMySQLDB(cfg Config, log *zap.Logger) (*MySQLDB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("running database migrations", zap.String("host", cfg.Host))
	if err := db.AutoMigrate(&models.CollectionSnapshot{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLDB{DB: db, logger: log}, nil
}

func (db *MySQLDB) Load() ([]models.PlaylistCollection, error) {
	var row models.CollectionSnapshot
	err := db.First(&row, "id = ?", collectionsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []models.PlaylistCollection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	return decodeCollections(row.Data)
}

func (db *MySQLDB) Save(collections []models.PlaylistCollection) error {
	data, err := json.Marshal(collections)
	if err != nil {
		return fmt.Errorf("failed to marshal collections: %w", err)
	}
	row := models.CollectionSnapshot{ID: collectionsRowID, Data: data}
	if err := db.DB.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to save collections: %w", err)
	}
	return nil
}

func (db *MySQLDB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeCollections(data []byte) ([]models.PlaylistCollection, error) {
	var collections []models.PlaylistCollection
	if err := json.Unmarshal(data, &collections); err != nil {
		return nil, fmt.Errorf("failed to decode collections: %w", err)
	}
	if collections == nil {
		collections = []models.PlaylistCollection{}
	}
	return collections, nil
}
