package db

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"warbler/internal/config"
	"warbler/internal/models"
)

const connectAttempts = 10

// Connect opens the configured database: postgres when DATABASE_URL or
// DB_HOST is set, a local sqlite file otherwise. Postgres connections are
// retried while the server comes up.
func Connect(cfg config.Config, log *logrus.Logger) (*gorm.DB, error) {
	if !cfg.UsesPostgres() {
		log.WithField("path", cfg.DatabasePath).Info("Connecting to SQLite database")
		return OpenSQLite(cfg.DatabasePath)
	}

	log.WithField("host", cfg.DBHost).Info("Connecting to PostgreSQL database")
	var (
		gdb *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		gdb, err = gorm.Open(postgres.Open(cfg.PostgresDSN()), gormConfig())
		if err == nil {
			if err = ping(gdb); err == nil {
				setPool(gdb)
				log.Info("Database connection successful")
				return gdb, nil
			}
		}
		log.WithError(err).WithField("attempt", i+1).Warn("Database not ready")
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	log.WithError(err).Error("Failed to connect to the database")
	return nil, err
}

// OpenSQLite opens (creating if needed) a sqlite database with foreign key
// enforcement switched on.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on"
	}
	gdb, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; serialising avoids "database is locked".
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
}

func ping(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func setPool(gdb *gorm.DB) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)
}

// Migrate creates or updates the four tables.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(models.All()...)
}

// Reset drops and recreates every table. Used by the fixture loader.
func Reset(gdb *gorm.DB) error {
	all := models.All()
	// Drop children before parents.
	for i := len(all) - 1; i >= 0; i-- {
		if err := gdb.Migrator().DropTable(all[i]); err != nil {
			return err
		}
	}
	return Migrate(gdb)
}
