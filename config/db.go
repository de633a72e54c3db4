package config

import (
	"fmt"

	"lecturenotify/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GetDatabaseURL builds the database connection string.
func GetDatabaseURL() string {
	c := Conf()
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.GetString("DB_HOST"), c.GetString("DB_PORT"), c.GetString("DB_USER"),
		c.GetString("DB_PASSWORD"), c.GetString("DB_DATABASE"), c.GetString("DB_SSLMODE"))
	return dsn
}

// BootDB initializes the database connection and runs migrations.
func BootDB() (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(GetDatabaseURL()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := autoMigrate(db); err != nil {
		return db, err
	}

	GetLogrusInstance().Info("DB initialized")
	return db, nil
}

// autoMigrate only touches the tables this service owns. The user, course,
// schedule and enrollment tables are managed by the course backend.
func autoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.NotificationSettings{},
		&domain.NotificationLog{},
		&domain.AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate notification tables: %w", err)
	}
	return nil
}
