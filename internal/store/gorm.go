package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormRepository implements Repository with the gorm OR mapper on PostgreSQL.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository initializes the OR mapper on top of an existing PostgreSQL connection.
func NewGormRepository(sqlDB *sql.DB) (*GormRepository, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Upsert inserts the contact or overwrites all columns of the row with the same uuid.
func (r *GormRepository) Upsert(ctx context.Context, c model.Contact) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			UpdateAll: true,
		}).
		Create(&c).Error
	if err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}
	return nil
}

// ClearAll deletes every row.
func (r *GormRepository) ClearAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM contacts").Error; err != nil {
		return fmt.Errorf("failed to delete contacts: %w", err)
	}
	return nil
}

// GetByID returns the contact with the given uuid.
func (r *GormRepository) GetByID(ctx context.Context, id string) (model.Contact, bool, error) {
	var c model.Contact
	err := r.db.WithContext(ctx).Where("uuid = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Contact{}, false, nil
	}
	if err != nil {
		return model.Contact{}, false, fmt.Errorf("failed to select contact: %w", err)
	}
	return c, true, nil
}

// ListAll returns all contacts ordered by first name.
func (r *GormRepository) ListAll(ctx context.Context) ([]model.Contact, error) {
	contacts := []model.Contact{}
	if err := r.db.WithContext(ctx).Order("firstname ASC, uuid ASC").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to select contacts: %w", err)
	}
	return contacts, nil
}
