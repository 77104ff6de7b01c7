package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// SQLRepository implements Repository with sqlx prepared statements. The statements only use
// syntax that SQLite and MySQL share.
type SQLRepository struct {
	db *sqlx.DB

	// upsert is a prepared statement for inserting or replacing a contact.
	upsert *sqlx.NamedStmt

	// selectWhereId is a prepared statement for selecting the contact with a given uuid.
	selectWhereId *sqlx.Stmt

	// selectAll is a prepared statement for the ordered listing.
	selectAll *sqlx.Stmt

	// deleteAll is a prepared statement for clearing the table.
	deleteAll *sqlx.Stmt
}

// NewSQLRepository initializes the sqlx database wrapper with the specified sql database and
// prepares all statements. The database argument can be a real database for production use or a
// mock database within unit tests. driverName selects the sqlx bind type ("sqlite3" or "mysql").
func NewSQLRepository(sqlDB *sql.DB, driverName string) (*SQLRepository, error) {
	r := &SQLRepository{db: sqlx.NewDb(sqlDB, driverName)}
	var err error

	// Prepared statements offer a significant speed increase if executed many times.
	r.upsert, err = r.db.PrepareNamed(`
		REPLACE INTO contacts (uuid, firstname, lastname, birthdate, phone, photourl, email,
			nationality, gender, age, street, city, state, country)
		VALUES (:uuid, :firstname, :lastname, :birthdate, :phone, :photourl, :email,
			:nationality, :gender, :age, :street, :city, :state, :country)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	r.selectWhereId, err = r.db.Preparex(`
		SELECT * FROM contacts WHERE uuid = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare select by uuid: %w", err)
	}
	r.selectAll, err = r.db.Preparex(`
		SELECT * FROM contacts ORDER BY firstname ASC, uuid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare select all: %w", err)
	}
	r.deleteAll, err = r.db.Preparex(`
		DELETE FROM contacts
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete all: %w", err)
	}
	return r, nil
}

// Upsert inserts the contact or replaces the row with the same uuid.
func (r *SQLRepository) Upsert(ctx context.Context, c model.Contact) error {
	if _, err := r.upsert.ExecContext(ctx, &c); err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}
	return nil
}

// ClearAll deletes every row.
func (r *SQLRepository) ClearAll(ctx context.Context) error {
	if _, err := r.deleteAll.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete contacts: %w", err)
	}
	return nil
}

// GetByID returns the contact with the given uuid.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (model.Contact, bool, error) {
	var c model.Contact
	err := r.selectWhereId.GetContext(ctx, &c, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, false, nil
	}
	if err != nil {
		return model.Contact{}, false, fmt.Errorf("failed to select contact: %w", err)
	}
	return c, true, nil
}

// ListAll returns all contacts ordered by first name.
func (r *SQLRepository) ListAll(ctx context.Context) ([]model.Contact, error) {
	contacts := []model.Contact{}
	if err := r.selectAll.SelectContext(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("failed to select contacts: %w", err)
	}
	return contacts, nil
}

// Close releases the prepared statements.
func (r *SQLRepository) Close() error {
	return errors.Join(
		r.upsert.Close(),
		r.selectWhereId.Close(),
		r.selectAll.Close(),
		r.deleteAll.Close(),
	)
}
