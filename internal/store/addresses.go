package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amaral/loja-store/internal/database"
	"github.com/amaral/loja-store/internal/models"
)

const addressColumns = "id, user_id, street, number, complement, neighborhood, city, state, postal_code, is_default, created_at"

type AddressInput struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	PostalCode   string
}

func scanAddress(row interface{ Scan(...any) error }) (*models.Address, error) {
	addr := &models.Address{}
	err := row.Scan(
		&addr.ID,
		&addr.UserID,
		&addr.Street,
		&addr.Number,
		&addr.Complement,
		&addr.Neighborhood,
		&addr.City,
		&addr.State,
		&addr.PostalCode,
		&addr.IsDefault,
		&addr.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return addr, nil
}

// ListAddresses returns the user's addresses, default first.
func ListAddresses(ctx context.Context, db *sql.DB, userID string) ([]models.Address, error) {
	query := `
		SELECT ` + addressColumns + `
		FROM enderecos
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []models.Address
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, *addr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return addresses, nil
}

// CreateAddress inserts a new address. The user's first address becomes the
// default automatically.
func CreateAddress(ctx context.Context, db *sql.DB, userID string, in AddressInput) (*models.Address, error) {
	var addr *models.Address

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM enderecos WHERE user_id = $1`, userID).Scan(&count); err != nil {
			return fmt.Errorf("count addresses: %w", err)
		}

		query := `
			INSERT INTO enderecos (user_id, street, number, complement, neighborhood, city, state, postal_code, is_default, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			RETURNING ` + addressColumns

		var err error
		addr, err = scanAddress(tx.QueryRowContext(ctx, query,
			userID, in.Street, in.Number, in.Complement, in.Neighborhood,
			in.City, in.State, in.PostalCode, count == 0))
		if err != nil {
			return fmt.Errorf("create address: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return addr, nil
}

func GetAddress(ctx context.Context, db *sql.DB, userID, id string) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM enderecos WHERE id = $1 AND user_id = $2`

	addr, err := scanAddress(db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	return addr, nil
}

func DeleteAddress(ctx context.Context, db *sql.DB, userID, id string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM enderecos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrAddressNotFound
	}

	return nil
}

// SetDefaultAddress clears the user's default flag and sets it on the target
// address in one transaction, so there is never a window with zero or two
// defaults.
func SetDefaultAddress(ctx context.Context, db *sql.DB, userID, id string) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE enderecos SET is_default = FALSE WHERE user_id = $1 AND is_default`,
			userID); err != nil {
			return fmt.Errorf("clear default address: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE enderecos SET is_default = TRUE WHERE id = $1 AND user_id = $2`,
			id, userID)
		if err != nil {
			return fmt.Errorf("set default address: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrAddressNotFound
		}

		return nil
	})
}
