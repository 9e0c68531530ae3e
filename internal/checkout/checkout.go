// Package checkout converts a cart into an order and reconciles stock.
//
// The whole commit sequence runs as one serializable transaction: total
// computation, address snapshot, order and item inserts, per-line stock
// decrement and cart clearing either all land or none do. Replaying the same
// idempotency key returns the already-created order instead of charging
// twice.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amaral/loja-store/internal/database"
	"github.com/amaral/loja-store/internal/models"
	"github.com/amaral/loja-store/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ConfirmRequest struct {
	UserID         string
	AddressID      string
	PaymentMethod  string
	IdempotencyKey uuid.UUID
}

type line struct {
	productID string
	name      string
	quantity  int
	price     decimal.Decimal
}

// Confirm places an order from the user's current cart.
//
// Preconditions: the cart is non-empty, the address belongs to the user and
// the payment method is one of pix, credit_card, boleto. On success the cart
// is empty and stock is decremented once per line; any failure rolls the
// whole unit back, leaving the cart intact and stock untouched.
func Confirm(ctx context.Context, db *sql.DB, req ConfirmRequest) (*models.Order, error) {
	if !models.ValidPaymentMethod(req.PaymentMethod) {
		return nil, database.ErrInvalidPaymentMethod
	}
	if req.IdempotencyKey == uuid.Nil {
		return nil, fmt.Errorf("idempotency key is required")
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		// Replayed confirm: hand back the order created the first time.
		existing, err := findByIdempotencyKey(ctx, tx, req.UserID, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			order = existing
			return nil
		}

		address, err := lockAddress(ctx, tx, req.UserID, req.AddressID)
		if err != nil {
			return err
		}

		lines, cartID, err := lockCartLines(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.price.Mul(decimal.NewFromInt(int64(l.quantity))))
		}

		snapshot := address.Snapshot()
		order = &models.Order{
			UserID:          req.UserID,
			Total:           total,
			Status:          models.OrderStatusPending,
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: snapshot,
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, idempotency_key, total, status, payment_method,
			                     ship_street, ship_number, ship_complement, ship_neighborhood, ship_city, ship_state, ship_postal_code,
			                     created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
			 RETURNING id, created_at`,
			req.UserID, req.IdempotencyKey, total, order.Status, req.PaymentMethod,
			snapshot.Street, snapshot.Number, snapshot.Complement, snapshot.Neighborhood,
			snapshot.City, snapshot.State, snapshot.PostalCode,
		).Scan(&order.ID, &order.CreatedAt)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, l := range lines {
			item := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   l.productID,
				ProductName: l.name,
				Quantity:    l.quantity,
				Price:       l.price,
			}
			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id`,
				order.ID, l.productID, l.quantity, l.price).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.Items = append(order.Items, item)
		}

		// Strictly sequential per line so decrements stay deterministic.
		for _, l := range lines {
			if err := store.DecrementStock(ctx, tx, l.productID, l.quantity); err != nil {
				if errors.Is(err, database.ErrInsufficientStock) {
					return fmt.Errorf("product %s: %w", l.productID, err)
				}
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		return nil
	})

	if err != nil {
		// Two submits with the same key can race past the lookup; the unique
		// constraint catches the loser. The existing order is returned only
		// to its owner — another user replaying a stolen key gets a conflict.
		if database.IsUniqueViolation(err, "orders_idempotency_key_key") {
			return getByIdempotencyKey(ctx, db, req.UserID, req.IdempotencyKey)
		}
		return nil, err
	}

	return order, nil
}

func lockAddress(ctx context.Context, tx *sql.Tx, userID, addressID string) (*models.Address, error) {
	addr := &models.Address{}
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, street, number, complement, neighborhood, city, state, postal_code, is_default, created_at
		 FROM enderecos
		 WHERE id = $1 AND user_id = $2
		 FOR SHARE`,
		addressID, userID).Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrAddressNotFound
		}
		return nil, fmt.Errorf("lock address: %w", err)
	}
	return addr, nil
}

func lockCartLines(ctx context.Context, tx *sql.Tx, userID string) ([]line, string, error) {
	var cartID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM cart WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", database.ErrEmptyCart
		}
		return nil, "", fmt.Errorf("get cart: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT ci.product_id, p.name, ci.quantity, p.price
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.created_at
		 FOR UPDATE OF p`,
		cartID)
	if err != nil {
		return nil, "", fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.productID, &l.name, &l.quantity, &l.price); err != nil {
			return nil, "", fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("rows error: %w", err)
	}

	return lines, cartID, nil
}

func findByIdempotencyKey(ctx context.Context, tx *sql.Tx, userID string, key uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, total, status, payment_method,
		        ship_street, ship_number, ship_complement, ship_neighborhood, ship_city, ship_state, ship_postal_code,
		        created_at
		 FROM orders
		 WHERE idempotency_key = $1 AND user_id = $2`,
		key, userID).Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Status,
		&order.PaymentMethod,
		&order.ShippingAddress.Street,
		&order.ShippingAddress.Number,
		&order.ShippingAddress.Complement,
		&order.ShippingAddress.Neighborhood,
		&order.ShippingAddress.City,
		&order.ShippingAddress.State,
		&order.ShippingAddress.PostalCode,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by idempotency key: %w", err)
	}

	items, err := loadOrderItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func loadOrderItems(ctx context.Context, tx *sql.Tx, orderID string) ([]models.OrderItem, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.price
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = $1`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func getByIdempotencyKey(ctx context.Context, db *sql.DB, userID string, key uuid.UUID) (*models.Order, error) {
	var order *models.Order
	err := database.WithTransaction(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       true,
	}, func(tx *sql.Tx) error {
		var err error
		order, err = findByIdempotencyKey(ctx, tx, userID, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	// The unique violation fired but the key's order belongs to someone else.
	if order == nil {
		return nil, database.ErrIdempotencyConflict
	}
	return order, nil
}
