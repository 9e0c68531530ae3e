package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amaral/loja-store/internal/database"
	"github.com/amaral/loja-store/internal/models"
	"github.com/shopspring/decimal"
)

// GetOrCreateCart resolves the user's cart, creating it lazily on first use.
// The upsert rides on UNIQUE(user_id), so concurrent first interactions
// cannot produce duplicate carts.
func GetOrCreateCart(ctx context.Context, db *sql.DB, userID string) (string, error) {
	var cartID string
	err := db.QueryRowContext(ctx,
		`INSERT INTO cart (user_id, created_at)
		 VALUES ($1, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id`,
		userID).Scan(&cartID)
	if err != nil {
		return "", fmt.Errorf("get or create cart: %w", err)
	}
	return cartID, nil
}

// AddItem puts one unit of a product into the user's cart. A repeat add
// increments the existing line instead of creating a second one. The
// resulting quantity may not exceed current stock.
func AddItem(ctx context.Context, db *sql.DB, userID, productID string) (*models.CartItem, error) {
	var item *models.CartItem

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var cartID string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO cart (user_id, created_at)
			 VALUES ($1, NOW())
			 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
			 RETURNING id`,
			userID).Scan(&cartID)
		if err != nil {
			return fmt.Errorf("get or create cart: %w", err)
		}

		var stock int
		err = tx.QueryRowContext(ctx,
			`SELECT stock FROM products WHERE id = $1 FOR SHARE`,
			productID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrProductNotFound
			}
			return fmt.Errorf("get product stock: %w", err)
		}

		item = &models.CartItem{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
			 VALUES ($1, $2, 1, NOW(), NOW())
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + 1, updated_at = NOW()
			 RETURNING id, cart_id, product_id, quantity`,
			cartID, productID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}

		if item.Quantity > stock {
			return database.ErrInsufficientStock
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// SetItemQuantity replaces a line's quantity on the user's own cart. Values
// below 1 are rejected without touching state; values above current stock are
// rejected too. Another user's item id reads as not found.
func SetItemQuantity(ctx context.Context, db *sql.DB, userID, itemID string, quantity int) error {
	if quantity < 1 {
		return database.ErrInvalidQuantity
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var stock int
		err := tx.QueryRowContext(ctx,
			`SELECT p.stock
			 FROM cart_items ci
			 JOIN cart c ON c.id = ci.cart_id
			 JOIN products p ON p.id = ci.product_id
			 WHERE ci.id = $1 AND c.user_id = $2
			 FOR SHARE OF p`,
			itemID, userID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrCartItemNotFound
			}
			return fmt.Errorf("get cart item stock: %w", err)
		}

		if quantity > stock {
			return database.ErrInsufficientStock
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2`,
			quantity, itemID)
		if err != nil {
			return fmt.Errorf("update cart item quantity: %w", err)
		}

		return nil
	})
}

func RemoveItem(ctx context.Context, db *sql.DB, userID, itemID string) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items ci
		 USING cart c
		 WHERE ci.id = $1 AND ci.cart_id = c.id AND c.user_id = $2`,
		itemID, userID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCartItemNotFound
	}

	return nil
}

// ClearCart deletes all lines. The cart row itself persists.
func ClearCart(ctx context.Context, db *sql.DB, cartID string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// GetCartItems loads the cart's lines joined with live product rows.
func GetCartItems(ctx context.Context, db *sql.DB, cartID string) ([]models.CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       p.id, p.name, p.description, p.price, p.stock, p.category, p.image_url, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at`

	rows, err := db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		var product models.Product
		err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.Quantity,
			&product.ID,
			&product.Name,
			&product.Description,
			&product.Price,
			&product.Stock,
			&product.Category,
			&product.ImageURL,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Product = &product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// CartTotal sums live price times quantity over the loaded lines.
func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Subtotal())
	}
	return total
}
