package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amaral/loja-store/internal/checkout"
	"github.com/amaral/loja-store/internal/database"
	"github.com/amaral/loja-store/internal/models"
	"github.com/amaral/loja-store/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCheckoutHappyPath(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := createTestUser(t, db, "checkout1@example.com")
	addressID := createTestAddress(t, db, userID)
	productA := createTestProduct(t, db, "Produto A", decimal.RequireFromString("10.00"), 10)
	productB := createTestProduct(t, db, "Produto B", decimal.RequireFromString("5.50"), 10)

	addToCart(t, db, userID, productA, 2)
	addToCart(t, db, userID, productB, 1)

	order, err := checkout.Confirm(ctx, db, checkout.ConfirmRequest{
		UserID:         userID,
		AddressID:      addressID,
		PaymentMethod:  models.PaymentMethodPix,
		IdempotencyKey: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if !order.Total.Equal(decimal.RequireFromString("25.50")) {
		t.Errorf("Expected total 25.50, got %s", order.Total)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 order items, got %d", len(order.Items))
	}
	if order.ShippingAddress.Street != "Rua das Flores" {
		t.Errorf("Expected address snapshot on order, got %+v", order.ShippingAddress)
	}

	if stock := productStock(t, db, productA); stock != 8 {
		t.Errorf("Expected product A stock 8, got %d", stock)
	}
	if stock := productStock(t, db, productB); stock != 9 {
		t.Errorf("Expected product B stock 9, got %d", stock)
	}

	cartID, _ := store.GetOrCreateCart(ctx, db, userID)
	items, _ := store.GetCartItems(ctx, db, cartID)
	if len(items) != 0 {
		t.Errorf("Expected cart cleared after checkout, got %d lines", len(items))
	}
}

func TestCheckoutPriceSnapshotIsFrozen(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := createTestUser(t, db, "checkout2@example.com")
	addressID := createTestAddress(t, db, userID)
	productID := createTestProduct(t, db, "Produto", decimal.RequireFromString("10.00"), 10)

	addToCart(t, db, userID, productID, 1)

	order, err := checkout.Confirm(ctx, db, checkout.ConfirmRequest{
		UserID:         userID,
		AddressID:      addressID,
		PaymentMethod:  models.PaymentMethodBoleto,
		IdempotencyKey: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err = store.UpdateProduct(ctx, db, productID, store.ProductInput{
		Name:  "Produto",
		Price: decimal.RequireFromString("99.99"),
		Stock: 9,
	})
	if err != nil {
		t.Fatalf("Update product: %v", err)
	}

	reloaded, err := store.GetOrder(ctx, db, userID, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if !reloaded.Items[0].Price.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Order item price should stay 10.00 after price change, got %s", reloaded.Items[0].Price)
	}
	if !reloaded.Total.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("Order total should stay 10.00, got %s", reloaded.Total)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	userID := createTestUser(t, db, "checkout3@example.com")
	addressID := createTestAddress(t, db, userID)

	_, err := checkout.Confirm(context.Background(), db, checkout.ConfirmRequest{
		UserID:         userID,
		AddressID:      addressID,
		PaymentMethod:  models.PaymentMethodPix,
		IdempotencyKey: uuid.New(),
	})
	if !errors.Is(err, database.ErrEmptyCart) {
		t.Errorf("Expected empty cart error, got: %v", err)
	}

	if count := countRows(t, db, "orders"); count != 0 {
		t.Errorf("Expected no orders, got %d", count)
	}
}

func TestCheckoutWithoutAddressCreatesNothing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	userID := createTestUser(t, db, "checkout4@example.com")
	productID := createTestProduct(t, db, "Produto", decimal.NewFromInt(10), 5)
	addToCart(t, db, userID, productID, 1)

	_, err := checkout.Confirm(context.Background(), db, checkout.ConfirmRequest{
		UserID:         userID,
		AddressID:      uuid.NewString(),
		PaymentMethod:  models.PaymentMethodPix,
		IdempotencyKey: uuid.New(),
	})
	if !errors.Is(err, database.ErrAddressNotFound) {
		t.Errorf("Expected address not found, got: %v", err)
	}

	if count := countRows(t, db, "orders"); count != 0 {
		t.Errorf("Expected no orders, got %d", count)
	}
	if stock := productStock(t, db, productID); stock != 5 {
		t.Errorf("Expected stock unchanged at 5, got %d", stock)
	}
}

func TestCheckoutIsAtomicOnStockFailure(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := createTestUser(t, db, "checkout5@example.com")
	addressID := createTestAddress(t, db, userID)
	productA := createTestProduct(t, db, "Produto A", decimal.NewFromInt(10), 10)
	productB := createTestProduct(t, db, "Produto B", decimal.NewFromInt(20), 5)

	addToCart(t, db, userID, productA, 2)
	addToCart(t, db, userID, productB, 3)

	// Stock shrinks between add-to-cart and confirm; the decrement for
	// product B must fail and take the whole checkout down with it.
	if _, err := db.ExecContext(ctx, `UPDATE products SET stock = 1 WHERE id = $1`, productB); err != nil {
		t.Fatalf("Shrink stock: %v", err)
	}

	_, err := checkout.Confirm(ctx, db, checkout.ConfirmRequest{
		UserID:         userID,
		AddressID:      addressID,
		PaymentMethod:  models.PaymentMethodCreditCard,
		IdempotencyKey: uuid.New(),
	})
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock error, got: %v", err)
	}

	if count := countRows(t, db, "orders"); count != 0 {
		t.Errorf("Expected zero orders persisted, got %d", count)
	}
	if count := countRows(t, db, "order_items"); count != 0 {
		t.Errorf("Expected zero order items persisted, got %d", count)
	}
	if stock := productStock(t, db, productA); stock != 10 {
		t.Errorf("Expected product A stock untouched at 10, got %d", stock)
	}

	cartID, _ := store.GetOrCreateCart(ctx, db, userID)
	items, _ := store.GetCartItems(ctx, db, cartID)
	if len(items) != 2 {
		t.Errorf("Expected cart left intact with 2 lines, got %d", len(items))
	}
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := createTestUser(t, db, "checkout6@example.com")
	addressID := createTestAddress(t, db, userID)
	productID := createTestProduct(t, db, "Produto", decimal.NewFromInt(10), 5)

	addToCart(t, db, userID, productID, 2)

	key := uuid.New()
	req := checkout.ConfirmRequest{
		UserID:         userID,
		AddressID:      addressID,
		PaymentMethod:  models.PaymentMethodPix,
		IdempotencyKey: key,
	}

	first, err := checkout.Confirm(ctx, db, req)
	if err != nil {
		t.Fatalf("First confirm: %v", err)
	}

	second, err := checkout.Confirm(ctx, db, req)
	if err != nil {
		t.Fatalf("Replayed confirm: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("Replay created a different order: %s vs %s", first.ID, second.ID)
	}
	if len(second.Items) != 1 || second.Items[0].Quantity != 2 {
		t.Errorf("Replay must carry the order items like the original, got %+v", second.Items)
	}
	if count := countRows(t, db, "orders"); count != 1 {
		t.Errorf("Expected exactly one order, got %d", count)
	}
	if stock := productStock(t, db, productID); stock != 3 {
		t.Errorf("Expected stock decremented once to 3, got %d", stock)
	}
}

func TestCheckoutIdempotencyKeyScopedToUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userA := createTestUser(t, db, "key-a@example.com")
	userB := createTestUser(t, db, "key-b@example.com")
	addrA := createTestAddress(t, db, userA)
	addrB := createTestAddress(t, db, userB)
	productID := createTestProduct(t, db, "Produto", decimal.NewFromInt(10), 10)

	addToCart(t, db, userA, productID, 1)
	addToCart(t, db, userB, productID, 1)

	key := uuid.New()
	orderA, err := checkout.Confirm(ctx, db, checkout.ConfirmRequest{
		UserID:         userA,
		AddressID:      addrA,
		PaymentMethod:  models.PaymentMethodPix,
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("Confirm for user A: %v", err)
	}

	// User B submitting A's key must not see A's order.
	_, err = checkout.Confirm(ctx, db, checkout.ConfirmRequest{
		UserID:         userB,
		AddressID:      addrB,
		PaymentMethod:  models.PaymentMethodPix,
		IdempotencyKey: key,
	})
	if !errors.Is(err, database.ErrIdempotencyConflict) {
		t.Fatalf("Expected idempotency conflict for foreign key, got: %v", err)
	}

	if count := countRows(t, db, "orders"); count != 1 {
		t.Errorf("Expected exactly one order, got %d", count)
	}

	// B's cart stays intact and checks out fine under its own key.
	bOrder, err := checkout.Confirm(ctx, db, checkout.ConfirmRequest{
		UserID:         userB,
		AddressID:      addrB,
		PaymentMethod:  models.PaymentMethodPix,
		IdempotencyKey: uuid.New(),
	})
	if err != nil {
		t.Fatalf("Confirm for user B with own key: %v", err)
	}
	if bOrder.ID == orderA.ID {
		t.Errorf("User B got user A's order")
	}
}

func TestConcurrentCheckoutLastUnit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	productID := createTestProduct(t, db, "Ultima Unidade", decimal.NewFromInt(100), 1)

	userA := createTestUser(t, db, "race-a@example.com")
	userB := createTestUser(t, db, "race-b@example.com")
	addrA := createTestAddress(t, db, userA)
	addrB := createTestAddress(t, db, userB)

	addToCart(t, db, userA, productID, 1)
	addToCart(t, db, userB, productID, 1)

	type result struct {
		order *models.Order
		err   error
	}

	var wg sync.WaitGroup
	results := make(chan result, 2)

	for _, attempt := range []struct{ userID, addressID string }{
		{userA, addrA},
		{userB, addrB},
	} {
		wg.Add(1)
		go func(userID, addressID string) {
			defer wg.Done()
			order, err := checkout.Confirm(ctx, db, checkout.ConfirmRequest{
				UserID:         userID,
				AddressID:      addressID,
				PaymentMethod:  models.PaymentMethodPix,
				IdempotencyKey: uuid.New(),
			})
			results <- result{order, err}
		}(attempt.userID, attempt.addressID)
	}

	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for r := range results {
		switch {
		case r.err == nil:
			successCount++
		case errors.Is(r.err, database.ErrInsufficientStock):
			conflictCount++
		default:
			t.Errorf("Unexpected error: %v", r.err)
		}
	}

	if successCount != 1 || conflictCount != 1 {
		t.Errorf("Expected exactly one success and one conflict, got %d/%d", successCount, conflictCount)
	}
	if stock := productStock(t, db, productID); stock != 0 {
		t.Errorf("Expected final stock 0, got %d", stock)
	}
	if count := countRows(t, db, "orders"); count != 1 {
		t.Errorf("Expected exactly one order, got %d", count)
	}
}
