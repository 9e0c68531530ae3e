package integration

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/amaral/loja-store/internal/store"
	"github.com/amaral/loja-store/migrations"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func createTestUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, email, "Test User", "supersecret")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user.ID
}

func createTestProduct(t *testing.T, db *sql.DB, name string, price decimal.Decimal, stock int) string {
	t.Helper()
	product, err := store.CreateProduct(context.Background(), db, store.ProductInput{
		Name:     name,
		Price:    price,
		Stock:    stock,
		Category: "test",
	})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return product.ID
}

func createTestAddress(t *testing.T, db *sql.DB, userID string) string {
	t.Helper()
	addr, err := store.CreateAddress(context.Background(), db, userID, store.AddressInput{
		Street:       "Rua das Flores",
		Number:       "123",
		Neighborhood: "Centro",
		City:         "Sao Paulo",
		State:        "SP",
		PostalCode:   "01310-100",
	})
	if err != nil {
		t.Fatalf("Create address: %v", err)
	}
	return addr.ID
}

func addToCart(t *testing.T, db *sql.DB, userID, productID string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if _, err := store.AddItem(context.Background(), db, userID, productID); err != nil {
			t.Fatalf("Add item to cart: %v", err)
		}
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("Count rows in %s: %v", table, err)
	}
	return count
}

func productStock(t *testing.T, db *sql.DB, productID string) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), db, productID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	return product.Stock
}
