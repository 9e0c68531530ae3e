package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/amaral/loja-store/internal/database"
	"github.com/amaral/loja-store/internal/store"
)

func TestSignupAndLogin(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, "maria@example.com", "Maria", "segredo123")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	if user.IsAdmin {
		t.Error("New users must not be admin")
	}

	if _, err := store.CreateUser(ctx, db, "maria@example.com", "Outra Maria", "outrasenha"); !errors.Is(err, database.ErrEmailTaken) {
		t.Errorf("Expected email taken error, got: %v", err)
	}

	authed, err := store.Authenticate(ctx, db, "maria@example.com", "segredo123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Errorf("Expected user %s, got %s", user.ID, authed.ID)
	}

	if _, err := store.Authenticate(ctx, db, "maria@example.com", "errada"); !errors.Is(err, database.ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials for wrong password, got: %v", err)
	}
	if _, err := store.Authenticate(ctx, db, "ninguem@example.com", "segredo123"); !errors.Is(err, database.ErrInvalidCredentials) {
		t.Errorf("Expected invalid credentials for unknown email, got: %v", err)
	}
}

func TestUpdateUserName(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := createTestUser(t, db, "joao@example.com")

	if err := store.UpdateUserName(ctx, db, userID, "Joao Silva"); err != nil {
		t.Fatalf("Update name: %v", err)
	}

	user, err := store.GetUser(ctx, db, userID)
	if err != nil {
		t.Fatalf("Get user: %v", err)
	}
	if user.Name != "Joao Silva" {
		t.Errorf("Expected name updated, got %q", user.Name)
	}
	if user.Email != "joao@example.com" {
		t.Errorf("Email must be immutable, got %q", user.Email)
	}
}

func TestIsAdminLookup(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := createTestUser(t, db, "admin@example.com")

	isAdmin, err := store.IsAdmin(ctx, db, userID)
	if err != nil {
		t.Fatalf("IsAdmin: %v", err)
	}
	if isAdmin {
		t.Error("Expected non-admin by default")
	}

	if _, err := db.ExecContext(ctx, `UPDATE users SET is_admin = TRUE WHERE id = $1`, userID); err != nil {
		t.Fatalf("Promote user: %v", err)
	}

	isAdmin, err = store.IsAdmin(ctx, db, userID)
	if err != nil {
		t.Fatalf("IsAdmin after promote: %v", err)
	}
	if !isAdmin {
		t.Error("Expected admin flag to be picked up immediately")
	}
}
