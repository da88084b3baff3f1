package sqldb

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

// newTestDB opens a fresh in-memory SQLite database with the schema applied.
// Each call gets its own database, so tests never see each other's rows.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := New(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Name: "Test User", PasswordHash: "hash", IsActive: true}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	u := &model.User{Email: "cook@example.com", Name: "Cook", PasswordHash: "hash", IsActive: true, IsStaff: true}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if u.ID == "" {
		t.Error("CreateUser() did not set ID")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Error("CreateUser() did not set timestamps")
	}

	got, err := db.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Email != u.Email || got.Name != u.Name || got.PasswordHash != "hash" {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if !got.IsActive || !got.IsStaff || got.IsSuperuser {
		t.Errorf("flags mismatch: active=%v staff=%v super=%v", got.IsActive, got.IsStaff, got.IsSuperuser)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "cook@example.com")

	// Case differences do not make a new address.
	err := db.CreateUser(context.Background(), &model.User{Email: "COOK@example.com", Name: "Other", PasswordHash: "x"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("CreateUser() error = %v, want ErrDuplicate", err)
	}
}

// =========================================================================
// READ
// =========================================================================

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "Cook@example.com")

	got, err := db.GetUserByEmail(context.Background(), "cook@EXAMPLE.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("GetUserByEmail() ID = %q, want %q", got.ID, u.ID)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetUserByID(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE / LIST
// =========================================================================

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "cook@example.com")
	createdAt := u.UpdatedAt

	u.Name = "Renamed"
	u.IsSuperuser = true
	if err := db.UpdateUser(context.Background(), u); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	got, _ := db.GetUserByID(context.Background(), u.ID)
	if got.Name != "Renamed" || !got.IsSuperuser {
		t.Errorf("UpdateUser() not persisted: %+v", got)
	}
	if got.UpdatedAt.Before(createdAt) {
		t.Error("UpdatedAt moved backwards")
	}
}

func TestUpdateUser_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "first@example.com")
	second := createTestUser(t, db, "second@example.com")

	second.Email = "first@example.com"
	if err := db.UpdateUser(context.Background(), second); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("UpdateUser() error = %v, want ErrDuplicate", err)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), &model.User{ID: "missing", Email: "x@example.com"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}

func TestListUsers_OrderAndPagination(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "c@example.com")
	createTestUser(t, db, "a@example.com")
	createTestUser(t, db, "b@example.com")

	all, err := db.ListUsers(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(all) != 3 || all[0].Email != "a@example.com" || all[2].Email != "c@example.com" {
		t.Fatalf("ListUsers() order wrong: %+v", all)
	}

	page, err := db.ListUsers(context.Background(), repository.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(page) != 1 || page[0].Email != "b@example.com" {
		t.Errorf("ListUsers(limit=1, offset=1) = %+v", page)
	}
}
