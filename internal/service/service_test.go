package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository/sqldb"
	"github.com/sakif/recipe-api/internal/validation"
)

// =========================================================================
// TEST FIXTURES
// =========================================================================
//
// Services run against a real in-memory SQLite database (the same sqldb
// package production uses) and an in-memory image store. Error paths the
// database cannot produce on demand use the small fakes further down.

type memStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	deleted []string
	failOn  string // Save fails for this key prefix
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && len(key) >= len(m.failOn) && key[:len(m.failOn)] == m.failOn {
		return errors.New("disk full")
	}
	m.files[key] = data
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memStore) URL(key string) string {
	if key == "" {
		return ""
	}
	return "/media/" + key
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[key]
	return ok
}

type fixture struct {
	db          *sqldb.DB
	store       *memStore
	users       *UserService
	auth        *AuthService
	tags        *LabelService
	ingredients *LabelService
	recipes     *RecipeService
	tokens      *auth.TokenService
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := quietLogger()

	db, err := sqldb.New(context.Background(), ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("service-test-secret-value", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(bcrypt.MinCost)
	v := validation.New()
	store := newMemStore()

	return &fixture{
		db:          db,
		store:       store,
		users:       NewUserService(db, passwords, v, logger),
		auth:        NewAuthService(db, tokens, passwords, v, logger),
		tags:        NewLabelService(db, model.KindTag, v, logger),
		ingredients: NewLabelService(db, model.KindIngredient, v, logger),
		recipes:     NewRecipeService(db, db, store, v, logger),
		tokens:      tokens,
	}
}

func (f *fixture) user(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), RegisterInput{Email: email, Name: "Cook", Password: "secret123"})
	require.NoError(t, err)
	return u
}

func (f *fixture) tag(t *testing.T, userID, name string) *model.Label {
	t.Helper()
	l, err := f.tags.Create(context.Background(), userID, LabelInput{Name: name})
	require.NoError(t, err)
	return l
}

func (f *fixture) ingredient(t *testing.T, userID, name string) *model.Label {
	t.Helper()
	l, err := f.ingredients.Create(context.Background(), userID, LabelInput{Name: name})
	require.NoError(t, err)
	return l
}

func (f *fixture) recipe(t *testing.T, userID, name string, tags, ingredients []string) *model.Recipe {
	t.Helper()
	r, err := f.recipes.Create(context.Background(), userID, RecipeInput{
		Name:        name,
		TimeMinutes: intPtr(10),
		Price:       "5.00",
		Tags:        tags,
		Ingredients: ingredients,
	})
	require.NoError(t, err)
	return r
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fieldError returns the message recorded for field, failing the test if
// err is not a validation error carrying it.
func fieldError(t *testing.T, err error, field string) string {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, apperror.ErrValidation), "want validation error, got %v", err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	msg, ok := appErr.Fields[field]
	require.True(t, ok, "no error for field %q in %v", field, appErr.Fields)
	return msg
}

func labelIDs(labels []model.Label) []string {
	ids := make([]string, 0, len(labels))
	for _, l := range labels {
		ids = append(ids, l.ID)
	}
	return ids
}

func labelNames(labels []model.Label) []string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Name)
	}
	return names
}
