// Package repository defines the storage contracts the service layer
// depends on. The sqldb sub-package implements them for SQLite and Postgres;
// tests substitute in-memory fakes.
//
// Every method that touches tags, ingredients or recipes takes the owner's
// user ID and filters on it. A row that exists but belongs to someone else
// is reported exactly like a row that does not exist.
package repository

import (
	"context"
	"errors"

	"github.com/sakif/recipe-api/internal/model"
)

// ErrDuplicate signals a unique-constraint violation (email, label name).
// Services turn it into a field-level validation error.
var ErrDuplicate = errors.New("repository: duplicate value")

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
}

// LabelFilter narrows ListLabels. AssignedOnly keeps labels attached to at
// least one recipe.
type LabelFilter struct {
	UserID       string
	AssignedOnly bool
}

type LabelRepository interface {
	CreateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error
	GetLabel(ctx context.Context, kind model.LabelKind, userID, id string) (*model.Label, error)
	ListLabels(ctx context.Context, kind model.LabelKind, filter LabelFilter) ([]model.Label, error)
	// FindLabels returns the subset of ids that exist and belong to userID.
	FindLabels(ctx context.Context, kind model.LabelKind, userID string, ids []string) ([]model.Label, error)
	UpdateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error
	DeleteLabel(ctx context.Context, kind model.LabelKind, userID, id string) error
}

// RecipeFilter narrows ListRecipes. Within TagIDs (or IngredientIDs) a
// recipe matches if it holds any of the ids; both lists must match when set.
type RecipeFilter struct {
	UserID        string
	TagIDs        []string
	IngredientIDs []string
}

type RecipeRepository interface {
	// CreateRecipe stores the recipe and links Tags and Ingredients by ID.
	CreateRecipe(ctx context.Context, recipe *model.Recipe) error
	GetRecipe(ctx context.Context, userID, id string) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filter RecipeFilter) ([]model.Recipe, error)
	// UpdateRecipe rewrites the scalar fields and replaces both label sets.
	UpdateRecipe(ctx context.Context, recipe *model.Recipe) error
	SetRecipeImage(ctx context.Context, userID, id, image, blurHash string) error
	DeleteRecipe(ctx context.Context, userID, id string) error
}
