package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/media"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
	"github.com/sakif/recipe-api/internal/validation"
)

const msgInvalidImage = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

// RecipeInput is the body of POST and PUT. PUT is a whole-resource
// replace: omitted tags, ingredients and link are cleared.
//
// Price is a json.Number so clients may send 5.5 or "5.50".
type RecipeInput struct {
	Name        string      `json:"name" validate:"required,max=255"`
	TimeMinutes *int        `json:"time_minutes" validate:"required,gte=0"`
	Price       json.Number `json:"price" validate:"required"`
	Link        string      `json:"link" validate:"omitempty,url,max=255"`
	Tags        []string    `json:"tags"`
	Ingredients []string    `json:"ingredients"`
}

// RecipePatch is the body of PATCH. Only non-nil fields change; a present
// tags list replaces the whole tag set.
type RecipePatch struct {
	Name        *string      `json:"name" validate:"omitnil,min=1,max=255"`
	TimeMinutes *int         `json:"time_minutes" validate:"omitnil,gte=0"`
	Price       *json.Number `json:"price" validate:"omitnil,min=1"`
	Link        *string      `json:"link"`
	Tags        *[]string    `json:"tags"`
	Ingredients *[]string    `json:"ingredients"`
}

// RecipeService handles recipes and their images.
//
// DEPENDENCIES:
//   - recipes: rows and their tag/ingredient links
//   - labels:  checks submitted tag/ingredient ids belong to the caller
//   - images:  where uploaded pictures live (disk or S3)
type RecipeService struct {
	recipes   repository.RecipeRepository
	labels    repository.LabelRepository
	images    media.Store
	validator *validation.Validator
	logger    *slog.Logger
}

func NewRecipeService(
	recipes repository.RecipeRepository,
	labels repository.LabelRepository,
	images media.Store,
	validator *validation.Validator,
	logger *slog.Logger,
) *RecipeService {
	return &RecipeService{
		recipes:   recipes,
		labels:    labels,
		images:    images,
		validator: validator,
		logger:    logger,
	}
}

// List returns the caller's recipes, newest first. A non-empty tagIDs keeps
// recipes holding any of those tags; ingredientIDs works the same way and
// both filters must match.
func (s *RecipeService) List(ctx context.Context, userID string, tagIDs, ingredientIDs []string) ([]model.Recipe, error) {
	recipes, err := s.recipes.ListRecipes(ctx, repository.RecipeFilter{
		UserID:        userID,
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	return recipes, nil
}

func (s *RecipeService) Get(ctx context.Context, userID, id string) (*model.Recipe, error) {
	return s.recipes.GetRecipe(ctx, userID, id)
}

func (s *RecipeService) Create(ctx context.Context, userID string, in RecipeInput) (*model.Recipe, error) {
	recipe := &model.Recipe{UserID: userID}
	if err := s.applyInput(ctx, recipe, in); err != nil {
		return nil, err
	}

	if err := s.recipes.CreateRecipe(ctx, recipe); err != nil {
		return nil, fmt.Errorf("creating recipe: %w", err)
	}

	s.logger.Info("recipe created",
		slog.String("id", recipe.ID),
		slog.String("userID", userID),
	)
	return s.recipes.GetRecipe(ctx, userID, recipe.ID)
}

// Update replaces every writable field of the recipe (PUT).
func (s *RecipeService) Update(ctx context.Context, userID, id string, in RecipeInput) (*model.Recipe, error) {
	recipe, err := s.recipes.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyInput(ctx, recipe, in); err != nil {
		return nil, err
	}
	return s.save(ctx, recipe)
}

// Patch changes only the fields present in in (PATCH).
func (s *RecipeService) Patch(ctx context.Context, userID, id string, in RecipePatch) (*model.Recipe, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	recipe, err := s.recipes.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		recipe.Name = *in.Name
	}
	if in.TimeMinutes != nil {
		recipe.TimeMinutes = *in.TimeMinutes
	}
	if in.Price != nil {
		price, err := parsePrice(*in.Price)
		if err != nil {
			return nil, err
		}
		recipe.Price = price
	}
	if in.Link != nil {
		link := strings.TrimSpace(*in.Link)
		if err := s.validator.Var("link", link, "omitempty,url,max=255"); err != nil {
			return nil, err
		}
		recipe.Link = link
	}
	if in.Tags != nil {
		if recipe.Tags, err = s.resolveLabels(ctx, model.KindTag, userID, *in.Tags, "tags"); err != nil {
			return nil, err
		}
	}
	if in.Ingredients != nil {
		if recipe.Ingredients, err = s.resolveLabels(ctx, model.KindIngredient, userID, *in.Ingredients, "ingredients"); err != nil {
			return nil, err
		}
	}

	return s.save(ctx, recipe)
}

// Delete removes the recipe and then its stored image. A failure to remove
// the image file is logged, not returned: the recipe is already gone.
func (s *RecipeService) Delete(ctx context.Context, userID, id string) error {
	recipe, err := s.recipes.GetRecipe(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.recipes.DeleteRecipe(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("recipe deleted", slog.String("id", id))
	s.removeImage(ctx, recipe.Image)
	return nil
}

// UploadImage validates data as an image, stores it under a fresh key and
// points the recipe at it. The previous image, if any, is removed.
//
// ORDER OF OPERATIONS:
//  1. Save the new file
//  2. Point the row at it (on failure the new file is removed again)
//  3. Remove the old file
//
// A crash between steps leaves at worst an orphaned file, never a row
// pointing at a missing one.
func (s *RecipeService) UploadImage(ctx context.Context, userID, id, filename string, data []byte) (*model.Recipe, error) {
	recipe, err := s.recipes.GetRecipe(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	info, err := media.Inspect(data)
	if err != nil {
		return nil, apperror.ValidationFailed("image", msgInvalidImage)
	}
	blurHash, err := media.BlurHash(data)
	if err != nil {
		return nil, apperror.ValidationFailed("image", msgInvalidImage)
	}

	key := media.RecipeImageKey(filename, info.Format)
	if err := s.images.Save(ctx, key, data, info.ContentType); err != nil {
		return nil, fmt.Errorf("storing image for recipe %s: %w", id, err)
	}

	if err := s.recipes.SetRecipeImage(ctx, userID, id, key, blurHash); err != nil {
		s.removeImage(ctx, key)
		return nil, err
	}

	s.logger.Info("recipe image uploaded",
		slog.String("id", id),
		slog.String("key", key),
		slog.String("format", info.Format),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
	)

	s.removeImage(ctx, recipe.Image)
	recipe.Image = key
	recipe.ImageBlurHash = blurHash
	return recipe, nil
}

// ImageURL turns a stored image key into its public URL ("" for no image).
func (s *RecipeService) ImageURL(key string) string {
	return s.images.URL(key)
}

// applyInput validates a full RecipeInput and copies it onto recipe.
func (s *RecipeService) applyInput(ctx context.Context, recipe *model.Recipe, in RecipeInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Link = strings.TrimSpace(in.Link)
	if err := s.validator.Validate(in); err != nil {
		return err
	}

	price, err := parsePrice(in.Price)
	if err != nil {
		return err
	}
	tags, err := s.resolveLabels(ctx, model.KindTag, recipe.UserID, in.Tags, "tags")
	if err != nil {
		return err
	}
	ingredients, err := s.resolveLabels(ctx, model.KindIngredient, recipe.UserID, in.Ingredients, "ingredients")
	if err != nil {
		return err
	}

	recipe.Name = in.Name
	recipe.TimeMinutes = *in.TimeMinutes
	recipe.Price = price
	recipe.Link = in.Link
	recipe.Tags = tags
	recipe.Ingredients = ingredients
	return nil
}

func (s *RecipeService) save(ctx context.Context, recipe *model.Recipe) (*model.Recipe, error) {
	if err := s.recipes.UpdateRecipe(ctx, recipe); err != nil {
		if errors.Is(err, apperror.ErrNotFound) || errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("updating recipe %s: %w", recipe.ID, err)
	}

	s.logger.Info("recipe updated", slog.String("id", recipe.ID))
	return s.recipes.GetRecipe(ctx, recipe.UserID, recipe.ID)
}

// resolveLabels checks that every id names one of userID's labels of kind
// and returns them. Repeated ids collapse to one.
func (s *RecipeService) resolveLabels(ctx context.Context, kind model.LabelKind, userID string, ids []string, field string) ([]model.Label, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return []model.Label{}, nil
	}

	found, err := s.labels.FindLabels(ctx, kind, userID, unique)
	if err != nil {
		return nil, fmt.Errorf("checking %s ids: %w", kind, err)
	}

	owned := make(map[string]bool, len(found))
	for _, l := range found {
		owned[l.ID] = true
	}
	for _, id := range unique {
		if !owned[id] {
			return nil, apperror.ValidationFailed(field, fmt.Sprintf("Invalid pk %q - object does not exist.", id))
		}
	}
	return found, nil
}

func (s *RecipeService) removeImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove recipe image",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// parsePrice maps model.ParsePrice errors onto field messages.
func parsePrice(raw json.Number) (model.Price, error) {
	price, err := model.ParsePrice(raw.String())
	switch {
	case err == nil:
		return price, nil
	case errors.Is(err, model.ErrPriceDecimals):
		return "", apperror.ValidationFailed("price", "Ensure that there are no more than 2 decimal places.")
	case errors.Is(err, model.ErrPriceMaxDigits):
		return "", apperror.ValidationFailed("price", "Ensure that there are no more than 5 digits in total.")
	default:
		return "", apperror.ValidationFailed("price", "A valid number is required.")
	}
}
