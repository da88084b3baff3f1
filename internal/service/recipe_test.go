package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/media"
	"github.com/sakif/recipe-api/internal/model"
)

// =========================================================================
// CREATE
// =========================================================================

func TestRecipeService_Create(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	vegan := f.tag(t, u.ID, "Vegan")
	tofu := f.ingredient(t, u.ID, "Tofu")

	r, err := f.recipes.Create(context.Background(), u.ID, RecipeInput{
		Name:        " Tofu scramble ",
		TimeMinutes: intPtr(15),
		Price:       json.Number("4.5"),
		Link:        "https://example.com/tofu",
		Tags:        []string{vegan.ID, vegan.ID},
		Ingredients: []string{tofu.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, u.ID, r.UserID, "owner is stamped from the caller")
	assert.Equal(t, "Tofu scramble", r.Name)
	assert.Equal(t, 15, r.TimeMinutes)
	assert.Equal(t, model.Price("4.50"), r.Price)
	assert.Equal(t, []string{vegan.ID}, labelIDs(r.Tags))
	assert.Equal(t, []string{tofu.ID}, labelIDs(r.Ingredients))
}

func TestRecipeService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")

	base := func() RecipeInput {
		return RecipeInput{Name: "Soup", TimeMinutes: intPtr(5), Price: "1.00"}
	}

	tests := []struct {
		name   string
		mutate func(*RecipeInput)
		field  string
	}{
		{"missing name", func(in *RecipeInput) { in.Name = "" }, "name"},
		{"missing time", func(in *RecipeInput) { in.TimeMinutes = nil }, "time_minutes"},
		{"negative time", func(in *RecipeInput) { in.TimeMinutes = intPtr(-1) }, "time_minutes"},
		{"missing price", func(in *RecipeInput) { in.Price = "" }, "price"},
		{"price too precise", func(in *RecipeInput) { in.Price = "1.005" }, "price"},
		{"price too large", func(in *RecipeInput) { in.Price = "1000.00" }, "price"},
		{"price not a number", func(in *RecipeInput) { in.Price = "1e3" }, "price"},
		{"bad link", func(in *RecipeInput) { in.Link = "not a url" }, "link"},
		{"unknown tag", func(in *RecipeInput) { in.Tags = []string{"nope"} }, "tags"},
		{"unknown ingredient", func(in *RecipeInput) { in.Ingredients = []string{"nope"} }, "ingredients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(&in)
			_, err := f.recipes.Create(context.Background(), u.ID, in)
			fieldError(t, err, tt.field)
		})
	}
}

func TestRecipeService_CreateRejectsOtherUsersLabels(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	bobsTag := f.tag(t, bob.ID, "Secret")

	_, err := f.recipes.Create(context.Background(), alice.ID, RecipeInput{
		Name: "Soup", TimeMinutes: intPtr(5), Price: "1.00", Tags: []string{bobsTag.ID},
	})
	msg := fieldError(t, err, "tags")
	assert.Contains(t, msg, bobsTag.ID)
}

// =========================================================================
// LIST / GET
// =========================================================================

func TestRecipeService_ListIsOwnerFiltered(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")

	f.recipe(t, alice.ID, "Alice 1", nil, nil)
	f.recipe(t, alice.ID, "Alice 2", nil, nil)
	bobs := f.recipe(t, bob.ID, "Bob 1", nil, nil)

	list, err := f.recipes.List(context.Background(), alice.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, r := range list {
		assert.Equal(t, alice.ID, r.UserID)
	}

	_, err = f.recipes.Get(context.Background(), alice.ID, bobs.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestRecipeService_ListFilters(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	vegan := f.tag(t, u.ID, "Vegan")
	quick := f.tag(t, u.ID, "Quick")
	tofu := f.ingredient(t, u.ID, "Tofu")

	f.recipe(t, u.ID, "Salad", []string{vegan.ID, quick.ID}, nil)
	f.recipe(t, u.ID, "Tofu bowl", []string{vegan.ID}, []string{tofu.ID})
	f.recipe(t, u.ID, "Steak", nil, nil)

	byTags, err := f.recipes.List(context.Background(), u.ID, []string{vegan.ID, quick.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, byTags, 2, "salad holds both tags but appears once")

	both, err := f.recipes.List(context.Background(), u.ID, []string{vegan.ID}, []string{tofu.ID})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "Tofu bowl", both[0].Name)
}

// =========================================================================
// UPDATE (PUT) vs PATCH
// =========================================================================

func TestRecipeService_UpdateReplacesEverything(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	vegan := f.tag(t, u.ID, "Vegan")
	quick := f.tag(t, u.ID, "Quick")
	salt := f.ingredient(t, u.ID, "Salt")

	r, err := f.recipes.Create(context.Background(), u.ID, RecipeInput{
		Name: "Soup", TimeMinutes: intPtr(30), Price: "3.00", Link: "https://example.com/soup",
		Tags: []string{vegan.ID}, Ingredients: []string{salt.ID},
	})
	require.NoError(t, err)

	updated, err := f.recipes.Update(context.Background(), u.ID, r.ID, RecipeInput{
		Name: "Fast soup", TimeMinutes: intPtr(10), Price: "2.5", Tags: []string{quick.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "Fast soup", updated.Name)
	assert.Equal(t, 10, updated.TimeMinutes)
	assert.Equal(t, model.Price("2.50"), updated.Price)
	assert.Equal(t, "", updated.Link, "omitted link is cleared")
	assert.Equal(t, []string{quick.ID}, labelIDs(updated.Tags), "tag set is replaced, not merged")
	assert.Empty(t, updated.Ingredients, "omitted ingredients are cleared")
}

func TestRecipeService_UpdateRequiresFields(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	r := f.recipe(t, u.ID, "Soup", nil, nil)

	_, err := f.recipes.Update(context.Background(), u.ID, r.ID, RecipeInput{Name: "Only name"})
	fieldError(t, err, "time_minutes")
}

func TestRecipeService_PatchChangesOnlyNamedFields(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	vegan := f.tag(t, u.ID, "Vegan")
	quick := f.tag(t, u.ID, "Quick")
	salt := f.ingredient(t, u.ID, "Salt")

	r, err := f.recipes.Create(context.Background(), u.ID, RecipeInput{
		Name: "Soup", TimeMinutes: intPtr(30), Price: "3.00", Link: "https://example.com/soup",
		Tags: []string{vegan.ID}, Ingredients: []string{salt.ID},
	})
	require.NoError(t, err)

	patched, err := f.recipes.Patch(context.Background(), u.ID, r.ID, RecipePatch{Name: strPtr("Better soup")})
	require.NoError(t, err)
	assert.Equal(t, "Better soup", patched.Name)
	assert.Equal(t, 30, patched.TimeMinutes)
	assert.Equal(t, model.Price("3.00"), patched.Price)
	assert.Equal(t, "https://example.com/soup", patched.Link)
	assert.Equal(t, []string{vegan.ID}, labelIDs(patched.Tags))
	assert.Equal(t, []string{salt.ID}, labelIDs(patched.Ingredients))

	tags := []string{quick.ID}
	patched, err = f.recipes.Patch(context.Background(), u.ID, r.ID, RecipePatch{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, []string{quick.ID}, labelIDs(patched.Tags), "a named tag list replaces the set")
	assert.Equal(t, []string{salt.ID}, labelIDs(patched.Ingredients), "ingredients untouched")

	price := json.Number("9.99")
	patched, err = f.recipes.Patch(context.Background(), u.ID, r.ID, RecipePatch{Price: &price, Link: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, model.Price("9.99"), patched.Price)
	assert.Equal(t, "", patched.Link)
}

func TestRecipeService_PatchValidation(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	r := f.recipe(t, u.ID, "Soup", nil, nil)

	_, err := f.recipes.Patch(context.Background(), u.ID, r.ID, RecipePatch{TimeMinutes: intPtr(-5)})
	fieldError(t, err, "time_minutes")

	_, err = f.recipes.Patch(context.Background(), u.ID, r.ID, RecipePatch{Link: strPtr("ftp:/bad url")})
	fieldError(t, err, "link")

	bad := []string{"missing"}
	_, err = f.recipes.Patch(context.Background(), u.ID, r.ID, RecipePatch{Ingredients: &bad})
	fieldError(t, err, "ingredients")
}

func TestRecipeService_OtherOwnerCannotWrite(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@example.com")
	bob := f.user(t, "bob@example.com")
	r := f.recipe(t, alice.ID, "Soup", nil, nil)

	_, err := f.recipes.Patch(context.Background(), bob.ID, r.ID, RecipePatch{Name: strPtr("Mine now")})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = f.recipes.Update(context.Background(), bob.ID, r.ID, RecipeInput{Name: "x", TimeMinutes: intPtr(1), Price: "1"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	err = f.recipes.Delete(context.Background(), bob.ID, r.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, err = f.recipes.UploadImage(context.Background(), bob.ID, r.ID, "x.png", pngBytes(t, 4, 4))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

// =========================================================================
// IMAGES
// =========================================================================

func TestRecipeService_UploadImage(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	r := f.recipe(t, u.ID, "Soup", nil, nil)

	got, err := f.recipes.UploadImage(context.Background(), u.ID, r.ID, "soup.png", pngBytes(t, 100, 80))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.Image, media.RecipeImageDir+"/"))
	assert.True(t, strings.HasSuffix(got.Image, ".png"))
	assert.NotEmpty(t, got.ImageBlurHash)
	assert.True(t, f.store.has(got.Image))

	stored, err := f.recipes.Get(context.Background(), u.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Image, stored.Image, "path is retrievable afterwards")
	assert.Equal(t, "/media/"+got.Image, f.recipes.ImageURL(stored.Image))
}

func TestRecipeService_UploadImageReplacesOld(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	r := f.recipe(t, u.ID, "Soup", nil, nil)

	first, err := f.recipes.UploadImage(context.Background(), u.ID, r.ID, "a.png", pngBytes(t, 10, 10))
	require.NoError(t, err)
	second, err := f.recipes.UploadImage(context.Background(), u.ID, r.ID, "b.png", pngBytes(t, 10, 10))
	require.NoError(t, err)

	assert.NotEqual(t, first.Image, second.Image)
	assert.False(t, f.store.has(first.Image), "old image removed")
	assert.True(t, f.store.has(second.Image))
}

func TestRecipeService_UploadImageRejectsNonImage(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	r := f.recipe(t, u.ID, "Soup", nil, nil)

	_, err := f.recipes.UploadImage(context.Background(), u.ID, r.ID, "notes.png", []byte("not really a png"))
	assert.Equal(t, msgInvalidImage, fieldError(t, err, "image"))

	stored, err := f.recipes.Get(context.Background(), u.ID, r.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Image)
	assert.Empty(t, f.store.files)
}

func TestRecipeService_UploadImageStoreFailure(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	r := f.recipe(t, u.ID, "Soup", nil, nil)
	f.store.failOn = media.RecipeImageDir

	_, err := f.recipes.UploadImage(context.Background(), u.ID, r.ID, "a.png", pngBytes(t, 4, 4))
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrValidation))

	stored, err := f.recipes.Get(context.Background(), u.ID, r.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Image, "row untouched when the file could not be saved")
}

func TestRecipeService_DeleteRemovesImage(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "cook@example.com")
	r := f.recipe(t, u.ID, "Soup", nil, nil)

	up, err := f.recipes.UploadImage(context.Background(), u.ID, r.ID, "a.png", pngBytes(t, 4, 4))
	require.NoError(t, err)

	require.NoError(t, f.recipes.Delete(context.Background(), u.ID, r.ID))
	assert.False(t, f.store.has(up.Image))

	_, err = f.recipes.Get(context.Background(), u.ID, r.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
