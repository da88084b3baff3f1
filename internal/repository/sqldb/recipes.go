package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/xid"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

var _ repository.RecipeRepository = (*DB)(nil)

var recipeColumns = []string{
	"id", "user_id", "name", "time_minutes", "price", "link",
	"image", "image_blurhash", "created_at", "updated_at",
}

// CreateRecipe inserts the recipe row and its tag/ingredient links in one
// transaction. The caller has already checked the labels belong to the owner.
func (db *DB) CreateRecipe(ctx context.Context, recipe *model.Recipe) error {
	now := time.Now().UTC()
	recipe.ID = xid.New().String()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now

	return db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := exec(ctx, tx, db.sb.Insert("recipes").
			Columns(recipeColumns...).
			Values(
				recipe.ID, recipe.UserID, recipe.Name, recipe.TimeMinutes,
				string(recipe.Price), recipe.Link, recipe.Image, recipe.ImageBlurHash,
				recipe.CreatedAt, recipe.UpdatedAt,
			))
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperror.NotFound("user", recipe.UserID)
			}
			return fmt.Errorf("sqldb: inserting recipe %q: %w", recipe.Name, err)
		}

		return db.replaceLinks(ctx, tx, recipe)
	})
}

// GetRecipe returns the recipe with its labels if userID owns it.
func (db *DB) GetRecipe(ctx context.Context, userID, id string) (*model.Recipe, error) {
	row, err := queryRow(ctx, db.conn, db.sb.Select(recipeColumns...).
		From("recipes").
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting recipe %s: %w", id, err)
	}

	r, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("recipe", id)
		}
		return nil, fmt.Errorf("sqldb: getting recipe %s: %w", id, err)
	}

	recipes := []model.Recipe{*r}
	if err := db.attachLabels(ctx, recipes); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// ListRecipes returns the owner's recipes, newest first.
//
// Label filters are IN-subqueries rather than joins so a recipe holding
// two of the requested tags is still returned once.
func (db *DB) ListRecipes(ctx context.Context, filter repository.RecipeFilter) ([]model.Recipe, error) {
	b := db.sb.Select(recipeColumns...).
		From("recipes").
		Where(sq.Eq{"user_id": filter.UserID}).
		OrderBy("created_at DESC", "id DESC")

	// Subqueries use plain sq.Select: placeholders are numbered once, by
	// the outer builder.
	if len(filter.TagIDs) > 0 {
		sub := sq.Select("recipe_id").From("recipe_tags").Where(sq.Eq{"tag_id": filter.TagIDs})
		b = b.Where(sq.Expr("id IN (?)", sub))
	}
	if len(filter.IngredientIDs) > 0 {
		sub := sq.Select("recipe_id").From("recipe_ingredients").Where(sq.Eq{"ingredient_id": filter.IngredientIDs})
		b = b.Where(sq.Expr("id IN (?)", sub))
	}

	rows, err := query(ctx, db.conn, b)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing recipes: %w", err)
	}

	recipes := []model.Recipe{}
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqldb: scanning recipe: %w", err)
		}
		recipes = append(recipes, *r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("sqldb: iterating recipes: %w", err)
	}

	if err := db.attachLabels(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// UpdateRecipe rewrites the scalar columns and replaces both link sets.
func (db *DB) UpdateRecipe(ctx context.Context, recipe *model.Recipe) error {
	recipe.UpdatedAt = time.Now().UTC()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := exec(ctx, tx, db.sb.Update("recipes").
			Set("name", recipe.Name).
			Set("time_minutes", recipe.TimeMinutes).
			Set("price", string(recipe.Price)).
			Set("link", recipe.Link).
			Set("updated_at", recipe.UpdatedAt).
			Where(sq.Eq{"id": recipe.ID, "user_id": recipe.UserID}))
		if err != nil {
			return fmt.Errorf("sqldb: updating recipe %s: %w", recipe.ID, err)
		}
		if err := requireAffected(result, "recipe", recipe.ID); err != nil {
			return err
		}

		return db.replaceLinks(ctx, tx, recipe)
	})
}

// SetRecipeImage records the stored image key and its blurhash.
func (db *DB) SetRecipeImage(ctx context.Context, userID, id, image, blurHash string) error {
	result, err := exec(ctx, db.conn, db.sb.Update("recipes").
		Set("image", image).
		Set("image_blurhash", blurHash).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return fmt.Errorf("sqldb: setting image on recipe %s: %w", id, err)
	}

	return requireAffected(result, "recipe", id)
}

// DeleteRecipe removes the recipe; its links go with it by cascade.
func (db *DB) DeleteRecipe(ctx context.Context, userID, id string) error {
	result, err := exec(ctx, db.conn, db.sb.Delete("recipes").
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return fmt.Errorf("sqldb: deleting recipe %s: %w", id, err)
	}

	return requireAffected(result, "recipe", id)
}

// replaceLinks makes the join tables match recipe.Tags and recipe.Ingredients.
func (db *DB) replaceLinks(ctx context.Context, tx *sql.Tx, recipe *model.Recipe) error {
	for _, kind := range []model.LabelKind{model.KindTag, model.KindIngredient} {
		t, _ := tablesFor(kind)
		labels := recipe.Tags
		if kind == model.KindIngredient {
			labels = recipe.Ingredients
		}

		if _, err := exec(ctx, tx, db.sb.Delete(t.joinTable).Where(sq.Eq{"recipe_id": recipe.ID})); err != nil {
			return fmt.Errorf("sqldb: clearing %ss of recipe %s: %w", kind, recipe.ID, err)
		}
		if len(labels) == 0 {
			continue
		}

		ins := db.sb.Insert(t.joinTable).Columns("recipe_id", t.joinColumn)
		seen := make(map[string]bool, len(labels))
		for _, l := range labels {
			if seen[l.ID] {
				continue
			}
			seen[l.ID] = true
			ins = ins.Values(recipe.ID, l.ID)
		}
		if _, err := exec(ctx, tx, ins); err != nil {
			if isForeignKeyViolation(err) {
				return apperror.ValidationFailed(kind.String()+"s", fmt.Sprintf("unknown %s id", kind))
			}
			return fmt.Errorf("sqldb: linking %ss to recipe %s: %w", kind, recipe.ID, err)
		}
	}
	return nil
}

// attachLabels fills Tags and Ingredients for every recipe with two queries.
// Labels come back ordered by name descending, matching the label lists.
func (db *DB) attachLabels(ctx context.Context, recipes []model.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	index := make(map[string]int, len(recipes))
	ids := make([]string, len(recipes))
	for i := range recipes {
		index[recipes[i].ID] = i
		ids[i] = recipes[i].ID
		recipes[i].Tags = []model.Label{}
		recipes[i].Ingredients = []model.Label{}
	}

	for _, kind := range []model.LabelKind{model.KindTag, model.KindIngredient} {
		t, _ := tablesFor(kind)

		b := db.sb.Select("j.recipe_id", "l.id", "l.user_id", "l.name", "l.created_at").
			From(t.joinTable + " j").
			Join(fmt.Sprintf("%s l ON l.id = j.%s", t.table, t.joinColumn)).
			Where(sq.Eq{"j.recipe_id": ids}).
			OrderBy("l.name DESC", "l.id DESC")

		rows, err := query(ctx, db.conn, b)
		if err != nil {
			return fmt.Errorf("sqldb: loading recipe %ss: %w", kind, err)
		}

		for rows.Next() {
			var recipeID string
			var l model.Label
			if err := rows.Scan(&recipeID, &l.ID, &l.UserID, &l.Name, &l.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("sqldb: scanning recipe %s: %w", kind, err)
			}
			r := &recipes[index[recipeID]]
			if kind == model.KindTag {
				r.Tags = append(r.Tags, l)
			} else {
				r.Ingredients = append(r.Ingredients, l)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("sqldb: iterating recipe %ss: %w", kind, err)
		}
	}

	return nil
}

func scanRecipe(s scanner) (*model.Recipe, error) {
	var r model.Recipe
	var price string
	err := s.Scan(
		&r.ID, &r.UserID, &r.Name, &r.TimeMinutes, &price, &r.Link,
		&r.Image, &r.ImageBlurHash, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Price = model.Price(price)
	return &r, nil
}
