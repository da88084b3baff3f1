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

var _ repository.LabelRepository = (*DB)(nil)

// labelTables describes where a label kind is stored and how recipes link to it.
type labelTables struct {
	table      string // "tags"
	joinTable  string // "recipe_tags"
	joinColumn string // "tag_id"
}

func tablesFor(kind model.LabelKind) (labelTables, error) {
	switch kind {
	case model.KindTag:
		return labelTables{"tags", "recipe_tags", "tag_id"}, nil
	case model.KindIngredient:
		return labelTables{"ingredients", "recipe_ingredients", "ingredient_id"}, nil
	default:
		return labelTables{}, fmt.Errorf("sqldb: unknown label kind %q", kind)
	}
}

var labelColumns = []string{"id", "user_id", "name", "created_at"}

// CreateLabel inserts label, filling in ID and CreatedAt. A name the owner
// already uses returns repository.ErrDuplicate.
func (db *DB) CreateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	label.ID = xid.New().String()
	label.CreatedAt = time.Now().UTC()

	_, err = exec(ctx, db.conn, db.sb.Insert(t.table).
		Columns(labelColumns...).
		Values(label.ID, label.UserID, label.Name, label.CreatedAt))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("sqldb: inserting %s %q: %w", kind, label.Name, repository.ErrDuplicate)
		case isForeignKeyViolation(err):
			return apperror.NotFound("user", label.UserID)
		}
		return fmt.Errorf("sqldb: inserting %s %q: %w", kind, label.Name, err)
	}

	return nil
}

// GetLabel returns the label only if userID owns it.
func (db *DB) GetLabel(ctx context.Context, kind model.LabelKind, userID, id string) (*model.Label, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	row, err := queryRow(ctx, db.conn, db.sb.Select(labelColumns...).
		From(t.table).
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return nil, fmt.Errorf("sqldb: getting %s %s: %w", kind, id, err)
	}

	var l model.Label
	if err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(kind.String(), id)
		}
		return nil, fmt.Errorf("sqldb: getting %s %s: %w", kind, id, err)
	}

	return &l, nil
}

// ListLabels returns the owner's labels ordered by name descending.
//
// With AssignedOnly, the EXISTS subquery keeps labels linked to at least one
// recipe. A join would repeat a label once per recipe; EXISTS cannot.
func (db *DB) ListLabels(ctx context.Context, kind model.LabelKind, filter repository.LabelFilter) ([]model.Label, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	b := db.sb.Select(labelColumns...).
		From(t.table).
		Where(sq.Eq{"user_id": filter.UserID}).
		OrderBy("name DESC", "id DESC")

	if filter.AssignedOnly {
		b = b.Where(fmt.Sprintf(
			"EXISTS (SELECT 1 FROM %s j WHERE j.%s = %s.id)",
			t.joinTable, t.joinColumn, t.table,
		))
	}

	return db.selectLabels(ctx, db.conn, b, kind)
}

// FindLabels returns those of ids that exist and belong to userID.
func (db *DB) FindLabels(ctx context.Context, kind model.LabelKind, userID string, ids []string) ([]model.Label, error) {
	if len(ids) == 0 {
		return []model.Label{}, nil
	}
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	b := db.sb.Select(labelColumns...).
		From(t.table).
		Where(sq.Eq{"user_id": userID, "id": ids}).
		OrderBy("name DESC")

	return db.selectLabels(ctx, db.conn, b, kind)
}

func (db *DB) selectLabels(ctx context.Context, q querier, b sq.SelectBuilder, kind model.LabelKind) ([]model.Label, error) {
	rows, err := query(ctx, q, b)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing %ss: %w", kind, err)
	}
	defer rows.Close()

	labels := []model.Label{}
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqldb: scanning %s: %w", kind, err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating %ss: %w", kind, err)
	}

	return labels, nil
}

// UpdateLabel renames a label. Only the owner's row can match.
func (db *DB) UpdateLabel(ctx context.Context, kind model.LabelKind, label *model.Label) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	result, err := exec(ctx, db.conn, db.sb.Update(t.table).
		Set("name", label.Name).
		Where(sq.Eq{"id": label.ID, "user_id": label.UserID}))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqldb: updating %s %s: %w", kind, label.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("sqldb: updating %s %s: %w", kind, label.ID, err)
	}

	return requireAffected(result, kind.String(), label.ID)
}

// DeleteLabel removes the label; ON DELETE CASCADE drops its recipe links.
func (db *DB) DeleteLabel(ctx context.Context, kind model.LabelKind, userID, id string) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}

	result, err := exec(ctx, db.conn, db.sb.Delete(t.table).
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return fmt.Errorf("sqldb: deleting %s %s: %w", kind, id, err)
	}

	return requireAffected(result, kind.String(), id)
}
