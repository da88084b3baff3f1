package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
)

func createTestLabel(t *testing.T, db *DB, kind model.LabelKind, userID, name string) *model.Label {
	t.Helper()
	l := &model.Label{UserID: userID, Name: name}
	if err := db.CreateLabel(context.Background(), kind, l); err != nil {
		t.Fatalf("failed to create test %s: %v", kind, err)
	}
	return l
}

func labelNames(labels []model.Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}

func TestCreateLabel_BothKinds(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "cook@example.com")

	for _, kind := range []model.LabelKind{model.KindTag, model.KindIngredient} {
		t.Run(kind.String(), func(t *testing.T) {
			l := createTestLabel(t, db, kind, u.ID, "Vegan")
			if l.ID == "" || l.CreatedAt.IsZero() {
				t.Errorf("CreateLabel() did not fill ID/CreatedAt: %+v", l)
			}

			got, err := db.GetLabel(context.Background(), kind, u.ID, l.ID)
			if err != nil {
				t.Fatalf("GetLabel() error = %v", err)
			}
			if got.Name != "Vegan" || got.UserID != u.ID {
				t.Errorf("GetLabel() = %+v", got)
			}
		})
	}
}

func TestCreateLabel_UniqueName(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	createTestLabel(t, db, model.KindTag, alice.ID, "Dinner")

	for name, owner := range map[string]string{"same owner": alice.ID, "other owner": bob.ID} {
		err := db.CreateLabel(context.Background(), model.KindTag, &model.Label{UserID: owner, Name: "Dinner"})
		if !errors.Is(err, repository.ErrDuplicate) {
			t.Errorf("%s: error = %v, want ErrDuplicate", name, err)
		}
	}

	// Tags and ingredients are separate namespaces.
	createTestLabel(t, db, model.KindIngredient, alice.ID, "Dinner")
}

func TestCreateLabel_UnknownOwner(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateLabel(context.Background(), model.KindTag, &model.Label{UserID: "ghost", Name: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreateLabel() error = %v, want ErrNotFound", err)
	}
}

func TestGetLabel_OtherOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	l := createTestLabel(t, db, model.KindTag, alice.ID, "Private")

	if _, err := db.GetLabel(context.Background(), model.KindTag, bob.ID, l.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetLabel() by other user error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteLabel(context.Background(), model.KindTag, bob.ID, l.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteLabel() by other user error = %v, want ErrNotFound", err)
	}
	if err := db.UpdateLabel(context.Background(), model.KindTag, &model.Label{ID: l.ID, UserID: bob.ID, Name: "Stolen"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateLabel() by other user error = %v, want ErrNotFound", err)
	}
}

func TestListLabels_OwnerFilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	createTestLabel(t, db, model.KindTag, alice.ID, "Breakfast")
	createTestLabel(t, db, model.KindTag, alice.ID, "Dessert")
	createTestLabel(t, db, model.KindTag, bob.ID, "Fruity")

	got, err := db.ListLabels(context.Background(), model.KindTag, repository.LabelFilter{UserID: alice.ID})
	if err != nil {
		t.Fatalf("ListLabels() error = %v", err)
	}

	names := labelNames(got)
	if len(names) != 2 || names[0] != "Dessert" || names[1] != "Breakfast" {
		t.Errorf("ListLabels() = %v, want [Dessert Breakfast]", names)
	}
}

func TestListLabels_AssignedOnlyIsDistinct(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "cook@example.com")

	eggs := createTestLabel(t, db, model.KindIngredient, u.ID, "Eggs")
	createTestLabel(t, db, model.KindIngredient, u.ID, "Lentils")

	// Eggs is on two recipes; it must still be listed once.
	createTestRecipe(t, db, u.ID, "Eggs Benedict", nil, []model.Label{*eggs})
	createTestRecipe(t, db, u.ID, "Herb Eggs", nil, []model.Label{*eggs})

	got, err := db.ListLabels(context.Background(), model.KindIngredient, repository.LabelFilter{UserID: u.ID, AssignedOnly: true})
	if err != nil {
		t.Fatalf("ListLabels() error = %v", err)
	}
	if names := labelNames(got); len(names) != 1 || names[0] != "Eggs" {
		t.Errorf("ListLabels(assigned_only) = %v, want [Eggs]", names)
	}
}

func TestFindLabels(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	mine := createTestLabel(t, db, model.KindTag, alice.ID, "Mine")
	theirs := createTestLabel(t, db, model.KindTag, bob.ID, "Theirs")

	got, err := db.FindLabels(context.Background(), model.KindTag, alice.ID, []string{mine.ID, theirs.ID, "missing"})
	if err != nil {
		t.Fatalf("FindLabels() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Errorf("FindLabels() = %+v, want only %s", got, mine.ID)
	}

	empty, err := db.FindLabels(context.Background(), model.KindTag, alice.ID, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("FindLabels(nil) = %v, %v", empty, err)
	}
}

func TestUpdateLabel(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "cook@example.com")
	l := createTestLabel(t, db, model.KindTag, u.ID, "Old")
	createTestLabel(t, db, model.KindTag, u.ID, "Taken")

	l.Name = "New"
	if err := db.UpdateLabel(context.Background(), model.KindTag, l); err != nil {
		t.Fatalf("UpdateLabel() error = %v", err)
	}
	got, _ := db.GetLabel(context.Background(), model.KindTag, u.ID, l.ID)
	if got.Name != "New" {
		t.Errorf("Name = %q, want New", got.Name)
	}

	l.Name = "Taken"
	if err := db.UpdateLabel(context.Background(), model.KindTag, l); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("UpdateLabel() to taken name error = %v, want ErrDuplicate", err)
	}
}

func TestDeleteLabel_RemovesFromRecipes(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "cook@example.com")
	tag := createTestLabel(t, db, model.KindTag, u.ID, "Spicy")
	r := createTestRecipe(t, db, u.ID, "Chili", []model.Label{*tag}, nil)

	if err := db.DeleteLabel(context.Background(), model.KindTag, u.ID, tag.ID); err != nil {
		t.Fatalf("DeleteLabel() error = %v", err)
	}

	got, err := db.GetRecipe(context.Background(), u.ID, r.ID)
	if err != nil {
		t.Fatalf("GetRecipe() error = %v", err)
	}
	if len(got.Tags) != 0 {
		t.Errorf("recipe still has tags after delete: %+v", got.Tags)
	}
}

func TestUnknownLabelKind(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.ListLabels(context.Background(), model.LabelKind("flavour"), repository.LabelFilter{UserID: "u"}); err == nil {
		t.Error("ListLabels() with unknown kind should fail")
	}
}
