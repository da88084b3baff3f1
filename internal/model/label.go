package model

import "time"

// LabelKind tells tags and ingredients apart. Both have the same shape:
// an owner, a name and a many-to-many link to recipes.
type LabelKind string

const (
	KindTag        LabelKind = "tag"
	KindIngredient LabelKind = "ingredient"
)

func (k LabelKind) String() string { return string(k) }

// Label is a tag or an ingredient owned by one user.
type Label struct {
	ID        string    `json:"id"   db:"id"`
	UserID    string    `json:"-"    db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"-"    db:"created_at"`
}
