package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/repository"
	"github.com/sakif/recipe-api/internal/validation"
)

// LabelInput is the body of every tag and ingredient write. PUT and PATCH
// both carry only name, so there is one shape for both.
type LabelInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

// LabelService manages one kind of label (tags or ingredients). The server
// builds one instance per kind over the same repository.
type LabelService struct {
	repo      repository.LabelRepository
	kind      model.LabelKind
	validator *validation.Validator
	logger    *slog.Logger
}

func NewLabelService(
	repo repository.LabelRepository,
	kind model.LabelKind,
	validator *validation.Validator,
	logger *slog.Logger,
) *LabelService {
	return &LabelService{
		repo:      repo,
		kind:      kind,
		validator: validator,
		logger:    logger,
	}
}

// Kind is the label kind this service manages.
func (s *LabelService) Kind() model.LabelKind { return s.kind }

// List returns the caller's labels ordered by name, descending. With
// assignedOnly, only labels attached to at least one recipe are returned,
// each once.
func (s *LabelService) List(ctx context.Context, userID string, assignedOnly bool) ([]model.Label, error) {
	labels, err := s.repo.ListLabels(ctx, s.kind, repository.LabelFilter{
		UserID:       userID,
		AssignedOnly: assignedOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", s.kind, err)
	}
	return labels, nil
}

func (s *LabelService) Create(ctx context.Context, userID string, in LabelInput) (*model.Label, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	label := &model.Label{UserID: userID, Name: in.Name}
	if err := s.repo.CreateLabel(ctx, s.kind, label); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.duplicateName()
		}
		return nil, fmt.Errorf("creating %s: %w", s.kind, err)
	}

	s.logger.Info(s.kind.String()+" created",
		slog.String("id", label.ID),
		slog.String("userID", userID),
	)
	return label, nil
}

func (s *LabelService) Get(ctx context.Context, userID, id string) (*model.Label, error) {
	return s.repo.GetLabel(ctx, s.kind, userID, id)
}

// Update renames a label. A label owned by someone else is not found.
func (s *LabelService) Update(ctx context.Context, userID, id string, in LabelInput) (*model.Label, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	label, err := s.repo.GetLabel(ctx, s.kind, userID, id)
	if err != nil {
		return nil, err
	}
	label.Name = in.Name

	if err := s.repo.UpdateLabel(ctx, s.kind, label); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, s.duplicateName()
		}
		return nil, fmt.Errorf("updating %s %s: %w", s.kind, id, err)
	}

	s.logger.Info(s.kind.String()+" updated", slog.String("id", id))
	return label, nil
}

// Delete removes the label and detaches it from every recipe.
func (s *LabelService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteLabel(ctx, s.kind, userID, id); err != nil {
		return err
	}
	s.logger.Info(s.kind.String()+" deleted", slog.String("id", id))
	return nil
}

func (s *LabelService) duplicateName() error {
	return apperror.ValidationFailed("name", fmt.Sprintf("%s with this name already exists.", s.kind))
}
