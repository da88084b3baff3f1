package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
	"github.com/sakif/recipe-api/internal/service"
)

// RecipeHandler serves /api/recipe/recipes/.
//
// TWO RESPONSE SHAPES:
// List, create and update answer with tags and ingredients as id lists
// (recipeResponse). Retrieve embeds {id, name} objects instead
// (recipeDetailResponse) so a client can render one recipe in one call.
type RecipeHandler struct {
	svc            *service.RecipeService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewRecipeHandler(svc *service.RecipeService, maxUploadBytes int64, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

type recipeResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	TimeMinutes   int      `json:"time_minutes"`
	Price         string   `json:"price"`
	Link          string   `json:"link"`
	Image         string   `json:"image"`
	ImageBlurHash string   `json:"image_blurhash"`
	Tags          []string `json:"tags"`
	Ingredients   []string `json:"ingredients"`
}

type recipeDetailResponse struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	TimeMinutes   int           `json:"time_minutes"`
	Price         string        `json:"price"`
	Link          string        `json:"link"`
	Image         string        `json:"image"`
	ImageBlurHash string        `json:"image_blurhash"`
	Tags          []model.Label `json:"tags"`
	Ingredients   []model.Label `json:"ingredients"`
}

type recipeImageResponse struct {
	ID            string `json:"id"`
	Image         string `json:"image"`
	ImageBlurHash string `json:"image_blurhash"`
}

func (h *RecipeHandler) toResponse(r *model.Recipe) recipeResponse {
	return recipeResponse{
		ID:            r.ID,
		Name:          r.Name,
		TimeMinutes:   r.TimeMinutes,
		Price:         r.Price.String(),
		Link:          r.Link,
		Image:         h.svc.ImageURL(r.Image),
		ImageBlurHash: r.ImageBlurHash,
		Tags:          r.TagIDs(),
		Ingredients:   r.IngredientIDs(),
	}
}

func (h *RecipeHandler) toDetail(r *model.Recipe) recipeDetailResponse {
	tags, ingredients := r.Tags, r.Ingredients
	if tags == nil {
		tags = []model.Label{}
	}
	if ingredients == nil {
		ingredients = []model.Label{}
	}
	return recipeDetailResponse{
		ID:            r.ID,
		Name:          r.Name,
		TimeMinutes:   r.TimeMinutes,
		Price:         r.Price.String(),
		Link:          r.Link,
		Image:         h.svc.ImageURL(r.Image),
		ImageBlurHash: r.ImageBlurHash,
		Tags:          tags,
		Ingredients:   ingredients,
	}
}

// HandleList returns the caller's recipes, newest first.
//
// HTTP: GET /api/recipe/recipes/?tags=id1,id2&ingredients=id3
func (h *RecipeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recipes, err := h.svc.List(r.Context(), callerID(r), splitIDs(q.Get("tags")), splitIDs(q.Get("ingredients")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]recipeResponse, 0, len(recipes))
	for i := range recipes {
		out = append(out, h.toResponse(&recipes[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreate adds a recipe owned by the caller.
//
// HTTP: POST /api/recipe/recipes/
// REQUEST BODY: {"name": "...", "time_minutes": 10, "price": "5.00",
// "link": "...", "tags": ["id"], "ingredients": ["id"]}
func (h *RecipeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.Create(r.Context(), callerID(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(recipe))
}

// HandleGet returns one recipe with nested tags and ingredients.
func (h *RecipeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.svc.Get(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toDetail(recipe))
}

// HandleUpdate is PUT: every writable field is replaced.
func (h *RecipeHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.RecipeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.Update(r.Context(), callerID(r), pathID(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(recipe))
}

// HandlePatch is PATCH: only the fields in the body change.
func (h *RecipeHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	var in service.RecipePatch
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	recipe, err := h.svc.Patch(r.Context(), callerID(r), pathID(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(recipe))
}

func (h *RecipeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), pathID(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadImage stores the multipart "image" field as the recipe's picture.
//
// HTTP: POST /api/recipe/recipes/{id}/upload-image/
// RESPONSE: 200 {"id": "...", "image": "<url>", "image_blurhash": "..."}
//
// The whole body is capped with http.MaxBytesReader before parsing, so an
// oversized upload is cut off instead of buffered.
func (h *RecipeHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	// Multipart framing adds a little on top of the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64<<10)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, h.logger, apperror.ValidationFailed("image",
				fmt.Sprintf("Ensure the file is no larger than %d bytes.", h.maxUploadBytes)))
			return
		}
		writeError(w, r, h.logger, apperror.ValidationFailed("image", "No file was submitted."))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, h.logger, apperror.ValidationFailed("image", "No file was submitted."))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		writeError(w, r, h.logger, apperror.ValidationFailed("image",
			fmt.Sprintf("Ensure the file is no larger than %d bytes.", h.maxUploadBytes)))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("reading upload: %w", err))
		return
	}
	if len(data) == 0 {
		writeError(w, r, h.logger, apperror.ValidationFailed("image", "The submitted file is empty."))
		return
	}

	recipe, err := h.svc.UploadImage(r.Context(), callerID(r), pathID(r), header.Filename, data)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, recipeImageResponse{
		ID:            recipe.ID,
		Image:         h.svc.ImageURL(recipe.Image),
		ImageBlurHash: recipe.ImageBlurHash,
	})
}
