package transport

import (
	"net/http"

	"classifieds/internal/domain"
	"classifieds/internal/middleware"
	"classifieds/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryDetailResponse is a category with one page of its listings
type CategoryDetailResponse struct {
	Category *domain.Category                   `json:"category"`
	Listings domain.Page[*domain.ListingSummary] `json:"listings"`
}

// CategoryHandler handles HTTP requests for category operations
type CategoryHandler struct {
	categoryService service.CategoryService
	listingService  service.ListingService
	logger          *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService service.CategoryService, listingService service.ListingService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		listingService:  listingService,
		logger:          logger,
	}
}

// RegisterRoutes registers all category routes. Mutations go through
// requireAuth followed by the admin guard.
func (h *CategoryHandler) RegisterRoutes(r chi.Router, optionalAuth, requireAuth func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", h.List)
			r.Get("/stats", h.Stats)
			r.Get("/search", h.Search)
			r.Get("/popular", h.Popular)
			r.Get("/{id}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireAdmin(h.logger))
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.List(r.Context())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"items": categories})
}

// Get handles GET /api/categories/{id}. The listing filters of the search
// endpoint apply, scoped to the category.
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
		return
	}

	category, err := h.categoryService.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	criteria := listingCriteria(r, domain.GridPageSize).WithCategory(category.ID)
	listings, err := h.listingService.Search(r.Context(), middleware.ActorFromContext(r.Context()), criteria)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CategoryDetailResponse{Category: category, Listings: listings})
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CategoryInput
	if err := middleware.DecodeJSON(w, r, &input); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	category, err := h.categoryService.Create(r.Context(), middleware.ActorFromContext(r.Context()), input)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID.String()), zap.String("name", category.Name))
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// Update handles PUT /api/categories/{id}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
		return
	}

	var input service.CategoryInput
	if err := middleware.DecodeJSON(w, r, &input); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	category, err := h.categoryService.Update(r.Context(), middleware.ActorFromContext(r.Context()), id, input)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, category)
}

// Delete handles DELETE /api/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
		return
	}

	if err := h.categoryService.Delete(r.Context(), middleware.ActorFromContext(r.Context()), id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/categories/stats
func (h *CategoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.categoryService.Stats(r.Context())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// Search handles GET /api/categories/search?q=
func (h *CategoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"items": categories})
}

// Popular handles GET /api/categories/popular
func (h *CategoryHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r.URL.Query(), "limit", domain.TopCategoriesLimit), 20)

	categories, err := h.categoryService.MostPopular(r.Context(), limit)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"items": categories})
}
