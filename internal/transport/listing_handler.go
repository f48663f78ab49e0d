package transport

import (
	"mime/multipart"
	"net/http"
	"strings"

	"classifieds/internal/apperror"
	"classifieds/internal/domain"
	"classifieds/internal/middleware"
	"classifieds/internal/service"
	"classifieds/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const maxMultipartMemory = storage.MaxImageSize + middleware.MaxJSONBodySize

// ListingHandler handles HTTP requests for listing operations
type ListingHandler struct {
	listingService service.ListingService
	logger         *zap.Logger
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(listingService service.ListingService, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		logger:         logger,
	}
}

// RegisterRoutes registers all listing routes. optionalAuth attaches the actor
// when present, requireAuth rejects anonymous callers.
func (h *ListingHandler) RegisterRoutes(r chi.Router, optionalAuth, requireAuth func(http.Handler) http.Handler) {
	r.Route("/api/listings", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", h.Search)
			r.Get("/suggestions", h.Suggestions)
			r.Get("/popular", h.Popular)
			r.Get("/recent", h.Recent)
			r.Get("/featured", h.Featured)
			r.Get("/{id}", h.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})

	r.With(requireAuth).Get("/api/me/listings", h.ListMine)
	r.Get("/api/stats", h.Stats)
}

// Search handles GET /api/listings
func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request) {
	criteria := listingCriteria(r, domain.GridPageSize)

	page, err := h.listingService.Search(r.Context(), middleware.ActorFromContext(r.Context()), criteria)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, page)
}

// Get handles GET /api/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
		return
	}

	detail, err := h.listingService.Get(r.Context(), middleware.ActorFromContext(r.Context()), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// Create handles POST /api/listings with either a JSON or a multipart body
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, image, err := h.decodeListing(w, r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	if image != nil {
		defer image.close()
	}

	listing, err := h.listingService.Create(r.Context(), middleware.ActorFromContext(r.Context()), input, image.upload())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Listing created", zap.String("listing_id", listing.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, listing)
}

// Update handles PUT /api/listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
		return
	}

	input, image, err := h.decodeListing(w, r)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	if image != nil {
		defer image.close()
	}

	listing, err := h.listingService.Update(r.Context(), middleware.ActorFromContext(r.Context()), id, input, image.upload())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, listing)
}

// Delete handles DELETE /api/listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
		return
	}

	if err := h.listingService.Delete(r.Context(), middleware.ActorFromContext(r.Context()), id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMine handles GET /api/me/listings
func (h *ListingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r.URL.Query(), "page", 1)

	result, err := h.listingService.ListForOwner(r.Context(), middleware.ActorFromContext(r.Context()), page)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Suggestions handles GET /api/listings/suggestions?q=
func (h *ListingHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	titles, err := h.listingService.Suggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"suggestions": titles})
}

// Popular handles GET /api/listings/popular
func (h *ListingHandler) Popular(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r.URL.Query(), "limit", domain.PopularLimit), domain.PopularLimit)
	h.respondList(w, r, func(actor domain.Actor) ([]*domain.ListingSummary, error) {
		return h.listingService.Popular(r.Context(), actor, limit)
	})
}

// Recent handles GET /api/listings/recent
func (h *ListingHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := clampLimit(queryInt(r.URL.Query(), "limit", domain.PopularLimit), domain.PopularLimit)
	h.respondList(w, r, func(actor domain.Actor) ([]*domain.ListingSummary, error) {
		return h.listingService.Recent(r.Context(), actor, limit)
	})
}

// Featured handles GET /api/listings/featured
func (h *ListingHandler) Featured(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, func(actor domain.Actor) ([]*domain.ListingSummary, error) {
		return h.listingService.Featured(r.Context(), actor)
	})
}

// Stats handles GET /api/stats
func (h *ListingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.listingService.PlatformStats(r.Context())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *ListingHandler) respondList(w http.ResponseWriter, r *http.Request, fetch func(domain.Actor) ([]*domain.ListingSummary, error)) {
	items, err := fetch(middleware.ActorFromContext(r.Context()))
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []*domain.ListingSummary{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func clampLimit(limit, max int) int {
	if limit < 1 || limit > max {
		return max
	}
	return limit
}

// uploadedImage wraps the multipart file of a listing form
type uploadedImage struct {
	file   multipart.File
	header *multipart.FileHeader
}

func (u *uploadedImage) upload() *service.ImageUpload {
	if u == nil {
		return nil
	}
	return &service.ImageUpload{Filename: u.header.Filename, Content: u.file}
}

func (u *uploadedImage) close() {
	u.file.Close()
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// decodeListing reads listing fields from a JSON body or from a multipart
// form carrying an optional "image" file
func (h *ListingHandler) decodeListing(w http.ResponseWriter, r *http.Request) (service.ListingInput, *uploadedImage, error) {
	var input service.ListingInput

	if !isMultipart(r) {
		if err := middleware.DecodeJSON(w, r, &input); err != nil {
			return input, nil, err
		}
		return input, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return input, nil, apperror.ValidationFailed("body", "request body is not a valid form or is too large")
	}

	input.Title = r.FormValue("title")
	input.Description = r.FormValue("description")
	input.Status = domain.ListingStatus(r.FormValue("status"))

	if raw := strings.TrimSpace(r.FormValue("category_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return input, nil, apperror.ValidationFailed("category_id", "the selected category is invalid")
		}
		input.CategoryID = id
	}

	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := cast.ToFloat64E(raw)
		if err != nil {
			return input, nil, apperror.ValidationFailed("price", "the price must be a number")
		}
		input.Price = &price
	}

	if loc := r.FormValue("location"); loc != "" {
		input.Location = &loc
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return input, nil, nil
	}
	if err != nil {
		return input, nil, apperror.ValidationFailed("image", "the image could not be read")
	}

	return input, &uploadedImage{file: file, header: header}, nil
}
