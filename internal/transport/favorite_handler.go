package transport

import (
	"context"
	"errors"
	"net/http"

	"classifieds/internal/apperror"
	"classifieds/internal/domain"
	"classifieds/internal/middleware"
	"classifieds/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FavoriteResponse is the body returned by favorite mutations and checks
type FavoriteResponse struct {
	Success        bool                  `json:"success"`
	Message        string                `json:"message,omitempty"`
	Action         domain.FavoriteAction `json:"action,omitempty"`
	IsFavorite     bool                  `json:"is_favorite"`
	FavoritesCount int                   `json:"favorites_count"`
}

// FavoriteHandler handles HTTP requests for favorite operations
type FavoriteHandler struct {
	favoriteService service.FavoriteService
	logger          *zap.Logger
}

// NewFavoriteHandler creates a new FavoriteHandler
func NewFavoriteHandler(favoriteService service.FavoriteService, logger *zap.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		favoriteService: favoriteService,
		logger:          logger,
	}
}

// RegisterRoutes registers all favorite routes. Mutations are additionally
// wrapped by limit, which may be nil when rate limiting is disabled.
func (h *FavoriteHandler) RegisterRoutes(r chi.Router, optionalAuth, requireAuth, limit func(http.Handler) http.Handler) {
	r.Route("/api/favorites", func(r chi.Router) {
		r.With(optionalAuth).Get("/{listingID}/check", h.Check)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", h.List)
			r.Get("/stats", h.Stats)

			r.Group(func(r chi.Router) {
				if limit != nil {
					r.Use(limit)
				}
				r.Post("/{listingID}", h.Add)
				r.Delete("/{listingID}", h.Remove)
				r.Post("/{listingID}/toggle", h.Toggle)
			})
		})
	})
}

type favoriteMutation func(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (*domain.FavoriteResult, error)

// favoriteAttempt names the action a mutation was trying to perform, for
// failure responses
type favoriteAttempt func(ctx context.Context, actor domain.Actor, listingID uuid.UUID) domain.FavoriteAction

func attempting(action domain.FavoriteAction) favoriteAttempt {
	return func(context.Context, domain.Actor, uuid.UUID) domain.FavoriteAction { return action }
}

// toggleAttempt derives the intended transition from the current state. A
// listing whose state cannot be read is reported as an attempted add.
func (h *FavoriteHandler) toggleAttempt(ctx context.Context, actor domain.Actor, listingID uuid.UUID) domain.FavoriteAction {
	current, err := h.favoriteService.Check(ctx, actor, listingID)
	if err == nil && current.Favorited {
		return domain.FavoriteRemoved
	}
	return domain.FavoriteAdded
}

func (h *FavoriteHandler) mutate(w http.ResponseWriter, r *http.Request, op favoriteMutation, attempt favoriteAttempt) {
	actor := middleware.ActorFromContext(r.Context())
	id, ok := pathUUID(r, "listingID")
	if !ok {
		h.respondFailure(w, r, attempt(r.Context(), actor, uuid.Nil), apperror.NotFound("listing", chi.URLParam(r, "listingID")))
		return
	}

	result, err := op(r.Context(), actor, id)
	if err != nil {
		// a failed mutation leaves the state unchanged
		h.respondFailure(w, r, attempt(r.Context(), actor, id), err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, FavoriteResponse{
		Success:        true,
		Message:        favoriteMessage(result),
		Action:         result.Action,
		IsFavorite:     result.Favorited,
		FavoritesCount: result.Count,
	})
}

// respondFailure reports a failed mutation in the same shape as a successful
// one, with Success unset and the attempted action
func (h *FavoriteHandler) respondFailure(w http.ResponseWriter, r *http.Request, action domain.FavoriteAction, err error) {
	status := middleware.StatusFor(err)

	message := err.Error()
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Favorite update failed",
			zap.Error(err),
			zap.String("action", string(action)),
			zap.String("path", r.URL.Path),
		)
		message = "could not update favorites"
	}

	middleware.RespondWithJSON(w, status, FavoriteResponse{
		Success: false,
		Message: message,
		Action:  action,
	})
}

// Add handles POST /api/favorites/{listingID}
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.favoriteService.Add, attempting(domain.FavoriteAdded))
}

// Remove handles DELETE /api/favorites/{listingID}
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.favoriteService.Remove, attempting(domain.FavoriteRemoved))
}

// Toggle handles POST /api/favorites/{listingID}/toggle
func (h *FavoriteHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.favoriteService.Toggle, h.toggleAttempt)
}

// Check handles GET /api/favorites/{listingID}/check
func (h *FavoriteHandler) Check(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "listingID")
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
		return
	}

	result, err := h.favoriteService.Check(r.Context(), middleware.ActorFromContext(r.Context()), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, FavoriteResponse{
		Success:        true,
		IsFavorite:     result.Favorited,
		FavoritesCount: result.Count,
	})
}

// List handles GET /api/favorites
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r.URL.Query(), "page", 1)

	result, err := h.favoriteService.ListForUser(r.Context(), middleware.ActorFromContext(r.Context()), page)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Stats handles GET /api/favorites/stats
func (h *FavoriteHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.favoriteService.Stats(r.Context(), middleware.ActorFromContext(r.Context()))
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

func favoriteMessage(result *domain.FavoriteResult) string {
	switch {
	case result.Action == domain.FavoriteAdded && result.Changed:
		return "listing added to favorites"
	case result.Action == domain.FavoriteAdded:
		return "listing is already in your favorites"
	case result.Action == domain.FavoriteRemoved && result.Changed:
		return "listing removed from favorites"
	default:
		return "listing was not in your favorites"
	}
}
