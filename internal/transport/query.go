package transport

import (
	"math"
	"net/http"
	"net/url"
	"strings"

	"classifieds/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// queryFloat returns nil for blank, non-numeric or non-finite values
func queryFloat(q url.Values, key string) *float64 {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// queryInt falls back to def for blank or non-numeric values
func queryInt(q url.Values, key string, def int) int {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return def
	}
	return v
}

func queryUUID(q url.Values, key string) *uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return nil
	}
	return &id
}

// listingCriteria coerces the listing filter parameters of a request.
// Malformed values drop their filter instead of failing the request.
func listingCriteria(r *http.Request, pageSize int) domain.ListingCriteria {
	q := r.URL.Query()

	search := q.Get("search")
	if search == "" {
		search = q.Get("q")
	}

	return domain.ListingCriteria{
		Search:     search,
		CategoryID: queryUUID(q, "category_id"),
		Location:   q.Get("location"),
		PriceMin:   queryFloat(q, "price_min"),
		PriceMax:   queryFloat(q, "price_max"),
		Sort:       domain.ParseListingSort(q.Get("sort")),
		Page:       queryInt(q, "page", 1),
		PageSize:   pageSize,
	}
}

// pathUUID parses a chi URL parameter. ok is false when it is not a uuid.
func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
