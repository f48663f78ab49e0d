package repository

import (
	"fmt"
	"math"
	"strings"

	"classifieds/internal/domain"
)

const maxPageSize = 100

// ListingQuery is the compiled form of a ListingCriteria. Where and OrderBy
// reference the listings table as "l"; Args are positional ($1..$n) and do
// not include the limit and offset.
type ListingQuery struct {
	Where   string
	Args    []interface{}
	OrderBy string
	Limit   int
	Offset  int
	Page    int
}

var listingOrders = map[domain.ListingSort]string{
	domain.SortRecent:    "l.created_at DESC, l.id DESC",
	domain.SortOldest:    "l.created_at ASC, l.id ASC",
	domain.SortPriceAsc:  "COALESCE(l.price, 0) ASC, l.created_at DESC, l.id DESC",
	domain.SortPriceDesc: "COALESCE(l.price, 0) DESC, l.created_at DESC, l.id DESC",
	domain.SortTitle:     "l.title ASC, l.id ASC",
	domain.SortPopular:   "favorites_count DESC, l.created_at DESC, l.id DESC",
}

// CompileListingQuery turns criteria into a single conjunctive WHERE clause.
// Every criteria field contributes at most one predicate.
func CompileListingQuery(c domain.ListingCriteria) ListingQuery {
	var (
		conds []string
		args  []interface{}
	)
	add := func(format string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if term := strings.TrimSpace(c.Search); term != "" {
		pattern := containsPattern(term)
		args = append(args, pattern)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(l.title ILIKE $%d OR l.description ILIKE $%d)", n, n))
	}
	if c.CategoryID != nil {
		add("l.category_id = $%d", *c.CategoryID)
	}
	if c.OwnerID != nil {
		add("l.owner_id = $%d", *c.OwnerID)
	}
	if c.ExcludeID != nil {
		add("l.id <> $%d", *c.ExcludeID)
	}
	if loc := strings.TrimSpace(c.Location); loc != "" {
		add("l.location ILIKE $%d", containsPattern(loc))
	}
	if c.PriceMin != nil {
		add("l.price >= $%d", *c.PriceMin)
	}
	if c.PriceMax != nil {
		add("l.price <= $%d", *c.PriceMax)
	}
	if c.CreatedAfter != nil {
		add("l.created_at >= $%d", *c.CreatedAfter)
	}
	if len(c.Statuses) > 0 {
		statuses := make([]string, len(c.Statuses))
		for i, s := range c.Statuses {
			statuses[i] = string(s)
		}
		add("l.status = ANY($%d)", statuses)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	order, ok := listingOrders[c.Sort]
	if !ok {
		order = listingOrders[domain.SortRecent]
	}

	page, pageSize := normalizePage(c.Page, c.PageSize, domain.GridPageSize)

	return ListingQuery{
		Where:   where,
		Args:    args,
		OrderBy: order,
		Limit:   pageSize,
		Offset:  (page - 1) * pageSize,
		Page:    page,
	}
}

// normalizePage clamps pageSize to (0, maxPageSize] and page to
// [1, math.MaxInt32/pageSize], keeping the offset a valid non-negative int4.
func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	if maxPage := math.MaxInt32 / pageSize; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term as a literal substring
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
