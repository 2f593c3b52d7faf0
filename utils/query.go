package utils

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// SortColumns whitelists the sort keys of the product list and maps them to
// columns.
var SortColumns = map[string]string{
	"price":      "price",
	"rating":     "rating",
	"created_at": "created_at",
	"views":      "view_count",
}

const (
	DefaultLimit    = 20
	MaxLimit        = 100
	MaxPage         = 10000
	maxSearchLength = 200
)

// ProductQuery is a validated product list query.
type ProductQuery struct {
	CategoryID *uint
	MinPrice   *float64
	MaxPrice   *float64
	IsFeatured *bool
	Search     string
	Sort       string
	Order      string
	Page       int
	Limit      int
}

// SortColumn returns the whitelisted column for q.Sort.
func (q ProductQuery) SortColumn() string {
	return SortColumns[q.Sort]
}

// Offset is the number of rows skipped for q.Page.
func (q ProductQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ParseProductQuery validates the product list query string. Every invalid
// parameter contributes one message to errs.
func ParseProductQuery(values url.Values) (ProductQuery, []string) {
	q := ProductQuery{Sort: "created_at", Order: "asc", Page: 1, Limit: DefaultLimit}
	var errs []string

	if v := strings.ToLower(strings.TrimSpace(values.Get("sort"))); v != "" {
		if _, ok := SortColumns[v]; ok {
			q.Sort = v
		} else {
			errs = append(errs, "sort must be one of: created_at, price, rating, views")
		}
	}

	if v := strings.ToLower(strings.TrimSpace(values.Get("order"))); v != "" {
		if v == "asc" || v == "desc" {
			q.Order = v
		} else {
			errs = append(errs, "order must be one of: asc, desc")
		}
	}

	if v := values.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs = append(errs, "page must be a number")
		case page < 1 || page > MaxPage:
			errs = append(errs, "page must be between 1 and 10000")
		default:
			q.Page = page
		}
	}

	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs = append(errs, "limit must be a number")
		case limit < 1 || limit > MaxLimit:
			errs = append(errs, "limit must be between 1 and 100")
		default:
			q.Limit = limit
		}
	}

	if v := values.Get("search"); v != "" {
		if len(v) > maxSearchLength {
			errs = append(errs, "search must be at most 200 characters")
		} else {
			q.Search = stripControl(v)
		}
	}

	if values.Has("category_id") {
		id, err := strconv.ParseUint(values.Get("category_id"), 10, 64)
		if err != nil || id < 1 {
			errs = append(errs, "category_id must be a positive integer")
		} else {
			cid := uint(id)
			q.CategoryID = &cid
		}
	}

	if values.Has("min_price") {
		p, err := strconv.ParseFloat(values.Get("min_price"), 64)
		if err != nil || !validPrice(p) {
			errs = append(errs, "min_price must be a number >= 0")
		} else {
			q.MinPrice = &p
		}
	}

	if values.Has("max_price") {
		p, err := strconv.ParseFloat(values.Get("max_price"), 64)
		if err != nil || !validPrice(p) {
			errs = append(errs, "max_price must be a number >= 0")
		} else {
			q.MaxPrice = &p
		}
	}

	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		errs = append(errs, "min_price cannot be greater than max_price")
	}

	if values.Has("is_featured") {
		switch values.Get("is_featured") {
		case "true":
			featured := true
			q.IsFeatured = &featured
		case "false":
			featured := false
			q.IsFeatured = &featured
		default:
			errs = append(errs, "is_featured must be true or false")
		}
	}

	return q, errs
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
}

func validPrice(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
