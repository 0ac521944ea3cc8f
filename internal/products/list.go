package product

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/cache"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// ListProductsInput captures the filter, sort and page knobs of the browse
// endpoint. A nil Active means active products only.
type ListProductsInput struct {
	CategoryID *uuid.UUID
	Query      string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Active     *bool
	Sort       enums.ProductSort
	Direction  enums.SortDirection
	Pagination pagination.Params
}

func (in ListProductsInput) normalized() ListProductsInput {
	out := in
	out.Pagination = in.Pagination.Normalize()
	out.Query = cache.NormalizeQuery(in.Query)
	if !out.Sort.IsValid() {
		out.Sort = enums.ProductSortCreatedAt
	}
	if out.Direction != enums.SortAsc {
		out.Direction = enums.SortDesc
	}
	if out.Active == nil {
		active := true
		out.Active = &active
	}
	return out
}

func (in ListProductsInput) cacheKey() cache.Key {
	n := in.normalized()
	return cache.ProductListKey(cache.ProductListParams{
		Page:       n.Pagination.Page,
		Limit:      n.Pagination.Limit,
		CategoryID: n.CategoryID,
		Query:      n.Query,
		MinPrice:   n.MinPrice,
		MaxPrice:   n.MaxPrice,
		Active:     n.Active,
		Sort:       string(n.Sort),
		Direction:  string(n.Direction),
	})
}

// ProductListResult is one page of product summaries.
type ProductListResult = pagination.Page[ProductDTO]
