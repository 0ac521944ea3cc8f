package cache

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Family is a key prefix grouping every entry that can be dropped together.
type Family string

const (
	FamilyProduct          Family = "product"
	FamilyCategory         Family = "category"
	FamilyCategoriesList   Family = "categories:list"
	FamilyProductsList     Family = "products:list"
	FamilyProductsSearch   Family = "products:search"
	FamilyProductsCategory Family = "products:category"
	FamilyInventory        Family = "inventory"
	FamilyOrder            Family = "order"
	FamilyOrdersAdmin      Family = "orders:admin"

	ordersUserPrefix = "orders:user"
)

// OrdersUserFamily scopes order-list pages to one user.
func OrdersUserFamily(userID uuid.UUID) Family {
	return Family(ordersUserPrefix + ":" + userID.String())
}

// Label is the low-cardinality name used in metrics and logs.
func (f Family) Label() string {
	if strings.HasPrefix(string(f), ordersUserPrefix+":") {
		return ordersUserPrefix
	}
	return string(f)
}

// Param is one name=value component of a key.
type Param struct {
	Name  string
	Value string
}

func P(name, value string) Param {
	return Param{Name: name, Value: value}
}

// Key is a family plus an ordered parameter tuple.
type Key struct {
	Family Family
	Params []Param
}

func NewKey(family Family, params ...Param) Key {
	return Key{Family: family, Params: params}
}

// String renders family:name=value:... with values escaped so a ':' or glob
// character in user input cannot change the key shape.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Family))
	for _, p := range k.Params {
		b.WriteByte(':')
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(escapeValue(p.Value))
	}
	return b.String()
}

var valueEscaper = strings.NewReplacer(
	`%`, `%25`,
	`:`, `%3A`,
	`*`, `%2A`,
	`?`, `%3F`,
	`[`, `%5B`,
	`]`, `%5D`,
	`\`, `%5C`,
	` `, `%20`,
	`/`, `%2F`,
)

func escapeValue(v string) string {
	return valueEscaper.Replace(v)
}

func ProductKey(id uuid.UUID) Key {
	return NewKey(FamilyProduct, P("id", id.String()))
}

func CategoryKey(id uuid.UUID) Key {
	return NewKey(FamilyCategory, P("id", id.String()))
}

func CategoriesListKey() Key {
	return NewKey(FamilyCategoriesList, P("scope", "all"))
}

func InventoryKey(productID uuid.UUID) Key {
	return NewKey(FamilyInventory, P("product", productID.String()))
}

func OrderKey(id uuid.UUID) Key {
	return NewKey(FamilyOrder, P("id", id.String()))
}

// ProductListParams are the significant inputs of a product list query.
// Nil and zero fields are defaulted before they reach the key.
type ProductListParams struct {
	Page       int
	Limit      int
	CategoryID *uuid.UUID
	Query      string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Active     *bool
	Sort       string
	Direction  string
}

func ProductListKey(p ProductListParams) Key {
	page := pagination.Params{Page: p.Page, Limit: p.Limit}.Normalize()
	category := "all"
	if p.CategoryID != nil {
		category = p.CategoryID.String()
	}
	active := "true"
	if p.Active != nil {
		active = strconv.FormatBool(*p.Active)
	}
	sort := strings.ToLower(strings.TrimSpace(p.Sort))
	if sort == "" {
		sort = "created_at"
	}
	dir := strings.ToLower(strings.TrimSpace(p.Direction))
	if dir == "" {
		dir = "desc"
	}
	return NewKey(FamilyProductsList,
		P("page", strconv.Itoa(page.Page)),
		P("limit", strconv.Itoa(page.Limit)),
		P("category", category),
		P("q", NormalizeQuery(p.Query)),
		P("min", priceBound(p.MinPrice)),
		P("max", priceBound(p.MaxPrice)),
		P("active", active),
		P("sort", sort),
		P("dir", dir),
	)
}

func ProductSearchKey(query string, page, limit int) Key {
	n := pagination.Params{Page: page, Limit: limit}.Normalize()
	return NewKey(FamilyProductsSearch,
		P("q", NormalizeQuery(query)),
		P("page", strconv.Itoa(n.Page)),
		P("limit", strconv.Itoa(n.Limit)),
	)
}

func CategoryProductsKey(categoryID uuid.UUID, page, limit int) Key {
	n := pagination.Params{Page: page, Limit: limit}.Normalize()
	return NewKey(FamilyProductsCategory,
		P("category", categoryID.String()),
		P("page", strconv.Itoa(n.Page)),
		P("limit", strconv.Itoa(n.Limit)),
	)
}

func UserOrdersKey(userID uuid.UUID, page, limit int) Key {
	n := pagination.Params{Page: page, Limit: limit}.Normalize()
	return NewKey(OrdersUserFamily(userID),
		P("page", strconv.Itoa(n.Page)),
		P("limit", strconv.Itoa(n.Limit)),
	)
}

// AdminOrdersKey uses status "all" when no filter is set.
func AdminOrdersKey(status string, page, limit int) Key {
	n := pagination.Params{Page: page, Limit: limit}.Normalize()
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == "" {
		status = "all"
	}
	return NewKey(FamilyOrdersAdmin,
		P("status", status),
		P("page", strconv.Itoa(n.Page)),
		P("limit", strconv.Itoa(n.Limit)),
	)
}

// NormalizeQuery lowercases q and collapses runs of whitespace. Callers must
// filter with the same normalized text they key on.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func priceBound(v *decimal.Decimal) string {
	if v == nil {
		return "any"
	}
	return v.StringFixed(2)
}
