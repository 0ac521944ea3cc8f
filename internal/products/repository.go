package product

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Repository wires together product persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product with its category and inventory.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Inventory").
		First(&product, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "Inventory").Create(product).Error
}

// UpdateProduct writes every column of an existing product row.
func (r *Repository) UpdateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category", "Inventory").Save(product).Error
}

// DeleteProduct removes a product; inventory cascades.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	return res.RowsAffected, res.Error
}

func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListProducts applies filters, sorting and paging and returns the page plus
// the unpaged total.
func (r *Repository) ListProducts(ctx context.Context, in ListProductsInput) ([]models.Product, int64, error) {
	in = in.normalized()
	base := r.filtered(ctx, in)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := base.Session(&gorm.Session{}).
		Preload("Category").
		Preload("Inventory").
		Order(orderClause(in.Sort, in.Direction)).
		Limit(in.Pagination.Limit).
		Offset(in.Pagination.Offset()).
		Find(&rows).
		Error
	return rows, total, err
}

// Search matches q against name and description of active products.
func (r *Repository) Search(ctx context.Context, q string, params pagination.Params) ([]models.Product, int64, error) {
	active := true
	return r.ListProducts(ctx, ListProductsInput{Query: q, Active: &active, Pagination: params, Sort: enums.ProductSortName, Direction: enums.SortAsc})
}

func (r *Repository) filtered(ctx context.Context, in ListProductsInput) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if in.CategoryID != nil {
		q = q.Where("products.category_id = ?", *in.CategoryID)
	}
	if term := strings.TrimSpace(in.Query); term != "" {
		like := "%" + escapeLike(strings.ToLower(term)) + "%"
		q = q.Where("(LOWER(products.name) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(products.description, '')) LIKE ? ESCAPE '\\')", like, like)
	}
	if in.MinPrice != nil {
		q = q.Where("products.price >= ?", *in.MinPrice)
	}
	if in.MaxPrice != nil {
		q = q.Where("products.price <= ?", *in.MaxPrice)
	}
	if in.Active != nil {
		q = q.Where("products.is_active = ?", *in.Active)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderClause only ever interpolates enum values, never user input. The id
// tiebreak keeps pages stable.
func orderClause(sort enums.ProductSort, dir enums.SortDirection) string {
	column := "products.created_at"
	switch sort {
	case enums.ProductSortPrice:
		column = "products.price"
	case enums.ProductSortName:
		column = "products.name"
	}
	direction := "DESC"
	if dir == enums.SortAsc {
		direction = "ASC"
	}
	return column + " " + direction + ", products.id " + direction
}
