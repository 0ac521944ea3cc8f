package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository owns every write to inventories. All quantity changes are single
// conditional statements so concurrent writers can never drive stock negative.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, now: r.now}
}

func (r *Repository) FindByProductID(ctx context.Context, productID uuid.UUID) (*models.Inventory, error) {
	var row models.Inventory
	if err := r.db.WithContext(ctx).First(&row, "product_id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts the initial row for a new product.
func (r *Repository) Create(ctx context.Context, row *models.Inventory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Set overwrites the quantity, creating the row if the product had none.
func (r *Repository) Set(ctx context.Context, productID uuid.UUID, quantity int) error {
	row := &models.Inventory{ProductID: productID, Quantity: quantity, UpdatedAt: r.now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(row).Error
}

// Adjust applies delta only if the result stays non-negative. It reports
// whether a row changed.
func (r *Repository) Adjust(ctx context.Context, productID uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("product_id = ? AND quantity + ? >= 0", productID, delta).
		UpdateColumns(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": r.now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// Decrement removes qty units only while at least qty are on hand. false
// means the guard failed: a concurrent writer got there first.
func (r *Repository) Decrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		UpdateColumns(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": r.now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// Increment gives qty units back. false means the inventory row is gone.
func (r *Repository) Increment(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("product_id = ?", productID).
		UpdateColumns(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"updated_at": r.now().UTC(),
		})
	return res.RowsAffected == 1, res.Error
}

// ProductExists reports whether the product row is present.
func (r *Repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error
	return count > 0, err
}
