package categories

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CategoryDTO is the API and cache shape of a category.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewCategoryDTO(c *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// CreateCategoryInput is the validated create payload.
type CreateCategoryInput struct {
	Name        string
	Description *string
}

// UpdateCategoryInput is a patch; nil fields are left untouched.
type UpdateCategoryInput struct {
	Name        *string
	Description *string
}

func (in UpdateCategoryInput) isEmpty() bool {
	return in.Name == nil && in.Description == nil
}
