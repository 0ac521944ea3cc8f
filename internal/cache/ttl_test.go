package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestPolicyTTLByFamily(t *testing.T) {
	p := NewPolicy(config.CacheConfig{
		DefaultTTL:   5 * time.Minute,
		ProductTTL:   30 * time.Minute,
		CategoryTTL:  time.Hour,
		ListTTL:      2 * time.Minute,
		SearchTTL:    90 * time.Second,
		InventoryTTL: time.Minute,
		OrderTTL:     3 * time.Minute,
	})

	cases := map[Family]time.Duration{
		FamilyProduct:               30 * time.Minute,
		FamilyCategory:              time.Hour,
		FamilyCategoriesList:        time.Hour,
		FamilyProductsList:          2 * time.Minute,
		FamilyProductsCategory:      2 * time.Minute,
		FamilyProductsSearch:        90 * time.Second,
		FamilyInventory:             time.Minute,
		FamilyOrder:                 3 * time.Minute,
		FamilyOrdersAdmin:           3 * time.Minute,
		OrdersUserFamily(uuid.New()): 3 * time.Minute,
		Family("unmapped"):          5 * time.Minute,
	}
	for family, want := range cases {
		assert.Equal(t, want, p.TTL(family), string(family))
	}
}

func TestPolicyNeverReturnsInfiniteTTL(t *testing.T) {
	p := NewPolicy(config.CacheConfig{ProductTTL: -time.Second})
	assert.Equal(t, fallbackTTL, p.TTL(FamilyProduct))

	p = NewPolicy(config.CacheConfig{DefaultTTL: time.Minute})
	assert.Equal(t, time.Minute, p.TTL(FamilyInventory))
}
