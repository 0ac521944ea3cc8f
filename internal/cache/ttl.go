package cache

import (
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// fallbackTTL applies when both the family TTL and DefaultTTL are unset, so
// no entry is ever written without expiry.
const fallbackTTL = 5 * time.Minute

// Policy resolves the TTL for a family from configuration.
type Policy struct {
	cfg config.CacheConfig
}

func NewPolicy(cfg config.CacheConfig) Policy {
	return Policy{cfg: cfg}
}

func (p Policy) TTL(family Family) time.Duration {
	var ttl time.Duration
	switch {
	case family == FamilyProduct:
		ttl = p.cfg.ProductTTL
	case family == FamilyCategory || family == FamilyCategoriesList:
		ttl = p.cfg.CategoryTTL
	case family == FamilyProductsList || family == FamilyProductsCategory:
		ttl = p.cfg.ListTTL
	case family == FamilyProductsSearch:
		ttl = p.cfg.SearchTTL
	case family == FamilyInventory:
		ttl = p.cfg.InventoryTTL
	case family == FamilyOrder || strings.HasPrefix(string(family), "orders:"):
		ttl = p.cfg.OrderTTL
	}
	if ttl > 0 {
		return ttl
	}
	if p.cfg.DefaultTTL > 0 {
		return p.cfg.DefaultTTL
	}
	return fallbackTTL
}
