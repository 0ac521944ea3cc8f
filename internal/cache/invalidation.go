package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Invalidation is the set of direct keys and whole families a committed
// mutation makes stale.
type Invalidation struct {
	Keys     []Key
	Families []Family
}

var productProjections = []Family{FamilyProductsList, FamilyProductsSearch, FamilyProductsCategory}

func (i Invalidation) Merge(other Invalidation) Invalidation {
	return Invalidation{
		Keys:     append(append([]Key{}, i.Keys...), other.Keys...),
		Families: append(append([]Family{}, i.Families...), other.Families...),
	}
}

func (i Invalidation) IsEmpty() bool {
	return len(i.Keys) == 0 && len(i.Families) == 0
}

// ForProduct covers create, update and delete of one product.
func ForProduct(productID uuid.UUID) Invalidation {
	return Invalidation{
		Keys:     []Key{ProductKey(productID), InventoryKey(productID)},
		Families: productProjections,
	}
}

// ForCategory covers create, update and delete of one category. Single
// products and product listings embed the category name, so their families
// go too.
func ForCategory(categoryID uuid.UUID) Invalidation {
	return Invalidation{
		Keys:     []Key{CategoryKey(categoryID)},
		Families: append([]Family{FamilyCategoriesList, FamilyProduct}, productProjections...),
	}
}

// ForInventory covers admin set/adjust. The product key embeds stock.
func ForInventory(productID uuid.UUID) Invalidation {
	return Invalidation{
		Keys:     []Key{InventoryKey(productID), ProductKey(productID)},
		Families: productProjections,
	}
}

func stockKeys(productIDs []uuid.UUID) []Key {
	keys := make([]Key, 0, len(productIDs)*2)
	for _, id := range productIDs {
		keys = append(keys, InventoryKey(id), ProductKey(id))
	}
	return keys
}

// ForOrderPlaced covers the stock decrement of every purchased product plus
// the buyer's and the admin order listings.
func ForOrderPlaced(userID uuid.UUID, productIDs []uuid.UUID) Invalidation {
	return Invalidation{
		Keys:     stockKeys(productIDs),
		Families: append([]Family{OrdersUserFamily(userID), FamilyOrdersAdmin}, productProjections...),
	}
}

// ForOrderTransition covers any status change. restored lists products whose
// stock was given back; it is empty unless the order was cancelled.
func ForOrderTransition(orderID, ownerID uuid.UUID, restored []uuid.UUID) Invalidation {
	inv := Invalidation{
		Keys:     []Key{OrderKey(orderID)},
		Families: []Family{OrdersUserFamily(ownerID), FamilyOrdersAdmin},
	}
	if len(restored) > 0 {
		inv.Keys = append(inv.Keys, stockKeys(restored)...)
		inv.Families = append(inv.Families, productProjections...)
	}
	return inv
}

// Invalidate deletes the plan's keys and families. Call it only after the
// mutating transaction committed. It never returns an error: failures are
// logged at warn and counted, and stale entries age out by TTL.
func (c *Cache) Invalidate(ctx context.Context, inv Invalidation) {
	if !c.Enabled() || inv.IsEmpty() {
		return
	}

	keys, families := dedupe(inv)

	if len(keys) > 0 {
		full := make([]string, 0, len(keys))
		for _, k := range keys {
			full = append(full, c.fullKey(k))
		}
		if err := c.store.Del(ctx, full...); err != nil {
			for _, k := range keys {
				c.metrics.Error(k.Family.Label(), "del")
			}
			c.invalidationFailed(ctx, "", keys, err)
		} else {
			for _, k := range keys {
				c.metrics.Invalidated(k.Family.Label(), "key")
			}
		}
	}

	for _, family := range families {
		if err := c.deleteFamily(ctx, family); err != nil {
			c.metrics.Error(family.Label(), "pattern")
			c.invalidationFailed(ctx, family, nil, err)
			continue
		}
		c.metrics.Invalidated(family.Label(), "family")
	}
}

func (c *Cache) deleteFamily(ctx context.Context, family Family) error {
	pattern := c.familyPattern(family)
	var errs error
	for attempt := 1; attempt <= c.patternAttempts; attempt++ {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		_, err := c.store.DeleteByPattern(ctx, pattern)
		if err == nil {
			return nil
		}
		errs = multierr.Append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
	}
	return errs
}

func (c *Cache) invalidationFailed(ctx context.Context, family Family, keys []Key, err error) {
	if c.logg == nil {
		return
	}
	fields := map[string]any{"error": err.Error()}
	if family != "" {
		fields["cache_family"] = family.Label()
		fields["cache_pattern"] = c.familyPattern(family)
	}
	if len(keys) > 0 {
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.String())
		}
		fields["cache_key"] = names
	}
	c.logg.Warn(c.logg.WithFields(ctx, fields), "cache invalidation failed, entries will expire by ttl")
}

func dedupe(inv Invalidation) ([]Key, []Family) {
	seenKeys := map[string]struct{}{}
	keys := make([]Key, 0, len(inv.Keys))
	for _, k := range inv.Keys {
		s := k.String()
		if _, ok := seenKeys[s]; ok {
			continue
		}
		seenKeys[s] = struct{}{}
		keys = append(keys, k)
	}
	seenFamilies := map[Family]struct{}{}
	families := make([]Family, 0, len(inv.Families))
	for _, f := range inv.Families {
		if _, ok := seenFamilies[f]; ok {
			continue
		}
		seenFamilies[f] = struct{}{}
		families = append(families, f)
	}
	return keys, families
}
