package orders

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

const envTestDSN = "STOREFRONT_TEST_DB_DSN"

// Runs against a real Postgres because sqlite serialises writers and cannot
// show the race.
func TestConcurrentPlacementsNeverOversellPostgres(t *testing.T) {
	dsn := os.Getenv(envTestDSN)
	if dsn == "" {
		t.Skipf("%s not set", envTestDSN)
	}
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	client, err := db.New(ctx, config.DBConfig{DSN: dsn, Driver: config.DBDriverPostgres, MaxOpenConns: 20, MaxIdleConns: 5}, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(ctx, sqlDB, "up"))
	require.NoError(t, client.DB().Exec("TRUNCATE order_items, orders, cart_items, carts, inventories, products, categories, outbox_events").Error)

	conn := client.DB()
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Carts:     cart.NewRepository(conn),
		Inventory: inventory.NewRepository(conn),
		Tx:        client,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:    logg,
	})
	require.NoError(t, err)

	category := &models.Category{Name: "race"}
	require.NoError(t, conn.Create(category).Error)
	p := &models.Product{CategoryID: category.ID, Name: "Last few", Price: decimal.RequireFromString("3.00"), IsActive: true}
	require.NoError(t, conn.Create(p).Error)
	require.NoError(t, conn.Create(&models.Inventory{ProductID: p.ID, Quantity: 3}).Error)

	const buyers = 12
	carts := cart.NewRepository(conn)
	users := make([]uuid.UUID, buyers)
	for i := range users {
		users[i] = uuid.New()
		c, err := carts.EnsureCart(ctx, users[i])
		require.NoError(t, err)
		require.NoError(t, carts.UpsertItem(ctx, c.ID, p.ID, 1))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed int
		failed []error
		losers []uuid.UUID
	)
	for _, userID := range users {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, userID, PlaceOrderInput{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				placed++
				return
			}
			failed = append(failed, err)
			losers = append(losers, userID)
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 3, placed)
	for _, err := range failed {
		ok := pkgerrors.IsCode(err, pkgerrors.CodeOrderRejected) || pkgerrors.IsCode(err, pkgerrors.CodeTransactionFailed)
		assert.Truef(t, ok, "unexpected error %v", err)
	}

	var row models.Inventory
	require.NoError(t, conn.First(&row, "product_id = ?", p.ID).Error)
	assert.Equal(t, 0, row.Quantity)

	// a failed placement leaves the buyer's cart as it was
	for _, userID := range losers {
		var lines int64
		require.NoError(t, conn.Model(&models.CartItem{}).
			Joins("JOIN carts ON carts.id = cart_items.cart_id").
			Where("carts.user_id = ?", userID).
			Count(&lines).Error)
		assert.Equal(t, int64(1), lines)
	}
}
