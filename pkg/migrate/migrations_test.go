package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(embedded, embeddedDir+"/*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := fs.ReadFile(embedded, matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestInventoryMigrationGuardsNegativeStock(t *testing.T) {
	content := readMigration(t, "create_inventories")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS inventories",
		"CHECK (quantity >= 0)",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS inventories",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestCartMigrationEnforcesOneLinePerProduct(t *testing.T) {
	content := readMigration(t, "create_carts")
	assert.Contains(t, content, "ux_carts_user_id ON carts (user_id)")
	assert.Contains(t, content, "ux_cart_items_cart_product ON cart_items (cart_id, product_id)")
	assert.Contains(t, content, "CHECK (quantity >= 1)")
}

func TestOrderItemsKeepHistoryWithoutProductForeignKey(t *testing.T) {
	content := readMigration(t, "create_orders")
	assert.Contains(t, content, "price numeric(12,2) NOT NULL")
	assert.Contains(t, content, "product_name text NOT NULL")
	assert.NotContains(t, content, "REFERENCES products(id)")
}

func TestValidateDir(t *testing.T) {
	require.NoError(t, ValidateDir(embeddedDir))

	dir := t.TempDir()
	require.Error(t, ValidateDir(dir), "empty dir must fail")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Product SKU!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_product_sku.sql"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}
