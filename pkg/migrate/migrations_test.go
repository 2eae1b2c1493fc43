package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/farmlink-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one migration for %s, got %v", pattern, matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWalletMigrationGuardsBalances(t *testing.T) {
	assertContains(t, readMigration(t, "*_create_wallets.sql"), []string{
		"CREATE TABLE IF NOT EXISTS wallets",
		"CHECK (balance_cents >= 0)",
		"CREATE TABLE IF NOT EXISTS wallet_transactions",
		"CHECK (amount_cents > 0)",
		"'ORDER_PAYMENT', 'TOPUP', 'REFUND', 'SETTLEMENT'",
		"DROP TABLE IF EXISTS wallet_transactions",
	})
}

func TestProductsMigrationContainsSchema(t *testing.T) {
	assertContains(t, readMigration(t, "*_create_products.sql"), []string{
		"CREATE TYPE product_category AS ENUM",
		"CREATE TYPE product_unit AS ENUM ('KG', 'G', 'L', 'PCS', 'DZ', 'QTL')",
		"CHECK (quantity >= 0)",
		"CHECK (price_cents >= 0)",
		"deleted_at timestamptz NULL",
	})
}

func TestOrdersMigrationContainsSchema(t *testing.T) {
	assertContains(t, readMigration(t, "*_create_orders.sql"), []string{
		"'PENDING', 'ACCEPTED', 'SHIPPED', 'DELIVERED', 'REJECTED', 'CANCELLED'",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE RESTRICT",
		"CHECK (quantity > 0)",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestOutboxMigrationMatchesEventTypes(t *testing.T) {
	assertContains(t, readMigration(t, "*_create_outbox_events.sql"), []string{
		"'order_created', 'order_decided', 'order_status_changed', 'wallet_transaction_recorded'",
		"CREATE TABLE IF NOT EXISTS outbox_events",
	})
}

func TestPasswordResetMigrationExtendsEnums(t *testing.T) {
	assertContains(t, readMigration(t, "*_add_password_reset_event.sql"), []string{
		"-- +goose NO TRANSACTION",
		"ALTER TYPE aggregate_type_enum ADD VALUE IF NOT EXISTS 'user'",
		"ALTER TYPE event_type_enum ADD VALUE IF NOT EXISTS 'password_reset_requested'",
	})
}

func TestValidateDirAcceptsRepoMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected repo migrations to validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigrationProducesValidFile(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Product Tags!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_product_tags.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}
