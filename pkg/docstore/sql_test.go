package docstore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/db"
	"github.com/angelmondragon/buildmart-backend/pkg/db/models"
)

func newSQLStore(t *testing.T) Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := client.DB().AutoMigrate(&models.Document{}); err != nil {
		t.Fatalf("migrate documents: %v", err)
	}
	store, err := NewSQL(client)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}
	return store
}

func TestSQLStore(t *testing.T) {
	runStoreSuite(t, newSQLStore)
}

func TestSQLStoreBumpsRowVersion(t *testing.T) {
	name := "sql_row_version"
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()
	if err := client.DB().AutoMigrate(&models.Document{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := NewSQL(client)
	if err != nil {
		t.Fatalf("NewSQL: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := store.Set(ctx, "Products/p1", map[string]any{"price": i + 1}); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	var doc models.Document
	if err := client.DB().First(&doc, "path = ?", "Products/p1").Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if doc.Version != 3 {
		t.Fatalf("expected version 3, got %d", doc.Version)
	}
	if doc.Body != `{"price":3}` {
		t.Fatalf("unexpected body %s", doc.Body)
	}
}
