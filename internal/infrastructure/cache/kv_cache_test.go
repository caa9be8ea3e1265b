package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"scholarflow/internal/infrastructure/persistence/model"
)

func setupKVCache(t *testing.T) *KVCache {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "cache.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate kv: %v", err)
	}

	return NewKVCache(db)
}

func TestKVCacheSetGetDelete(t *testing.T) {
	cache := setupKVCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "relay:cursor:log", "17", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "relay:cursor:log")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatalf("Get() expected found=true")
	}
	if value != "17" {
		t.Fatalf("Get() value = %q", value)
	}

	if err := cache.Set(ctx, "relay:cursor:log", "18", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}

	value, found, err = cache.Get(ctx, "relay:cursor:log")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "18" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "relay:cursor:log"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, found, err = cache.Get(ctx, "relay:cursor:log")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestKVCacheExpiresEntries(t *testing.T) {
	cache := setupKVCache(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	if err := cache.Set(ctx, "application:app-1:status", "in_review", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, found, err := cache.Get(ctx, "application:app-1:status"); err != nil || !found {
		t.Fatalf("Get() before expiry found=%v err=%v", found, err)
	}

	cache.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, found, err := cache.Get(ctx, "application:app-1:status")
	if err != nil {
		t.Fatalf("Get() after expiry error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected expired entry to be missing")
	}
}

func TestKVCacheRejectsEmptyKey(t *testing.T) {
	cache := setupKVCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, "  "); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}
