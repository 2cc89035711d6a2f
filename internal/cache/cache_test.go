package cache

import (
	"context"
	"testing"
	"time"

	"github.com/golos/golosmind/pkg/config"
)

func TestHashKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{name: "single part", parts: []string{"test"}},
		{name: "multiple parts", parts: []string{"database_api.get_state", `["trending"]`}},
		{name: "empty parts", parts: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed1 := HashKey(tt.parts...)
			hashed2 := HashKey(tt.parts...)
			if hashed1 != hashed2 {
				t.Errorf("HashKey() should be consistent, got %s and %s", hashed1, hashed2)
			}
			if len(hashed1) != 32 {
				t.Errorf("HashKey() should return 32 character hex string, got length %d", len(hashed1))
			}
		})
	}

	if HashKey("ab", "c") == HashKey("a", "bc") {
		t.Error("HashKey() should separate parts")
	}
}

func TestCache_NamespaceKey(t *testing.T) {
	cache := &Cache{}

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{name: "simple key", key: "test", expected: "golosmind:test"},
		{name: "key with colon", key: "test:key", expected: "golosmind:test:key"},
		{name: "empty key", key: "", expected: "golosmind:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := cache.namespaceKey(tt.key); result != tt.expected {
				t.Errorf("namespaceKey() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestLocalLevel(t *testing.T) {
	c, err := New(&config.RedisConfig{}, &config.CacheConfig{TTL: time.Second, LocalExpiry: time.Minute})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	ctx := context.Background()

	if _, ok := c.Load(ctx, "k"); ok {
		t.Fatal("empty cache should miss")
	}
	data, err := c.Store(ctx, "k", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Store() encoded %s", data)
	}
	got, ok := c.Load(ctx, "k")
	if !ok || string(got) != `{"a":1}` {
		t.Errorf("Load() = %s, %v", got, ok)
	}

	c.FlushLocal()
	if _, ok := c.Load(ctx, "k"); ok {
		t.Error("flushed cache should miss")
	}
	if err := c.Health(ctx); err != ErrCacheDisabled {
		t.Errorf("Health() without redis = %v", err)
	}

	var disabled *Cache
	if _, ok := disabled.Load(ctx, "k"); ok {
		t.Error("nil cache should miss")
	}
}
