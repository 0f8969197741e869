package cache

import (
	"testing"
	"time"

	"orderdesk-backend/pkg/cache"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	c.Set("k", 42, time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	c.Delete("k")
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestNamespace_FlushIsScoped(t *testing.T) {
	root := NewMemoryCache(time.Minute, time.Minute)
	courier := Namespace(root, "courier")
	rates := Namespace(root, "rates")

	courier.Set("cities", []string{"Dhaka"}, time.Minute)
	rates.Set("active", 3, time.Minute)

	courier.Flush()

	_, ok := courier.Get("cities")
	assert.False(t, ok)
	v, ok := rates.Get("active")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = root.Get("rates:active")
	assert.True(t, ok)
}

func TestGetAs(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	c.Set("zones", []int64{52, 53}, time.Minute)

	zones, ok := cache.GetAs[[]int64](c, "zones")
	assert.True(t, ok)
	assert.Equal(t, []int64{52, 53}, zones)

	_, ok = cache.GetAs[string](c, "zones")
	assert.False(t, ok)

	_, ok = cache.GetAs[[]int64](c, "missing")
	assert.False(t, ok)
}
