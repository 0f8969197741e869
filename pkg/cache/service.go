package cache

import "time"

// CacheService is a process-local key/value cache with per-item expiry.
type CacheService interface {
	// Get returns the value and true, or nil and false on a miss or expiry.
	Get(key string) (interface{}, bool)

	Set(key string, value interface{}, duration time.Duration)

	Delete(key string)

	// Flush drops every item visible through this service.
	Flush()
}

// GetAs is Get with a type check. A value of another type counts as a miss.
func GetAs[T any](c CacheService, key string) (T, bool) {
	var zero T
	val, found := c.Get(key)
	if !found {
		return zero, false
	}
	v, ok := val.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
