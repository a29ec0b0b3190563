package auth

import (
	"sync"
	"time"
)

// PermissionCache 权限判定缓存,ttl <= 0 时不缓存
type PermissionCache struct {
	cache *sync.Map
	ttl   time.Duration
	now   func() time.Time
}

// cacheEntry 缓存条目
type cacheEntry struct {
	value     bool
	expiresAt time.Time
}

// NewPermissionCache 创建权限缓存
func NewPermissionCache(ttl time.Duration) *PermissionCache {
	return &PermissionCache{
		cache: &sync.Map{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get 获取缓存
func (c *PermissionCache) Get(key string) (bool, bool) {
	if c == nil || c.ttl <= 0 {
		return false, false
	}
	val, found := c.cache.Load(key)
	if !found {
		return false, false
	}

	entry := val.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		// 已过期，删除
		c.cache.Delete(key)
		return false, false
	}

	return entry.value, true
}

// Set 设置缓存
func (c *PermissionCache) Set(key string, value bool) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.cache.Store(key, &cacheEntry{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Clear 清空缓存,组织结构变化(导入、关联账号)后调用
func (c *PermissionCache) Clear() {
	if c == nil {
		return
	}
	c.cache.Range(func(key, value interface{}) bool {
		c.cache.Delete(key)
		return true
	})
}
