package aggregate

import (
	"sync"
	"time"
)

// Clock 当前时间来源,服务统一通过它获取"今天"
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

// Now 返回当前时间
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock 固定时钟(测试用),可通过 Set 推进
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock 创建固定时钟
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now 返回固定时间
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Set 设置时间
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
