package snapshot

import (
	"sync"
	"time"

	"github.com/doriyyds-dori/dcc-dashboard/internal/model"
)

// Cache 对账快照缓存：按输入指纹整体缓存，TTL 过期后整体重算。
// 单写多读，不做增量失效。
type Cache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]*entry

	now func() time.Time // 测试注入
}

type entry struct {
	snap     *model.Snapshot
	storedAt time.Time
}

// NewCache 创建缓存，ttl <= 0 表示永不过期
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Get 按输入指纹取快照，过期或缺失返回 nil, false
func (c *Cache) Get(digest string) (*model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[digest]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.snap, true
}

// Put 写入快照
func (c *Cache) Put(digest string, snap *model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[digest] = &entry{snap: snap, storedAt: c.now()}
}

// Latest 最近一次写入且未过期的快照（看板默认展示口径）。
// 写入时刻相同按指纹定序，结果不依赖 map 迭代序。
func (c *Cache) Latest() (*model.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *entry
	var bestDigest string
	for digest, e := range c.entries {
		if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
			continue
		}
		if best == nil || e.storedAt.After(best.storedAt) ||
			(e.storedAt.Equal(best.storedAt) && digest > bestDigest) {
			best = e
			bestDigest = digest
		}
	}
	if best == nil {
		return nil, false
	}
	return best.snap, true
}

// Sweep 清理过期条目，返回清理数量
func (c *Cache) Sweep() int {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for digest, e := range c.entries {
		if c.now().Sub(e.storedAt) > c.ttl {
			delete(c.entries, digest)
			n++
		}
	}
	return n
}
