package sqlite

import (
	"container/list"

	"github.com/wippyai/sqlite-runtime/engine"
)

// defaultCacheSize is the prepared-statement cache capacity used when
// the caller does not choose one.
const defaultCacheSize = 16

// stmtCache keeps recently prepared statements alive keyed by their
// SQL text. An entry handed out by get is pinned: it belongs to one
// caller until released, never gets evicted, and a concurrent prepare
// of the same text compiles a fresh unmanaged statement instead.
//
// Not goroutine safe; the owning connection's gate serializes access.
type stmtCache struct {
	cap    int
	lru    *list.List // *cacheEntry, most recent at front
	byText map[string]*list.Element
}

type cacheEntry struct {
	text   string
	stmt   *Stmt
	pinned bool
}

func newStmtCache(capacity int) *stmtCache {
	return &stmtCache{
		cap:    capacity,
		lru:    list.New(),
		byText: make(map[string]*list.Element),
	}
}

// get returns the cached statement for text pinned to the caller, or
// nil when none is available.
func (c *stmtCache) get(text string) *Stmt {
	el, ok := c.byText[text]
	if !ok {
		return nil
	}
	ent := el.Value.(*cacheEntry)
	if ent.pinned {
		return nil
	}
	ent.pinned = true
	c.lru.MoveToFront(el)
	return ent.stmt
}

// admit takes ownership of a freshly compiled statement, pinned.
// Statements whose text is already cached are refused and stay the
// caller's to finalize. Unpinned entries beyond capacity are evicted
// through finalize.
func (c *stmtCache) admit(text string, stmt *Stmt, finalize func(engine.Stmt)) bool {
	if c.cap <= 0 {
		return false
	}
	if _, ok := c.byText[text]; ok {
		return false
	}
	el := c.lru.PushFront(&cacheEntry{text: text, stmt: stmt, pinned: true})
	c.byText[text] = el
	c.evict(finalize)
	return true
}

// release returns a pinned statement to the cache for reuse.
func (c *stmtCache) release(stmt *Stmt) {
	el, ok := c.byText[stmt.sql]
	if !ok || el.Value.(*cacheEntry).stmt != stmt {
		return
	}
	el.Value.(*cacheEntry).pinned = false
	c.lru.MoveToFront(el)
}

func (c *stmtCache) evict(finalize func(engine.Stmt)) {
	over := c.lru.Len() - c.cap
	el := c.lru.Back()
	for over > 0 && el != nil {
		prev := el.Prev()
		ent := el.Value.(*cacheEntry)
		if !ent.pinned {
			c.lru.Remove(el)
			delete(c.byText, ent.text)
			finalize(ent.stmt.h)
			ent.stmt.closed = true
			over--
		}
		el = prev
	}
}

// drop finalizes every unpinned entry and empties the cache. Pinned
// entries belong to live statements the connection tears down itself.
func (c *stmtCache) drop(finalize func(engine.Stmt)) {
	for el := c.lru.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*cacheEntry)
		if !ent.pinned {
			finalize(ent.stmt.h)
			ent.stmt.closed = true
		}
	}
	c.lru.Init()
	c.byText = make(map[string]*list.Element)
}
