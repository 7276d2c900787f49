// Package bufferpool manages in-memory pages on behalf of callers,
// splitting ownership between a pin table and a weak LRU cache.
//
// A fetched page is pinned: the pool holds a strong reference and
// counts the callers using it. Unpinning drops the count; at zero the
// pool releases its strong reference and the page survives only in the
// cache's weak entry - reusable if fetched again before the garbage
// collector reclaims it, reloaded from the backing store otherwise.
//
// A Pool is not safe for concurrent use.
package bufferpool

import (
	"errors"
	"fmt"

	"github.com/cmaruan/simpledb/pkg/lru"
	"github.com/cmaruan/simpledb/pkg/page"
)

// ErrNotPinned indicates an Unpin of a page that has no pin count.
// This is a programming error: every Unpin must pair with a Fetch.
var ErrNotPinned = errors.New("bufferpool: page not pinned")

// PageID identifies a page in the backing store.
type PageID uint64

// Store loads pages from durable storage. Implementations decide how
// IDs map to locations; the pool only requires that ReadPage returns a
// fresh page or an error.
type Store interface {
	ReadPage(id PageID) (*page.Page, error)
}

// pin is a strong reference with a user count.
type pin struct {
	page  *page.Page
	count int
}

// Pool caches pages loaded from a Store.
type Pool struct {
	store  Store
	cache  *lru.Cache[PageID, page.Page]
	pinned map[PageID]*pin
}

// New creates a pool over store, caching at most cacheSize unpinned
// pages. Panics if cacheSize is less than 1.
func New(store Store, cacheSize int) *Pool {
	return &Pool{
		store:  store,
		cache:  lru.New[PageID, page.Page](cacheSize),
		pinned: make(map[PageID]*pin),
	}
}

// Fetch returns the page with the given ID, pinning it. Already-pinned
// pages are shared; otherwise the cache is consulted, and only on a
// miss does the pool read from the store. Every successful Fetch must
// be balanced by an Unpin.
func (p *Pool) Fetch(id PageID) (*page.Page, error) {
	if pn, ok := p.pinned[id]; ok {
		pn.count++

		return pn.page, nil
	}

	if pg, ok := p.cache.Get(id); ok {
		p.pinned[id] = &pin{page: pg, count: 1}

		return pg, nil
	}

	pg, err := p.store.ReadPage(id)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", id, err)
	}

	p.pinned[id] = &pin{page: pg, count: 1}
	p.cache.Insert(id, pg)

	return pg, nil
}

// Unpin releases one pin on the page. When the last pin drops, the
// pool forgets its strong reference; the page stays reachable through
// the cache until collected or evicted. Returns ErrNotPinned if the
// page has no outstanding pins.
func (p *Pool) Unpin(id PageID) error {
	pn, ok := p.pinned[id]
	if !ok {
		return fmt.Errorf("unpin page %d: %w", id, ErrNotPinned)
	}

	pn.count--
	if pn.count == 0 {
		delete(p.pinned, id)
	}

	return nil
}

// Pinned reports whether the page currently has outstanding pins.
func (p *Pool) Pinned(id PageID) bool {
	_, ok := p.pinned[id]

	return ok
}
