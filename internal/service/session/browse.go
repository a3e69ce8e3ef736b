package session

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Browse is the per-user search and paging context. It is separate from the
// workflow session so browsing never disturbs a wizard in progress.
type Browse struct {
	Term string
	// Matches holds instrument numbers in table order.
	Matches      []int
	Page         int
	AwaitingTerm bool
}

// BrowseStore holds Browse contexts with the same idle expiry as sessions.
type BrowseStore struct {
	cache *ttlcache.Cache[int64, Browse]
}

// NewBrowseStore builds a store and starts its expiry loop.
func NewBrowseStore(idle time.Duration) *BrowseStore {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	cache := ttlcache.New[int64, Browse](
		ttlcache.WithTTL[int64, Browse](idle),
	)
	go cache.Start()
	return &BrowseStore{cache: cache}
}

// Get returns the user's context, or the zero value.
func (b *BrowseStore) Get(userID int64) Browse {
	item := b.cache.Get(userID)
	if item == nil {
		return Browse{}
	}
	return item.Value()
}

// Set stores the user's context.
func (b *BrowseStore) Set(userID int64, ctx Browse) {
	b.cache.Set(userID, ctx, ttlcache.DefaultTTL)
}

// AwaitTerm marks that the next text from the user is a search term.
func (b *BrowseStore) AwaitTerm(userID int64) {
	ctx := b.Get(userID)
	ctx.AwaitingTerm = true
	b.Set(userID, ctx)
}

// StopAwaiting forgets a pending search prompt and keeps the last results.
func (b *BrowseStore) StopAwaiting(userID int64) {
	ctx := b.Get(userID)
	if !ctx.AwaitingTerm {
		return
	}
	ctx.AwaitingTerm = false
	b.Set(userID, ctx)
}

// StartSearch replaces any previous search with a fresh one.
func (b *BrowseStore) StartSearch(userID int64, term string, matches []int) Browse {
	ctx := Browse{Term: term, Matches: append([]int(nil), matches...)}
	b.Set(userID, ctx)
	return ctx
}

// Clear drops the user's context.
func (b *BrowseStore) Clear(userID int64) {
	b.cache.Delete(userID)
}

// Close stops the expiry loop.
func (b *BrowseStore) Close() {
	b.cache.Stop()
}
