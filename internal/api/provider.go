package api

import (
	"context"

	"github.com/FocuswithJustin/CedarAlign/core/cache"
	"github.com/FocuswithJustin/CedarAlign/core/structure"
	"github.com/FocuswithJustin/CedarAlign/internal/store"
)

// Provider serves built books from the persistent store through an LRU
// cache, so repeated resolve and project calls against the same book skip
// decompression.
type Provider struct {
	store *store.Store
	cache *cache.StructureCache
}

// NewProvider wraps a store with the default structure cache.
func NewProvider(st *store.Store) *Provider {
	return &Provider{
		store: st,
		cache: cache.NewDefaultStructureCache(),
	}
}

// Book returns the built book for (resource, book), loading from the store
// on a cache miss.
func (p *Provider) Book(ctx context.Context, resource, book string) (*structure.Book, error) {
	if b, ok := p.cache.Get(resource, book); ok {
		return b, nil
	}
	b, err := p.store.GetBook(ctx, resource, book)
	if err != nil {
		return nil, err
	}
	p.cache.Put(resource, book, b)
	return b, nil
}

// ListBooks returns the book codes stored for a resource.
func (p *Provider) ListBooks(ctx context.Context, resource string) ([]string, error) {
	return p.store.ListBooks(ctx, resource)
}

// Invalidate drops a cached book after a rebuild.
func (p *Provider) Invalidate(resource, book string) {
	p.cache.Remove(resource, book)
}

// CacheStats returns the structure cache statistics.
func (p *Provider) CacheStats() cache.Stats {
	return p.cache.Stats()
}
