// Package core provides the fundamental building blocks of the document ORM.
// This file defines the middleware system, which allows cross-cutting concerns
// (logging, caching, auditing, etc.) to be applied to ORM operations.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Operation represents the type of operation being executed by the ORM.
//
// It is used within middlewares to distinguish between inserts, updates,
// deletes, and queries.
type Operation string

const (
	// OperationInsert corresponds to an insert (create) operation.
	OperationInsert Operation = "insert"
	// OperationUpdate corresponds to an update operation.
	OperationUpdate Operation = "update"
	// OperationDelete corresponds to a delete operation.
	OperationDelete Operation = "delete"
	// OperationFind corresponds to a query (find) operation.
	OperationFind Operation = "find"
)

// Handler is the function signature executed by the ORM pipeline.
//
// It receives a context, the operation type, and an arbitrary payload.
// Handlers are composed by middlewares to add cross-cutting logic.
type Handler func(ctx context.Context, op Operation, payload any) error

// Middleware is a function that wraps a Handler with additional logic.
//
// Middlewares are chained globally and executed for every operation.
// They follow the decorator pattern.
type Middleware func(next Handler) Handler

var globalMiddlewareList []Middleware

// Use registers a new global middleware, applied to all operations.
//
// Middlewares are executed in registration order: the first registered
// middleware is the outermost wrapper and is executed first.
func Use(mw Middleware) {
	globalMiddlewareList = append(globalMiddlewareList, mw)
}

// runMiddlewares applies the chain of middlewares to the final handler.
func runMiddlewares(final Handler) Handler {
	h := final
	// Wrap from the last registered inward, so the first registered runs first.
	for i := len(globalMiddlewareList) - 1; i >= 0; i-- {
		h = globalMiddlewareList[i](h)
	}
	return h
}

// dispatchOperation executes an operation through the global middleware chain.
//
// The exec function contains the core logic of the operation and is wrapped
// by the registered middlewares.
func dispatchOperation(ctx context.Context, op Operation, payload any, exec func() error) error {
	handler := runMiddlewares(func(ctx context.Context, op Operation, payload any) error {
		return exec()
	})
	return handler(ctx, op, payload)
}

// LoggingMiddleware logs every operation passing through the ORM with a
// structured zap.Logger: operation name, elapsed time, and error (if any).
//
// Example:
//
//	logger, _ := zap.NewProduction()
//	core.Use(core.LoggingMiddleware(logger))
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			start := time.Now()
			err := next(ctx, op, payload)
			elapsed := time.Since(start)
			if err != nil {
				logger.Error("orm operation failed",
					zap.String("op", string(op)), zap.Duration("elapsed", elapsed), zap.Error(err))
			} else {
				logger.Debug("orm operation succeeded",
					zap.String("op", string(op)), zap.Duration("elapsed", elapsed))
			}
			return err
		}
	}
}

// Cache defines the interface for pluggable caching mechanisms.
//
// A Cache stores arbitrary values with a TTL (time-to-live) and can
// be used by middlewares to avoid hitting the database repeatedly.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// memoryCache is a simple in-memory Cache implementation.
//
// It uses a map protected by a RWMutex and supports expiration.
type memoryCache struct {
	data  map[string]memoryEntry
	mutex sync.RWMutex
}

type memoryEntry struct {
	value      any
	expiration time.Time
}

// NewMemoryCache creates a new in-memory Cache instance.
func NewMemoryCache() Cache {
	return &memoryCache{
		data: make(map[string]memoryEntry),
	}
}

// Get retrieves a value from the cache by key.
// It returns false if the key does not exist or is expired.
func (c *memoryCache) Get(key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !entry.expiration.IsZero() && time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value in the cache with the given TTL (time-to-live).
// If TTL is 0, the entry does not expire.
func (c *memoryCache) Set(key string, value any, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.data[key] = memoryEntry{value: value, expiration: exp}
}

// cacheMiddlewareFieldToken identifies optional parameters for the cache middleware.
type cacheMiddlewareFieldToken string

const (
	cacheMiddlewareFieldTokenTTL = "ttl"
)

// cacheMiddlewareField allows customization of CacheMiddleware behavior,
// such as overriding the default TTL.
type cacheMiddlewareField struct {
	Token cacheMiddlewareFieldToken
	Value any
}

// resultBox is how CacheMiddleware exchanges an actual decoded result with
// a Model[T] find call, without the generic Handler/Operation/payload
// plumbing ever needing to know what T is. FindOne/FindMany/Count stash one
// in the context before calling dispatchOperation: their exec closure
// writes the decoded value into it (whatever it already had to compute to
// return to its own caller), and CacheMiddleware either reads it back out
// after a successful next (to populate the cache) or writes a previously
// cached value into it and returns without calling next at all (a hit).
// Without this, a cache hit had no way to produce the value the closure
// that never ran would have produced. Kind distinguishes which of the three
// OperationFind-shaped calls populated it (FindOne/FindMany/Count all share
// that one Operation, but an identical filter means three differently-typed
// results, not one) — folded into the cache key so a Count can never hand a
// FindOne call its cached row count.
type resultBox struct {
	value any
	kind  string
}

type resultBoxCtxKey struct{}

// withResultBox attaches box to ctx for dispatchOperation's middleware chain
// to find.
func withResultBox(ctx context.Context, box *resultBox) context.Context {
	return context.WithValue(ctx, resultBoxCtxKey{}, box)
}

func resultBoxFromContext(ctx context.Context) (*resultBox, bool) {
	box, ok := ctx.Value(resultBoxCtxKey{}).(*resultBox)
	return box, ok
}

// cacheKeyShape is the part of a *Where that determines a find's result
// set: the filter document, paging, sort order, and soft-delete visibility.
// Marshaled with goccy/go-json (the project's JSON library throughout) to
// derive a cache key, instead of formatting the whole *Where with %#v,
// which prints a pointer nested in a filter value as its address, so
// otherwise-equal calls could get different keys.
type cacheKeyShape struct {
	Filter      Doc    `json:"filter"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
	Sort        []Sort `json:"sort"`
	WithDeleted bool   `json:"withDeleted"`
	OnlyDeleted bool   `json:"onlyDeleted"`
}

// cacheKey derives a stable string key for a find-shaped operation from its
// Where, so two calls with the same filter/paging/sort produce the same
// key regardless of unrelated pointer identity. kind is FindOne/FindMany/
// Count's own tag (see resultBox), so that otherwise-identical filters
// issued through different Model methods never collide on one key.
func cacheKey(op Operation, where *Where, kind string) (string, error) {
	shape := cacheKeyShape{
		Filter:      where.Filter,
		Limit:       where.Limit,
		Offset:      where.Offset,
		Sort:        where.Sort,
		WithDeleted: where.WithDeleted,
		OnlyDeleted: where.OnlyDeleted,
	}
	encoded, err := json.Marshal(shape)
	if err != nil {
		return "", err
	}
	return string(op) + ":" + kind + ":" + string(encoded), nil
}

// CacheMiddlewareTTLField creates a field that overrides the TTL used by CacheMiddleware.
func CacheMiddlewareTTLField(value time.Duration) *cacheMiddlewareField {
	return &cacheMiddlewareField{
		Token: cacheMiddlewareFieldTokenTTL,
		Value: value,
	}
}

// CacheMiddleware adds caching for read operations (FindOne, FindMany, Count).
//
// It caches query results keyed by operation, the call kind (FindOne vs
// FindMany vs Count — see resultBox), and the *Where shape. Model[T]'s find
// methods stash a *resultBox in the context before dispatching; this
// middleware reads the actual result back out of it after a miss (to cache
// it) and writes a cached value into it on a hit, skipping next entirely.
// A payload that isn't a *Where, or a context with no resultBox attached
// (i.e. not called from Model[T]'s own find methods), falls through to
// next uncached.
//
// Example:
//
//	cache := core.NewMemoryCache()
//	core.Use(core.CacheMiddleware(cache, *core.CacheMiddlewareTTLField(1*time.Minute)))
func CacheMiddleware(cache Cache, fieldList ...cacheMiddlewareField) Middleware {
	var ttl = 30 * time.Second

	for _, f := range fieldList {
		if f.Token == cacheMiddlewareFieldTokenTTL {
			ttl = f.Value.(time.Duration)
		}
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			if op != OperationFind {
				return next(ctx, op, payload)
			}

			where, ok := payload.(*Where)
			if !ok {
				return next(ctx, op, payload)
			}
			box, ok := resultBoxFromContext(ctx)
			if !ok {
				return next(ctx, op, payload)
			}
			key, err := cacheKey(op, where, box.kind)
			if err != nil {
				return next(ctx, op, payload)
			}

			if cached, ok := cache.Get(key); ok {
				box.value = cached
				return nil
			}

			// execute normally, then cache whatever the exec closure
			// actually computed into box, not the *Where it was called with
			err = next(ctx, op, payload)
			if err == nil {
				cache.Set(key, box.value, ttl)
			}
			return err
		}
	}
}
