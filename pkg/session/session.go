// Package session keeps uploaded data in memory between requests.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var ErrNotFound = errors.New("session not found")

// Store hands out ids for values and returns them while they live.
type Store[T any] interface {
	Put(v T) string
	Get(id string) (T, error)
}

// CacheStore expires values ttl after they were stored. A ttl of zero or
// less keeps values until Delete.
type CacheStore[T any] struct {
	items *cache.Cache
}

func New[T any](ttl time.Duration) *CacheStore[T] {
	if ttl <= 0 {
		return &CacheStore[T]{items: cache.New(cache.NoExpiration, 0)}
	}
	return &CacheStore[T]{items: cache.New(ttl, ttl)}
}

// Put stores v under a fresh uuid.
func (s *CacheStore[T]) Put(v T) string {
	id := uuid.NewString()
	s.items.SetDefault(id, v)
	return id
}

func (s *CacheStore[T]) Get(id string) (T, error) {
	var zero T
	v, ok := s.items.Get(id)
	if !ok {
		return zero, ErrNotFound
	}
	t, ok := v.(T)
	if !ok {
		return zero, ErrNotFound
	}
	return t, nil
}

func (s *CacheStore[T]) Delete(id string) {
	s.items.Delete(id)
}

// Len counts stored values, including expired ones not yet evicted.
func (s *CacheStore[T]) Len() int {
	return s.items.ItemCount()
}
